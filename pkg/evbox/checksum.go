// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

// Checksum holds the two integrity codes used by every EVBox message
type Checksum struct {
	Sum uint8
	Xor uint8
}

// CalculateChecksum computes the modular byte sum and byte XOR of data
func CalculateChecksum(data []byte) Checksum {
	var c Checksum
	for _, b := range data {
		c.Sum += b
		c.Xor ^= b
	}
	return c
}

// Hex renders the checksum as four uppercase hex characters, sum first
func (c Checksum) Hex() [4]byte {
	return [4]byte{
		hexChars[c.Sum>>4], hexChars[c.Sum&0x0F],
		hexChars[c.Xor>>4], hexChars[c.Xor&0x0F],
	}
}

// SumHex returns the two-character sum checksum
func (c Checksum) SumHex() string {
	h := c.Hex()
	return string(h[:2])
}

// XorHex returns the two-character XOR checksum
func (c Checksum) XorHex() string {
	h := c.Hex()
	return string(h[2:])
}

// String implements fmt.Stringer
func (c Checksum) String() string {
	h := c.Hex()
	return string(h[:])
}
