// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

import (
	"math"
	"time"
)

// Telemetry is a fully decoded telemetry report
type Telemetry struct {
	L1Current   float64   `cbor:"1,keyasint" json:"l1_current"`
	L2Current   float64   `cbor:"2,keyasint" json:"l2_current"`
	L3Current   float64   `cbor:"3,keyasint" json:"l3_current"`
	TotalEnergy float64   `cbor:"4,keyasint" json:"total_energy"`
	Timestamp   time.Time `cbor:"0,keyasint" json:"timestamp"`
}

// Value returns the decoded value of field
func (t *Telemetry) Value(field Field) float64 {
	switch field {
	case FieldL1Current:
		return t.L1Current
	case FieldL2Current:
		return t.L2Current
	case FieldL3Current:
		return t.L3Current
	case FieldTotalEnergy:
		return t.TotalEnergy
	}
	return 0
}

// TotalCurrent returns the sum of the three phase currents
func (t *Telemetry) TotalCurrent() float64 {
	return t.L1Current + t.L2Current + t.L3Current
}

// DecodeTelemetry validates payload and decodes every field
func DecodeTelemetry(payload []byte) (*Telemetry, error) {
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}

	t := &Telemetry{Timestamp: time.Now()}
	targets := [fieldCount]*float64{
		FieldTotalEnergy: &t.TotalEnergy,
		FieldL1Current:   &t.L1Current,
		FieldL2Current:   &t.L2Current,
		FieldL3Current:   &t.L3Current,
	}
	for _, def := range telemetryFields {
		v, err := def.decode(payload)
		if err != nil {
			return nil, err
		}
		*targets[def.Field] = v
	}
	return t, nil
}

// EncodeTelemetry builds a framed telemetry report carrying t's values.
// Used by the station simulator and tests.
func EncodeTelemetry(t *Telemetry) []byte {
	body := []byte(TelemetryHeader + "00000000000000" +
		"0000" + "0000" + "0000" + "000000000000" + "00000000")

	for _, def := range telemetryFields {
		putHex(body[def.Offset:def.Offset+def.Width], toUnits(t.Value(def.Field)*def.Divisor))
	}

	return frame(body)
}

// toUnits rounds v to the nearest integer, negatives and NaN become zero
func toUnits(v float64) uint64 {
	if !(v > 0) {
		return 0
	}
	return uint64(math.Round(v))
}

// putHex writes v as fixed-width uppercase hex into dst, keeping the low digits
func putHex(dst []byte, v uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = hexChars[v&0x0F]
		v >>= 4
	}
}

// frame appends the checksum to body and wraps it in START/END
func frame(body []byte) []byte {
	sum := CalculateChecksum(body).Hex()
	out := make([]byte, 0, len(body)+len(sum)+2)
	out = append(out, StartByte)
	out = append(out, body...)
	out = append(out, sum[:]...)
	out = append(out, EndByte)
	return out
}
