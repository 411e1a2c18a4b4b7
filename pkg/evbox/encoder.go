// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCurrent is returned for negative, NaN or infinite current requests
var ErrInvalidCurrent = errors.New("invalid charging current")

// Setpoint converts a requested current in amperes to the transmitted value
// in tenths of an ampere. Zero stops charging; any other value below the
// protocol minimum is raised to 6 A.
func Setpoint(amp float64) (uint16, error) {
	if math.IsNaN(amp) || math.IsInf(amp, 0) || amp < 0 {
		return 0, fmt.Errorf("%w: %v A", ErrInvalidCurrent, amp)
	}
	if amp != StopCurrent && amp < MinChargingCurrent {
		amp = MinChargingCurrent
	}
	return uint16(math.Mod(math.Round(amp*10), 1<<16)), nil
}

// IsOperatorCurrent reports whether amp is a request an operator may issue:
// stop, or a value within the supported charging range.
func IsOperatorCurrent(amp float64) bool {
	return amp == StopCurrent || (amp >= MinOperatorCurrent && amp <= MaxOperatorCurrent)
}

// CommandBody returns the 34-character command body carrying setpoint.
// Only the low byte of setpoint fits the wire format.
func CommandBody(setpoint uint16) []byte {
	body := []byte(commandTemplate)
	hi, lo := hexChars[(setpoint>>4)&0x0F], hexChars[setpoint&0x0F]
	for _, off := range setpointSlots {
		body[off] = hi
		body[off+1] = lo
	}
	return body
}

// EncodeSetCurrent creates a complete wire-formatted MaxChargingCurrent command
func EncodeSetCurrent(amp float64) ([]byte, error) {
	sp, err := Setpoint(amp)
	if err != nil {
		return nil, err
	}
	return frame(CommandBody(sp)), nil
}

// Command is a decoded MaxChargingCurrent command
type Command struct {
	Setpoint uint8
}

// Current returns the commanded current in amperes
func (c Command) Current() float64 {
	return float64(c.Setpoint) / 10
}

// ParseCommand decodes a command payload (the bytes between START and END).
// It is the station side of EncodeSetCurrent.
func ParseCommand(payload []byte) (*Command, error) {
	if len(payload) != CommandLength+4 {
		return nil, &ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("Command length mismatch: received=%d, expected=%d", len(payload), CommandLength+4),
			Details: map[string]interface{}{"received": len(payload), "expected": CommandLength + 4},
		}
	}

	body := payload[:CommandLength]
	for i := 0; i < CommandLength; i++ {
		if commandTemplate[i] == '_' {
			continue
		}
		if body[i] != commandTemplate[i] {
			return nil, &ValidationError{
				Type:    AnomalyInvalidHeader,
				Message: fmt.Sprintf("Command body differs from template at offset %d", i),
				Details: map[string]interface{}{"offset": i},
			}
		}
	}

	expected := CalculateChecksum(body).Hex()
	received := payload[CommandLength:]
	if expected[0] != received[0] || expected[1] != received[1] {
		return nil, &ValidationError{
			Type:    AnomalySumChecksum,
			Message: fmt.Sprintf("Sum checksum mismatch: expected %s, got %s", expected[:2], received[:2]),
		}
	}
	if expected[2] != received[2] || expected[3] != received[3] {
		return nil, &ValidationError{
			Type:    AnomalyXorChecksum,
			Message: fmt.Sprintf("XOR checksum mismatch: expected %s, got %s", expected[2:], received[2:]),
		}
	}

	slot := string(body[setpointSlots[0] : setpointSlots[0]+2])
	for _, off := range setpointSlots[1:] {
		if string(body[off:off+2]) != slot {
			return nil, &ValidationError{
				Type:    AnomalyMalformedField,
				Message: fmt.Sprintf("Setpoint slots disagree: %q vs %q", slot, body[off:off+2]),
			}
		}
	}

	var sp uint8
	for _, c := range []byte(slot) {
		n := hexValue(c)
		if n < 0 {
			return nil, &ValidationError{
				Type:    AnomalyMalformedField,
				Message: fmt.Sprintf("Malformed setpoint %q", slot),
			}
		}
		sp = sp<<4 | uint8(n)
	}
	return &Command{Setpoint: sp}, nil
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}
