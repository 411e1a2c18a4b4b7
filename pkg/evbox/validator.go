// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

import (
	"errors"
	"fmt"
)

// AnomalyType represents the reason a payload was rejected
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyInvalidHeader
	AnomalySumChecksum
	AnomalyXorChecksum
	AnomalyMalformedField
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyLengthMismatch:
		return "LENGTH_MISMATCH"
	case AnomalyInvalidHeader:
		return "INVALID_HEADER"
	case AnomalySumChecksum:
		return "SUM_CHECKSUM"
	case AnomalyXorChecksum:
		return "XOR_CHECKSUM"
	case AnomalyMalformedField:
		return "MALFORMED_FIELD"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a payload validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// IsChecksumError reports whether the error is a sum or XOR checksum mismatch
func (v *ValidationError) IsChecksumError() bool {
	return v.Type == AnomalySumChecksum || v.Type == AnomalyXorChecksum
}

// AsValidationError extracts a *ValidationError from err
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// ValidatePayload checks that payload is a well-formed telemetry report.
// Returns nil if valid, a *ValidationError otherwise.
func ValidatePayload(payload []byte) error {
	if len(payload) != TelemetryLength {
		return &ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("Payload length mismatch: received=%d, expected=%d", len(payload), TelemetryLength),
			Details: map[string]interface{}{"received": len(payload), "expected": TelemetryLength},
		}
	}

	if string(payload[:len(TelemetryHeader)]) != TelemetryHeader {
		return &ValidationError{
			Type:    AnomalyInvalidHeader,
			Message: fmt.Sprintf("Invalid header %q (expected %q)", payload[:len(TelemetryHeader)], TelemetryHeader),
			Details: map[string]interface{}{"header": string(payload[:len(TelemetryHeader)])},
		}
	}

	expected := CalculateChecksum(payload[:ChecksumOffset]).Hex()
	received := payload[ChecksumOffset:]

	if expected[0] != received[0] || expected[1] != received[1] {
		return &ValidationError{
			Type:    AnomalySumChecksum,
			Message: fmt.Sprintf("Sum checksum mismatch: expected %s, got %s", expected[:2], received[:2]),
			Details: map[string]interface{}{"expected": string(expected[:2]), "received": string(received[:2])},
		}
	}

	if expected[2] != received[2] || expected[3] != received[3] {
		return &ValidationError{
			Type:    AnomalyXorChecksum,
			Message: fmt.Sprintf("XOR checksum mismatch: expected %s, got %s", expected[2:], received[2:]),
			Details: map[string]interface{}{"expected": string(expected[2:]), "received": string(received[2:4])},
		}
	}

	return nil
}
