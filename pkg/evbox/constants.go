// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package evbox implements the EVBox EVSE serial protocol.
//
// The charging station reports metering telemetry as framed ASCII-hex messages
// and accepts a single command that sets the maximum charging current. Both
// directions share one framing scheme (STX/ETX sentinels) and one dual
// checksum (byte sum and byte XOR, each rendered as two uppercase hex digits).
package evbox

// Protocol framing bytes
const (
	StartByte = 0x02
	EndByte   = 0x03
)

// Receiver capture range. Numerically '0'..'F', which also admits ':' through '@'.
const (
	captureMin = 0x30
	captureMax = 0x46
)

// Frame size limits
const (
	MinFrameLength   = 8   // END is only accepted after more than this many bytes
	MaxFrameLength   = 255 // capture capacity, further bytes are dropped
	TelemetryLength  = 56
	ChecksumOffset   = 52
	CommandLength    = 34
	CommandFrameSize = 1 + CommandLength + 4 + 1
)

// TelemetryHeader is the fixed signature of a telemetry report.
const TelemetryHeader = "A08069"

// commandTemplate is the MaxChargingCurrent command. The three "__" slots at
// offsets 8, 12 and 16 carry the same setpoint byte.
const commandTemplate = "80A06900__00__00__003C003C003C003C"

var setpointSlots = [...]int{8, 12, 16}

// Charging current limits in amperes
const (
	MinChargingCurrent = 6.0
	StopCurrent        = 0.0

	// Operator range exposed by the UI and HTTP bridge
	MinOperatorCurrent = 9.0
	MaxOperatorCurrent = 32.0
)

const hexChars = "0123456789ABCDEF"
