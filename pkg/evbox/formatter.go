// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

import (
	"fmt"
	"strings"
)

// FormatTelemetry formats a telemetry report into a human-readable string
func FormatTelemetry(t *Telemetry) string {
	timestamp := t.Timestamp.Format("15:04:05.000")

	result := fmt.Sprintf("[%s] TELEMETRY\n", timestamp)
	result += fmt.Sprintf("  L1: %5.1f A  L2: %5.1f A  L3: %5.1f A  (total %.1f A)\n",
		t.L1Current, t.L2Current, t.L3Current, t.TotalCurrent())
	result += fmt.Sprintf("  Energy: %.3f kWh\n", t.TotalEnergy)
	return result
}

// FormatCommand formats a MaxChargingCurrent command
func FormatCommand(c *Command) string {
	if c.Setpoint == 0 {
		return "SET_CURRENT 0.0 A (stop charging)\n"
	}
	return fmt.Sprintf("SET_CURRENT %.1f A (0x%02X)\n", c.Current(), c.Setpoint)
}

// FormatRejection formats a rejected payload with the reason it was dropped
func FormatRejection(payload []byte, err error) string {
	kind := "REJECTED"
	if verr, ok := AsValidationError(err); ok {
		kind = verr.Type.String()
	}
	return fmt.Sprintf("  %s: %v\n%s", kind, err, FormatPayload(payload))
}

// FormatPayload renders payload in 16-character rows with offsets
func FormatPayload(payload []byte) string {
	var b strings.Builder
	for i := 0; i < len(payload); i += 16 {
		end := i + 16
		if end > len(payload) {
			end = len(payload)
		}
		fmt.Fprintf(&b, "    %03d: %s\n", i, payload[i:end])
	}
	if len(payload) == 0 {
		b.WriteString("    (empty)\n")
	}
	return b.String()
}
