// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid telemetry frame",
	Long: `Wait for a valid EVBox telemetry frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
telemetry frame. It ignores bytes outside frames and rejected frames, and
waits for a complete frame that passes both checksums.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing RS-485 wiring, baud rate and flow control settings.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	link, err := OpenConnection()
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("connection error: %w", err)}
	}
	defer link.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Evboxstat - Packet Test\n")
	fmt.Fprintf(out, "Connection: %s\n", link.Info)
	fmt.Fprintf(out, "Timeout: %d seconds\n", packetTestTimeout)
	fmt.Fprintf(out, "Waiting for valid telemetry frame...\n\n")

	telemetry, charger, err := waitForTelemetry(link, time.Duration(packetTestTimeout)*time.Second)
	if err != nil {
		return err
	}

	stats := charger.Statistics()
	if stats.DroppedBytes > 0 || stats.Errors() > 0 {
		fmt.Fprintf(out, "(skipped %d bytes and %d rejected frames before sync)\n", stats.DroppedBytes, stats.Errors())
	}
	fmt.Fprintf(out, "SUCCESS: Received valid frame\n")
	fmt.Fprint(out, evbox.FormatTelemetry(telemetry))
	return nil
}
