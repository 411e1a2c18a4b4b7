// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var linkCheckDuration int

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test raw connection stability",
	Long: `Test the connection to the station without decoding frames.

This command connects and just listens, logging any bytes received or errors
encountered. Useful for debugging wiring, baud rate and WebSocket bridge
stability.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Test duration in seconds")
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	link, err := OpenConnection()
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("connection error: %w", err)}
	}
	defer link.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connection Stability Test\n")
	fmt.Fprintf(out, "Connection: %s\n", link.Info)
	fmt.Fprintf(out, "Duration: %d seconds\n\n", linkCheckDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := link.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	start := time.Now()
	endTime := start.Add(time.Duration(linkCheckDuration) * time.Second)
	bytesReceived := 0
	chunksReceived := 0

	fmt.Fprintf(out, "Listening for data...\n\n")

	summary := func(result string) {
		fmt.Fprintf(out, "\n--- Test Results ---\n")
		fmt.Fprintf(out, "Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Fprintf(out, "Chunks received: %d\n", chunksReceived)
		fmt.Fprintf(out, "Bytes received: %d\n", bytesReceived)
		fmt.Fprintf(out, "Result: %s\n", result)
	}

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			chunksReceived++
			fmt.Fprintf(out, "[%s] Received %d bytes: %q\n",
				time.Now().Format("15:04:05.000"), len(data), data)

		case err := <-errChan:
			fmt.Fprintf(out, "\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			summary("FAILED (connection error)")
			return &ExitError{Code: 1, Err: err}

		case <-time.After(1 * time.Second):
			// Just a heartbeat to show the test is running
			remaining := time.Until(endTime).Seconds()
			fmt.Fprintf(out, "[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	summary("PASSED (connection stable)")
	return nil
}
