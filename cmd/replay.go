// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

var replayJSON bool

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Print telemetry recorded with raw_log --record",
	Long: `Decode a CBOR telemetry recording and print every report.

With --json, each report is written as one JSON object per line for use with
jq or spreadsheet imports. No connection is opened.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Output JSON lines")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	count := 0

	err = evbox.ReadRecording(f, func(t *evbox.Telemetry) error {
		count++
		if replayJSON {
			return enc.Encode(t)
		}
		_, err := fmt.Fprint(out, evbox.FormatTelemetry(t))
		return err
	})
	if err != nil {
		return fmt.Errorf("replay stopped after %d reports: %w", count, err)
	}

	if !replayJSON {
		fmt.Fprintf(out, "\n%d reports\n", count)
	}
	return nil
}
