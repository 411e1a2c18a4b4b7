// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and errors",
	Long: `Track frame errors and malformed data with statistics.

This command validates each frame and detects:
  - Length mismatches (truncated or oversized frames)
  - Unexpected telemetry headers
  - Sum and XOR checksum failures
  - Malformed hex fields
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	quietConsole[errorDetectionCmd.Name()] = true
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if useTUI {
		return runTUIMode()
	}
	return runTextMode(cmd.OutOrStdout())
}

// printRejection prints a rejected frame in highlighted format
func printRejection(w io.Writer, payload []byte, err error) {
	timestamp := time.Now().Format("15:04:05.000")

	verr, ok := evbox.AsValidationError(err)
	if !ok {
		fmt.Fprintf(w, "[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
		fmt.Fprintf(w, "  >>> FRAME REJECTED <<<\n\n")
		return
	}

	switch verr.Type {
	case evbox.AnomalySumChecksum, evbox.AnomalyXorChecksum:
		fmt.Fprintf(w, "[%s] \033[1;31mCHECKSUM ERROR:\033[0m %s\n", timestamp, verr.Message)
		if expected, ok := verr.Details["expected"].(string); ok {
			if received, ok := verr.Details["received"].(string); ok {
				fmt.Fprintf(w, "    Checksum: received=%s, expected=%s\n", received, expected)
			}
		}

	case evbox.AnomalyLengthMismatch:
		fmt.Fprintf(w, "[%s] \033[1;31mLENGTH ERROR:\033[0m %s\n", timestamp, verr.Message)
		if received, ok := verr.Details["received"].(int); ok {
			if expected, ok := verr.Details["expected"].(int); ok {
				fmt.Fprintf(w, "    Length: received=%d, expected=%d\n", received, expected)
			}
		}

	case evbox.AnomalyInvalidHeader:
		fmt.Fprintf(w, "[%s] \033[1;33mHEADER ERROR:\033[0m %s\n", timestamp, verr.Message)

	case evbox.AnomalyMalformedField:
		fmt.Fprintf(w, "[%s] \033[1;33mFIELD ERROR:\033[0m %s\n", timestamp, verr.Message)

	default:
		fmt.Fprintf(w, "[%s] VALIDATION ERROR: %s\n", timestamp, verr.Message)
	}

	fmt.Fprint(w, evbox.FormatPayload(payload))
	fmt.Fprintf(w, "  >>> FRAME REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode() error {
	session := newChargerSession()
	if err := session.connect(); err != nil {
		return err
	}

	m := initialModel(session.info(), statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithAltScreen())
	session.p = p

	go session.run()

	_, err := p.Run()
	session.close()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(out io.Writer) error {
	link, err := OpenConnection()
	if err != nil {
		return err
	}
	defer link.Close()

	fmt.Fprintf(out, "Evboxstat - Error Detection Mode\n")
	fmt.Fprintf(out, "Connection: %s\n", link.Info)
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All frames\n")
	} else {
		fmt.Fprintf(out, "Mode: Errors only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	// Handlers run on the receive goroutine while the ticker prints from this one
	var outMu sync.Mutex
	synchronized := false

	charger, err := newCharger(link,
		evbox.WithTelemetryHandler(func(t *evbox.Telemetry) {
			outMu.Lock()
			defer outMu.Unlock()
			if !synchronized {
				synchronized = true
				fmt.Fprintf(out, "[SYNC] Synchronized\n\n")
			}
			if showAll {
				fmt.Fprint(out, evbox.FormatTelemetry(t))
			}
		}),
		evbox.WithRejectHandler(func(payload []byte, err error) {
			outMu.Lock()
			defer outMu.Unlock()
			printRejection(out, payload, err)
		}),
	)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- charger.Run(ctx) }()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case err := <-runErr:
			return finishRun(err)

		case <-statsTicker.C:
			stats := charger.Statistics()
			stats.CalculateRates()
			outMu.Lock()
			fmt.Fprintln(out)
			fmt.Fprint(out, stats.String())
			fmt.Fprintln(out)
			outMu.Unlock()
		}
	}
}
