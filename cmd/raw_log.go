// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/evboxstat/internal/transport"
	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

var (
	rawLogRecord string
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display EVBox protocol frames as they arrive.

Each telemetry report is shown with its timestamp, phase currents and meter
reading. Rejected frames are shown with the reason and a dump of the payload.

With --record, decoded telemetry is also appended to a CBOR file that can be
played back with the replay command.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogRecord, "record", "", "Append decoded telemetry to this CBOR file")
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	link, err := OpenConnection()
	if err != nil {
		return err
	}
	defer link.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Evboxstat - Raw Frame Log\n")
	fmt.Fprintf(out, "Connection: %s\n", link.Info)

	var recorder *evbox.Recorder
	if rawLogRecord != "" {
		f, err := os.OpenFile(rawLogRecord, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close()
		recorder = evbox.NewRecorder(f)
		fmt.Fprintf(out, "Recording: %s\n", rawLogRecord)
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	charger, err := newCharger(link,
		evbox.WithTelemetryHandler(func(t *evbox.Telemetry) {
			fmt.Fprint(out, evbox.FormatTelemetry(t))
			if recorder != nil {
				if err := recorder.Write(t); err != nil {
					logger.Error("Failed to record telemetry", zap.Error(err))
				}
			}
		}),
		evbox.WithRejectHandler(func(payload []byte, err error) {
			fmt.Fprint(out, evbox.FormatRejection(payload, err))
		}),
	)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	return finishRun(charger.Run(ctx))
}

// finishRun maps the ways a receive loop ends to the command result
func finishRun(err error) error {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, transport.ErrConnectionClosed):
		// For WebSocket connections a read error means the bridge went away
		logger.Info("Connection closed")
		return nil
	default:
		return fmt.Errorf("read error: %w", err)
	}
}
