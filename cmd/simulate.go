// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/evboxstat/internal/simulator"
)

var (
	simInterval       time.Duration
	simPhases         int
	simInitialCurrent float64
	simInitialEnergy  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated charging station on a pseudo-terminal",
	Long: `Create a pseudo-terminal pair and serve a simulated EVBox station on it.

The station reports telemetry at --interval and applies every valid
MaxChargingCurrent command it receives. The energy meter integrates the phase
currents at 230 V.

Point any other command at the printed client device, for example:
  evboxstat simulate &
  evboxstat control --port /dev/pts/5`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().DurationVar(&simInterval, "interval", time.Second, "Telemetry report interval")
	simulateCmd.Flags().IntVar(&simPhases, "phases", 3, "Phases drawing current (1 or 3)")
	simulateCmd.Flags().Float64Var(&simInitialCurrent, "initial-current", 16, "Current drawn before the first command, in amperes")
	simulateCmd.Flags().Float64Var(&simInitialEnergy, "initial-energy", 0, "Initial meter reading in kWh")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	sim, err := simulator.New(simulator.StationConfig{
		Interval:       simInterval,
		Phases:         simPhases,
		InitialCurrent: simInitialCurrent,
		InitialEnergy:  simInitialEnergy,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer sim.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Evboxstat - Simulated Station\n")
	fmt.Fprintf(out, "Client device: %s\n", sim.ClientDevicePath())
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	ctx, stop := signalContext()
	defer stop()

	sim.Start(ctx)
	if err := sim.Wait(); err != nil {
		return fmt.Errorf("simulator stopped: %w", err)
	}

	accepted, rejected := sim.Station.Commands()
	fmt.Fprintf(out, "\nCommands accepted: %d, rejected: %d\n", accepted, rejected)
	return nil
}
