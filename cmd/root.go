// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/evboxstat/internal/config"
	"github.com/Thermoquad/evboxstat/internal/logging"
)

var (
	cfgFile string

	// Populated by PersistentPreRunE
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "evboxstat",
	Short: "EVBox Serial Protocol Analyzer",
	Long: `Evboxstat - A CLI tool for monitoring and controlling EVBox charging stations
over their RS-485 serial protocol.

Provides commands for raw frame logging, error detection, interactive control,
and a bridge that exposes the station over HTTP, Prometheus and MQTT.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 38400] [--flow-control rts]
  WebSocket: --url ws://host/path [--username user]

Every flag may also be set in a config file (--config) or through EVBOX_*
environment variables, e.g. EVBOX_CONNECTION_PORT or EVBOX_MQTT_BROKER.

For WebSocket authentication, the password is read from the EVBOX_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (yaml, toml or json)")

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", 38400, "Baud rate (serial only)")
	flags.String("flow-control", config.FlowControlNone, "RS-485 direction control: none, rts or rts-inverted")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("log-file", "", "Also write logs to this file (rotated)")
}

// loadConfig resolves the configuration and builds the logger
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg = c

	var console zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	quiet := quietConsole[cmd.Name()]
	if f := cmd.Flags().Lookup("tui"); f != nil && f.Value.String() == "false" {
		quiet = false
	}
	if quiet {
		// Full screen UIs own the terminal
		console = nil
	}
	logger = logging.New(cfg.Logging, console)
	return nil
}

// quietConsole lists commands that must not log to the terminal
var quietConsole = map[string]bool{}

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
