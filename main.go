// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Evboxstat - EVBox Serial Protocol Analyzer
//
// A CLI tool for monitoring, controlling and bridging EVBox charging stations
// over their RS-485 serial protocol.

package main

import (
	"errors"
	"os"

	"github.com/Thermoquad/evboxstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
