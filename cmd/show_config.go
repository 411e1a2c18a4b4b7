// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var showConfigCmd = &cobra.Command{
	Use:   "show_config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging defaults, the config file, EVBOX_*
environment variables and flags. The output can be saved and passed back
with --config. The WebSocket password is never printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
}
