// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/evboxstat/internal/transport"
	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

// promptPassword is replaced in tests
var promptPassword = GetPassword

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("EVBOX_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection based on the
// resolved configuration. A prompted password is kept in cfg so reconnects
// do not prompt again.
func OpenConnection() (*transport.Link, error) {
	if cfg.Connection.URL != "" && cfg.Connection.Username != "" && cfg.Connection.Password == "" {
		password, err := promptPassword()
		if err != nil {
			return nil, err
		}
		cfg.Connection.Password = password
	}

	link, err := transport.Open(cfg.Connection)
	if err != nil {
		return nil, err
	}
	logger.Info("Connection opened", zap.String("connection", link.Info))
	return link, nil
}

// newCharger attaches a charger to link, wiring its direction line and logger
func newCharger(link *transport.Link, opts ...evbox.Option) (*evbox.Charger, error) {
	base := []evbox.Option{evbox.WithLogger(logger)}
	if link.Direction != nil {
		base = append(base, evbox.WithDirectionLine(link.Direction))
	}
	return evbox.NewCharger(link, append(base, opts...)...)
}
