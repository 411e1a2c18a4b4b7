// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/evboxstat/internal/transport"
	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

// waitForTelemetry receives on link until one valid telemetry report arrives.
// Timeouts map to exit code 1 and read failures to exit code 2.
func waitForTelemetry(link *transport.Link, timeout time.Duration, opts ...evbox.Option) (*evbox.Telemetry, *evbox.Charger, error) {
	got := make(chan *evbox.Telemetry, 1)
	opts = append(opts, evbox.WithTelemetryHandler(func(t *evbox.Telemetry) {
		select {
		case got <- t:
		default:
		}
	}))

	charger, err := newCharger(link, opts...)
	if err != nil {
		return nil, nil, &ExitError{Code: 2, Err: err}
	}
	t, err := awaitTelemetry(charger, got, timeout)
	return t, charger, err
}

// awaitTelemetry runs charger until a report is delivered on got. The receive
// goroutine keeps running until the caller closes the link.
func awaitTelemetry(charger *evbox.Charger, got <-chan *evbox.Telemetry, timeout time.Duration) (*evbox.Telemetry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- charger.Run(ctx) }()

	select {
	case t := <-got:
		return t, nil

	case err := <-runErr:
		if ctx.Err() == nil {
			return nil, &ExitError{Code: 2, Err: fmt.Errorf("read error: %w", err)}
		}

	case <-ctx.Done():
	}
	return nil, &ExitError{Code: 1, Err: fmt.Errorf("TIMEOUT: no valid frame received within %v", timeout)}
}
