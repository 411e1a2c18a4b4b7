// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package simulator provides a fake charging station for development and
// tests. It publishes telemetry periodically and obeys current setpoint
// commands.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

// nominalVoltage is the phase voltage used to integrate energy
const nominalVoltage = 230.0

// StationConfig configures a simulated station
type StationConfig struct {
	// Interval between telemetry reports. Defaults to one second.
	Interval time.Duration
	// Phases drawing current, 1 or 3. Defaults to 3.
	Phases int
	// InitialCurrent is the setpoint before the first command, in amperes
	InitialCurrent float64
	// InitialEnergy is the meter reading at start, in kWh
	InitialEnergy float64
	Logger        *zap.Logger
}

// Station is the simulated state of one charging station
type Station struct {
	mu         sync.Mutex
	interval   time.Duration
	phases     int
	current    float64
	energy     float64
	lastReport time.Time
	commands   uint64
	rejected   uint64
	logger     *zap.Logger
}

// NewStation creates a station from cfg
func NewStation(cfg StationConfig) *Station {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Phases != 1 {
		cfg.Phases = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Station{
		interval: cfg.Interval,
		phases:   cfg.Phases,
		current:  cfg.InitialCurrent,
		energy:   cfg.InitialEnergy,
		logger:   cfg.Logger,
	}
}

// Current returns the active setpoint in amperes
func (s *Station) Current() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Commands returns the number of accepted and rejected commands
func (s *Station) Commands() (accepted, rejected uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands, s.rejected
}

// HandlePayload applies a received command payload
func (s *Station) HandlePayload(payload []byte) error {
	cmd, err := evbox.ParseCommand(payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.rejected++
		s.logger.Warn("Rejected command", zap.Error(err), zap.ByteString("payload", payload))
		return err
	}
	s.commands++
	s.current = cmd.Current()
	s.logger.Info("Setpoint applied", zap.Float64("amp", s.current), zap.Uint8("raw", cmd.Setpoint))
	return nil
}

// Report advances the energy meter to now and returns a framed telemetry report
func (s *Station) Report(now time.Time) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := evbox.Telemetry{Timestamp: now}
	t.L1Current = s.current
	if s.phases == 3 {
		t.L2Current = s.current
		t.L3Current = s.current
	}

	if !s.lastReport.IsZero() {
		hours := now.Sub(s.lastReport).Hours()
		s.energy += t.TotalCurrent() * nominalVoltage * hours / 1000
	}
	s.lastReport = now
	t.TotalEnergy = s.energy

	return evbox.EncodeTelemetry(&t)
}

// Serve reports telemetry on rw every interval and applies the commands it
// receives, until ctx is cancelled or rw fails.
func (s *Station) Serve(ctx context.Context, rw io.ReadWriter) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.receive(rw)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := rw.Write(s.Report(time.Now())); err != nil {
			return fmt.Errorf("failed to write telemetry: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-ticker.C:
		}
	}
}

func (s *Station) receive(r io.Reader) error {
	receiver := evbox.NewReceiver()
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for _, payload := range receiver.Decode(buf[:n]) {
			_ = s.HandlePayload(payload)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}
	}
}
