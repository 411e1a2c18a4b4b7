// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package simulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Simulator serves a Station on a pseudo-terminal
type Simulator struct {
	Station *Station

	pty    *PtyPair
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates a simulator and its pty pair
func New(cfg StationConfig) (*Simulator, error) {
	pair, err := CreatePtyPair()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		Station: NewStation(cfg),
		pty:     pair,
		logger:  logger,
	}, nil
}

// ClientDevicePath returns the device path clients should open
func (s *Simulator) ClientDevicePath() string {
	return s.pty.SlavePath
}

// Start serves the station in a goroutine
func (s *Simulator) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	s.logger.Info("Simulated station listening",
		zap.String("server_pty", s.pty.MasterPath),
		zap.String("client_pty", s.pty.SlavePath))

	go func() {
		defer close(s.done)
		s.err = s.Station.Serve(ctx, s.pty.Master)
	}()
}

// Wait blocks until the station stops and returns the reason
func (s *Simulator) Wait() error {
	<-s.done
	if errors.Is(s.err, context.Canceled) {
		return nil
	}
	return s.err
}

// Stop stops serving and closes the pty
func (s *Simulator) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.pty.Close()

	if s.done != nil {
		select {
		case <-s.done:
		case <-time.After(time.Second):
			s.logger.Warn("Simulator stop timed out")
		}
	}
	if err != nil {
		return fmt.Errorf("failed to close pty: %w", err)
	}
	return nil
}
