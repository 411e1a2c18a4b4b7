// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/evboxstat/internal/transport"
	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for monitoring and controlling the charging station",
	Long: `Monitor and control an EVBox charging station via an interactive terminal UI.

Features:
  - Real-time phase currents and energy meter
  - Maximum charging current control (9-32 A) and stop
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Tab cycles between the current input and the Set and Stop buttons. Commands
are rate limited by --command-rate.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	quietConsole[controlCmd.Name()] = true
}

// frameEvent is one processed frame, queued for the UI
type frameEvent struct {
	at        time.Time
	telemetry *evbox.Telemetry
	payload   []byte
	err       error
}

// chargerSession owns the connection lifecycle for the TUIs and reconnects
// with backoff when the link is lost
type chargerSession struct {
	mu      sync.RWMutex
	link    *transport.Link
	charger *evbox.Charger

	p      *tea.Program
	events chan frameEvent
	done   chan struct{}
	once   sync.Once
}

// newChargerSession creates an unconnected session. Set p before run.
func newChargerSession() *chargerSession {
	return &chargerSession{
		events: make(chan frameEvent, 100),
		done:   make(chan struct{}),
	}
}

// connect opens the link and attaches a charger that queues every frame
func (s *chargerSession) connect() error {
	link, err := OpenConnection()
	if err != nil {
		return err
	}

	// Handlers run under the charger lock and must not block
	queue := func(ev frameEvent) {
		select {
		case s.events <- ev:
		default:
		}
	}
	charger, err := newCharger(link,
		evbox.WithTelemetryHandler(func(t *evbox.Telemetry) {
			queue(frameEvent{at: t.Timestamp, telemetry: t})
		}),
		evbox.WithRejectHandler(func(payload []byte, err error) {
			queue(frameEvent{at: time.Now(), payload: append([]byte(nil), payload...), err: err})
		}),
	)
	if err != nil {
		link.Close()
		return err
	}

	s.mu.Lock()
	s.link, s.charger = link, charger
	s.mu.Unlock()
	return nil
}

func (s *chargerSession) getCharger() *evbox.Charger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.charger
}

func (s *chargerSession) info() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.link == nil {
		return ""
	}
	return s.link.Info
}

// setCurrent transmits a setpoint on the active connection
func (s *chargerSession) setCurrent(amp float64) error {
	charger := s.getCharger()
	if charger == nil {
		return errors.New("not connected")
	}
	return charger.SetCurrent(amp)
}

// run receives until the session is closed, reconnecting on connection loss
func (s *chargerSession) run() {
	for {
		err := s.receive()

		select {
		case <-s.done:
			return
		default:
		}

		logger.Warn("Connection lost", zap.Error(err))
		s.p.Send(connectionLostMsg{err: err})

		if !s.reconnect() {
			return // Shutdown requested during reconnect
		}
		s.p.Send(connectedMsg{connInfo: s.info()})
	}
}

// receive runs the charger and forwards batched events to the TUI at a fixed
// rate until the connection fails
func (s *chargerSession) receive() error {
	charger := s.getCharger()
	readerDone := make(chan error, 1)

	go func() {
		for {
			select {
			case <-s.done:
				readerDone <- nil
				return
			default:
			}
			if _, err := charger.Poll(); err != nil {
				readerDone <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-readerDone:
			return err
		case <-ticker.C:
			batch := batchMsg{stats: charger.Statistics()}
		drainLoop:
			for {
				select {
				case ev := <-s.events:
					batch.events = append(batch.events, ev)
				default:
					break drainLoop
				}
			}
			s.p.Send(batch)
		}
	}
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (s *chargerSession) reconnect() bool {
	s.mu.Lock()
	if s.link != nil {
		s.link.Close()
	}
	s.mu.Unlock()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-s.done:
			return false
		case <-time.After(backoff):
		}

		err := s.connect()
		if err == nil {
			return true
		}
		logger.Debug("Reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// close stops the session and releases the connection
func (s *chargerSession) close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.link != nil {
			s.link.Close()
		}
	})
}

func runControl(cmd *cobra.Command, args []string) error {
	session := newChargerSession()
	if err := session.connect(); err != nil {
		return err
	}

	m := initialControlModel(session.info(), session.setCurrent, cfg.Command)
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
