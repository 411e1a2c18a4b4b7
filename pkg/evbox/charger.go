// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Transport is the byte stream to the charging station.
// Drain blocks until every written byte has left the transmitter.
type Transport interface {
	io.Reader
	io.Writer
	Drain() error
}

// DirectionLine switches a half-duplex RS-485 driver between transmit and
// receive. Asserted means transmit-enabled.
type DirectionLine interface {
	SetTransmit(tx bool) error
}

// Option configures a Charger
type Option func(*Charger)

// WithDirectionLine sets the RS-485 driver-enable line
func WithDirectionLine(line DirectionLine) Option {
	return func(c *Charger) { c.direction = line }
}

// WithLogger sets the logger used for protocol diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(c *Charger) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSink publishes field to sink on every valid telemetry report
func WithSink(field Field, sink Sink) Option {
	return func(c *Charger) { c.decoder.SetSink(field, sink) }
}

// WithTelemetryHandler calls fn with the full report after the sinks have run.
// A frame with a malformed field still reaches the sinks for its other fields
// but produces no report, since a Telemetry value is all fields or none.
func WithTelemetryHandler(fn func(*Telemetry)) Option {
	return func(c *Charger) { c.onTelemetry = fn }
}

// WithRejectHandler calls fn with every payload that fails validation
func WithRejectHandler(fn func(payload []byte, err error)) Option {
	return func(c *Charger) { c.onReject = fn }
}

// Charger drives one charging station over a Transport.
//
// Poll and SetCurrent are serialized: a command is never transmitted while a
// received frame is being processed.
type Charger struct {
	mu          sync.Mutex
	transport   Transport
	direction   DirectionLine
	receiver    *Receiver
	decoder     *Decoder
	stats       *Statistics
	logger      *zap.Logger
	onTelemetry func(*Telemetry)
	onReject    func([]byte, error)
	readBuf     []byte
}

// NewCharger creates a charger on transport and puts the direction line
// into receive mode.
func NewCharger(transport Transport, opts ...Option) (*Charger, error) {
	c := &Charger{
		transport: transport,
		receiver:  NewReceiver(),
		decoder:   NewDecoder(),
		stats:     NewStatistics(),
		logger:    zap.NewNop(),
		readBuf:   make([]byte, 128),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.direction != nil {
		if err := c.direction.SetTransmit(false); err != nil {
			return nil, fmt.Errorf("failed to set receive mode: %w", err)
		}
		c.logger.Debug("flow control line configured")
	}
	return c, nil
}

// Poll reads the bytes currently available from the transport and runs them
// through the protocol. Returns the number of bytes consumed.
func (c *Charger) Poll() (int, error) {
	n, err := c.transport.Read(c.readBuf)
	if n > 0 {
		c.Feed(c.readBuf[:n])
	}
	return n, err
}

// Run polls until ctx is cancelled or the transport fails
func (c *Charger) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := c.Poll(); err != nil {
			return err
		}
	}
}

// Feed processes received bytes. Each completed frame is validated, decoded
// and dispatched before the next byte is consumed.
func (c *Charger) Feed(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.receiver.Dropped()
	for _, b := range data {
		if payload := c.receiver.DecodeByte(b); payload != nil {
			c.processPayload(payload)
		}
	}
	c.stats.DroppedBytes += c.receiver.Dropped() - before
}

func (c *Charger) processPayload(payload []byte) {
	if err := ValidatePayload(payload); err != nil {
		c.stats.Update(err)
		if verr, ok := AsValidationError(err); ok && verr.IsChecksumError() {
			c.logger.Warn("Checksum validation failed", zap.Error(err))
		} else {
			c.logger.Debug("Frame rejected", zap.Error(err), zap.Int("length", len(payload)))
		}
		if c.onReject != nil {
			c.onReject(payload, err)
		}
		return
	}

	c.logger.Debug("Processing received message")

	if err := c.decoder.Dispatch(payload); err != nil {
		c.stats.Update(err)
		c.logger.Warn("Telemetry field decode failed", zap.Error(err))
		if c.onReject != nil {
			c.onReject(payload, err)
		}
		return
	}
	c.stats.Update(nil)

	if c.onTelemetry != nil {
		t, err := DecodeTelemetry(payload)
		if err != nil {
			return
		}
		c.onTelemetry(t)
	}
}

// SetCurrent transmits a MaxChargingCurrent command. Use 0 to stop charging.
//
// The direction line is asserted before the first byte and released only
// after the transport has drained.
func (c *Charger) SetCurrent(amp float64) error {
	sp, err := Setpoint(amp)
	if err != nil {
		return err
	}
	if sp > 0xFF {
		c.logger.Warn("Setpoint exceeds one byte, sending low byte only",
			zap.Uint16("setpoint", sp), zap.Uint8("sent", uint8(sp)))
	}
	packet := frame(CommandBody(sp))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("Setting charge current", zap.Float64("amp", float64(sp)/10))

	if c.direction != nil {
		if err := c.direction.SetTransmit(true); err != nil {
			return fmt.Errorf("failed to enable transmit: %w", err)
		}
	}

	_, err = c.transport.Write(packet)
	if err != nil {
		err = fmt.Errorf("failed to write command: %w", err)
	} else if derr := c.transport.Drain(); derr != nil {
		err = fmt.Errorf("failed to drain transport: %w", derr)
	}

	if c.direction != nil {
		if rerr := c.direction.SetTransmit(false); rerr != nil && err == nil {
			err = fmt.Errorf("failed to return to receive mode: %w", rerr)
		}
	}

	if err == nil {
		c.stats.CommandsSent++
	}
	return err
}

// Statistics returns a snapshot of the protocol counters
func (c *Charger) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.stats
}

// ResetStatistics clears the protocol counters
func (c *Charger) ResetStatistics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Reset()
}
