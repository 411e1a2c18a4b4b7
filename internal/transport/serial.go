// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

// OpenSerialConnection opens a serial port at baudRate, 8N1. A positive
// readTimeout makes Read return (0, nil) when the line is quiet.
func OpenSerialConnection(portName string, baudRate int, readTimeout time.Duration) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
		}
	}

	return &SerialConnection{port: port}, nil
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Drain blocks until the UART has shifted out every written byte
func (s *SerialConnection) Drain() error {
	return s.port.Drain()
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// RTS returns the port's RTS pin as an RS-485 driver-enable line
func (s *SerialConnection) RTS(inverted bool) *RTSLine {
	return &RTSLine{port: s.port, inverted: inverted}
}

// RTSLine drives an RS-485 transceiver's DE/RE pins from RTS
type RTSLine struct {
	port     serial.Port
	inverted bool
}

// SetTransmit implements evbox.DirectionLine
func (r *RTSLine) SetTransmit(tx bool) error {
	return r.port.SetRTS(tx != r.inverted)
}
