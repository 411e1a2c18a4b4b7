// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport opens the byte stream to the charging station, either a
// local RS-485 serial adapter or a remote serial bridge over WebSocket.
package transport

import (
	"fmt"
	"io"

	"github.com/Thermoquad/evboxstat/internal/config"
	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

// Connection is a closable evbox.Transport
type Connection interface {
	evbox.Transport
	io.Closer
}

// Link is an open connection plus its optional direction-control line
type Link struct {
	Connection
	Direction evbox.DirectionLine // nil when the link is full duplex
	Info      string
}

// Open opens either a serial or WebSocket connection based on cfg
func Open(cfg config.ConnectionConfig) (*Link, error) {
	if cfg.URL != "" {
		if cfg.FlowControl != "" && cfg.FlowControl != config.FlowControlNone {
			return nil, fmt.Errorf("flow control %q is only available on serial ports", cfg.FlowControl)
		}
		conn, err := OpenWebSocketConnection(cfg.URL, cfg.Username, cfg.Password, cfg.SkipSSLVerify)
		if err != nil {
			return nil, err
		}
		return &Link{Connection: conn, Info: fmt.Sprintf("WebSocket: %s", cfg.URL)}, nil
	}

	if cfg.Port != "" {
		conn, err := OpenSerialConnection(cfg.Port, cfg.BaudRate, cfg.ReadTimeout)
		if err != nil {
			return nil, err
		}

		link := &Link{Connection: conn, Info: fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.BaudRate)}
		switch cfg.FlowControl {
		case config.FlowControlRTS:
			link.Direction = conn.RTS(false)
			link.Info += " (RTS flow control)"
		case config.FlowControlRTSInverted:
			link.Direction = conn.RTS(true)
			link.Info += " (inverted RTS flow control)"
		}
		return link, nil
	}

	return nil, fmt.Errorf("either --port or --url must be specified")
}
