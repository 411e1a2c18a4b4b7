// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package simulator

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// PtyPair is a pseudo-terminal pair. The simulator owns Master and clients
// open SlavePath as if it were the station's serial port.
type PtyPair struct {
	Master     *os.File
	Slave      *os.File
	MasterPath string
	SlavePath  string
}

// Close closes both ends
func (p *PtyPair) Close() error {
	var err error
	if p.Master != nil {
		if e := p.Master.Close(); e != nil && err == nil {
			err = e
		}
		p.Master = nil
	}
	if p.Slave != nil {
		if e := p.Slave.Close(); e != nil && err == nil {
			err = e
		}
		p.Slave = nil
	}
	return err
}

// CreatePtyPair opens a pty pair with the slave in raw mode, so frames pass
// through without echo or line buffering.
func CreatePtyPair() (*PtyPair, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open pty: %w", err)
	}

	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("failed to set raw mode on %s: %w", slave.Name(), err)
	}

	return &PtyPair{
		Master:     master,
		Slave:      slave,
		MasterPath: master.Name(),
		SlavePath:  slave.Name(),
	}, nil
}
