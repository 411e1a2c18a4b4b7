// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/evboxstat/internal/transport"
	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

func payloadOf(frame []byte) []byte {
	return frame[1 : len(frame)-1]
}

func TestStation_ReportIntegratesEnergy(t *testing.T) {
	s := NewStation(StationConfig{InitialCurrent: 10, InitialEnergy: 100})
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	first, err := evbox.DecodeTelemetry(payloadOf(s.Report(start)))
	require.NoError(t, err)
	assert.Equal(t, 10.0, first.L1Current)
	assert.Equal(t, 10.0, first.L2Current)
	assert.Equal(t, 10.0, first.L3Current)
	assert.Equal(t, 100.0, first.TotalEnergy)

	// 30 A * 230 V for one hour
	second, err := evbox.DecodeTelemetry(payloadOf(s.Report(start.Add(time.Hour))))
	require.NoError(t, err)
	assert.InDelta(t, 106.9, second.TotalEnergy, 0.001)
}

func TestStation_SinglePhase(t *testing.T) {
	s := NewStation(StationConfig{Phases: 1, InitialCurrent: 16})

	tel, err := evbox.DecodeTelemetry(payloadOf(s.Report(time.Now())))
	require.NoError(t, err)
	assert.Equal(t, 16.0, tel.L1Current)
	assert.Equal(t, 0.0, tel.L2Current)
	assert.Equal(t, 0.0, tel.L3Current)
}

func TestStation_HandlePayload(t *testing.T) {
	s := NewStation(StationConfig{})

	cmd, err := evbox.EncodeSetCurrent(16)
	require.NoError(t, err)
	require.NoError(t, s.HandlePayload(payloadOf(cmd)))
	assert.Equal(t, 16.0, s.Current())

	stop, err := evbox.EncodeSetCurrent(0)
	require.NoError(t, err)
	require.NoError(t, s.HandlePayload(payloadOf(stop)))
	assert.Equal(t, 0.0, s.Current())

	// Telemetry is not a command
	assert.Error(t, s.HandlePayload(payloadOf(s.Report(time.Now()))))

	accepted, rejected := s.Commands()
	assert.Equal(t, uint64(2), accepted)
	assert.Equal(t, uint64(1), rejected)
}

func TestSimulator_ChargerOverPty(t *testing.T) {
	sim, err := New(StationConfig{Interval: 20 * time.Millisecond, InitialCurrent: 6})
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	defer sim.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sim.Start(ctx)

	conn, err := transport.OpenSerialConnection(sim.ClientDevicePath(), 38400, 50*time.Millisecond)
	require.NoError(t, err)
	defer conn.Close()

	var mu sync.Mutex
	var reports []*evbox.Telemetry
	charger, err := evbox.NewCharger(conn, evbox.WithTelemetryHandler(func(tel *evbox.Telemetry) {
		mu.Lock()
		reports = append(reports, tel)
		mu.Unlock()
	}))
	require.NoError(t, err)

	runCtx, stopRun := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- charger.Run(runCtx) }()

	lastL1 := func() float64 {
		mu.Lock()
		defer mu.Unlock()
		if len(reports) == 0 {
			return -1
		}
		return reports[len(reports)-1].L1Current
	}

	require.Eventually(t, func() bool { return lastL1() == 6 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, charger.SetCurrent(16))
	require.Eventually(t, func() bool { return sim.Station.Current() == 16 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return lastL1() == 16 }, 3*time.Second, 10*time.Millisecond)

	stopRun()
	assert.ErrorIs(t, <-runDone, context.Canceled)

	stats := charger.Statistics()
	assert.Greater(t, stats.ValidFrames, uint64(1))
	assert.Zero(t, stats.ChecksumErrors)
	assert.Equal(t, uint64(1), stats.CommandsSent)
}
