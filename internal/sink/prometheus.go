// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink provides evbox.Sink implementations that export telemetry.
package sink

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

// NewRegistry creates a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Fanout publishes every value to each of its sinks in order
type Fanout []evbox.Sink

// Publish implements evbox.Sink
func (f Fanout) Publish(value float64) {
	for _, s := range f {
		s.Publish(value)
	}
}

// Gauges exports each telemetry field as a Prometheus gauge
type Gauges struct {
	gauges map[evbox.Field]prometheus.Gauge
}

// NewGauges registers one gauge per telemetry field on reg
func NewGauges(reg prometheus.Registerer) *Gauges {
	g := &Gauges{gauges: make(map[evbox.Field]prometheus.Gauge)}
	for _, def := range evbox.Fields() {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "evbox",
			Name:        def.Name,
			Help:        "Last reported " + def.Name + " (" + def.Unit + ").",
			ConstLabels: prometheus.Labels{"unit": def.Unit},
		})
		reg.MustRegister(gauge)
		g.gauges[def.Field] = gauge
	}
	return g
}

// Sink returns the sink that sets field's gauge
func (g *Gauges) Sink(field evbox.Field) evbox.Sink {
	gauge := g.gauges[field]
	return evbox.SinkFunc(func(v float64) { gauge.Set(v) })
}

// RegisterStatistics exports protocol counters read from snapshot on every scrape
func RegisterStatistics(reg prometheus.Registerer, snapshot func() evbox.Statistics) {
	counter := func(name, help string, get func(s *evbox.Statistics) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "evbox",
			Name:      name,
			Help:      help,
		}, func() float64 {
			s := snapshot()
			return float64(get(&s))
		})
	}

	reg.MustRegister(
		counter("frames_total", "Completed frames received.", func(s *evbox.Statistics) uint64 { return s.TotalFrames }),
		counter("frames_valid_total", "Frames that passed validation.", func(s *evbox.Statistics) uint64 { return s.ValidFrames }),
		counter("frames_length_errors_total", "Frames rejected for length.", func(s *evbox.Statistics) uint64 { return s.LengthErrors }),
		counter("frames_header_errors_total", "Frames rejected for header.", func(s *evbox.Statistics) uint64 { return s.HeaderErrors }),
		counter("frames_checksum_errors_total", "Frames rejected for checksum.", func(s *evbox.Statistics) uint64 { return s.ChecksumErrors }),
		counter("frames_malformed_total", "Frames with malformed fields.", func(s *evbox.Statistics) uint64 { return s.MalformedFields }),
		counter("dropped_bytes_total", "Bytes discarded outside frames.", func(s *evbox.Statistics) uint64 { return s.DroppedBytes }),
		counter("commands_sent_total", "Current setpoint commands transmitted.", func(s *evbox.Statistics) uint64 { return s.CommandsSent }),
	)
}
