// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package httpserver exposes a charging station over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/evboxstat/internal/config"
	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

// Controller is the part of evbox.Charger the server drives
type Controller interface {
	SetCurrent(amp float64) error
	Statistics() evbox.Statistics
}

// CurrentRequest is the body of PUT /current
type CurrentRequest struct {
	Current *float64 `json:"current" binding:"required"`
}

// CurrentResponse reports an accepted setpoint. Setpoint is the byte
// transmitted, which wraps above 25.5 A.
type CurrentResponse struct {
	Current  float64 `json:"current"`
	Setpoint uint8   `json:"setpoint"`
}

// Server wraps gin and the http.Server
type Server struct {
	srv        *http.Server
	engine     *gin.Engine
	controller Controller
	limiter    *rate.Limiter
	logger     *zap.Logger
	latest     atomic.Pointer[evbox.Telemetry]
}

// New creates the server and registers its routes. limiter is shared with any
// other command source. metricsHandler may be nil.
func New(cfg config.HTTPConfig, limiter *rate.Limiter, controller Controller, metricsHandler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:     gin.New(),
		controller: controller,
		limiter:    limiter,
		logger:     logger,
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	s.engine.GET("/readyz", func(c *gin.Context) {
		if s.latest.Load() != nil {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		s.engine.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	s.engine.GET("/telemetry", s.getTelemetry)
	s.engine.GET("/statistics", s.getStatistics)
	s.engine.PUT("/current", s.putCurrent)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// NewLimiter builds the command rate limiter from cfg
func NewLimiter(cfg config.CommandConfig) *rate.Limiter {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// Handler returns the route handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// UpdateTelemetry stores the latest report. Suitable for evbox.WithTelemetryHandler.
func (s *Server) UpdateTelemetry(t *evbox.Telemetry) {
	s.latest.Store(t)
}

// Start runs the server until Shutdown (blocking)
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) getTelemetry(c *gin.Context) {
	t := s.latest.Load()
	if t == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no telemetry received yet"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) getStatistics(c *gin.Context) {
	stats := s.controller.Statistics()
	stats.CalculateRates()
	c.JSON(http.StatusOK, gin.H{
		"total_frames":     stats.TotalFrames,
		"valid_frames":     stats.ValidFrames,
		"length_errors":    stats.LengthErrors,
		"header_errors":    stats.HeaderErrors,
		"checksum_errors":  stats.ChecksumErrors,
		"malformed_fields": stats.MalformedFields,
		"dropped_bytes":    stats.DroppedBytes,
		"commands_sent":    stats.CommandsSent,
		"frame_rate":       stats.FrameRate,
		"error_rate":       stats.ErrorRate,
	})
}

func (s *Server) putCurrent(c *gin.Context) {
	var req CurrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amp := *req.Current
	if !evbox.IsOperatorCurrent(amp) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "current must be 0 or between 9 and 32 A",
		})
		return
	}

	if !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "command rate exceeded"})
		return
	}

	sp, _ := evbox.Setpoint(amp)
	if err := s.controller.SetCurrent(amp); err != nil {
		s.logger.Error("Set current failed", zap.Float64("amp", amp), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("Current setpoint sent", zap.Float64("amp", amp), zap.String("client", c.ClientIP()))
	c.JSON(http.StatusOK, CurrentResponse{Current: amp, Setpoint: uint8(sp)})
}
