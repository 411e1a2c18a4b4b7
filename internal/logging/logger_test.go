// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/evboxstat/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestNewConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))

	logger.Info("hidden")
	logger.Warn("Checksum validation failed")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"Checksum validation failed"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestNewRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evbox.log")
	logger := New(config.LoggingConfig{
		Level: "debug",
		File:  config.FileConfig{Filename: path, MaxSizeMB: 1},
	}, nil)

	logger.Debug("Processing received message")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Processing received message")
}

func TestNewWithoutOutputs(t *testing.T) {
	logger := New(config.LoggingConfig{}, nil)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
