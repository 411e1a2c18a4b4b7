// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 38400, cfg.Connection.BaudRate)
	assert.Equal(t, FlowControlNone, cfg.Connection.FlowControl)
	assert.Equal(t, 100*time.Millisecond, cfg.Connection.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "/metrics", cfg.HTTP.MetricsPath)
	assert.Equal(t, "evbox", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 6, cfg.Command.RatePerMinute)
}

func TestLoadFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection:
  port: /dev/ttyUSB1
  baud: 9600
  flow_control: rts
  read_timeout: 250ms
mqtt:
  broker: tcp://localhost:1883
`), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("port", "", "")
	flags.Int("baud", 38400, "")
	require.NoError(t, flags.Parse([]string{"--baud", "19200"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Connection.Port, "file value used when flag unset")
	assert.Equal(t, 19200, cfg.Connection.BaudRate, "explicit flag wins over file")
	assert.Equal(t, FlowControlRTS, cfg.Connection.FlowControl)
	assert.Equal(t, 250*time.Millisecond, cfg.Connection.ReadTimeout)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("EVBOX_CONNECTION_URL", "ws://bridge.local/serial")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "ws://bridge.local/serial", cfg.Connection.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	cfg.Connection.FlowControl = "dtr"
	assert.Error(t, cfg.Validate())

	cfg.Connection.FlowControl = FlowControlRTSInverted
	assert.NoError(t, cfg.Validate())

	cfg.Connection.BaudRate = 0
	assert.Error(t, cfg.Validate())
}

func TestYAMLRoundTrip(t *testing.T) {
	t.Setenv("EVBOX_CONNECTION_PASSWORD", "hunter2")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "hunter2", cfg.Connection.Password)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "baud: 38400")
	assert.Contains(t, string(out), "read_timeout: 100ms")
	assert.NotContains(t, string(out), "hunter2")
	assert.Equal(t, "hunter2", cfg.Connection.Password, "rendering must not modify the config")

	path := filepath.Join(t.TempDir(), "evbox.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o600))

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}
