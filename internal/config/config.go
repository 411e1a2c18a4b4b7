// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads evboxstat settings from flags, an optional YAML file
// and EVBOX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Flow control modes for the RS-485 driver-enable line
const (
	FlowControlNone        = "none"
	FlowControlRTS         = "rts"
	FlowControlRTSInverted = "rts-inverted"
)

// ConnectionConfig selects and configures the link to the charging station
type ConnectionConfig struct {
	Port          string        `mapstructure:"port" yaml:"port"`
	BaudRate      int           `mapstructure:"baud" yaml:"baud"`
	FlowControl   string        `mapstructure:"flow_control" yaml:"flow_control"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	URL           string        `mapstructure:"url" yaml:"url"`
	Username      string        `mapstructure:"username" yaml:"username"`
	Password      string        `mapstructure:"password" yaml:"password,omitempty"`
	SkipSSLVerify bool          `mapstructure:"no_ssl_verify" yaml:"no_ssl_verify"`
}

// LoggingConfig configures the diagnostic logger
type LoggingConfig struct {
	Level  string     `mapstructure:"level" yaml:"level"`
	Format string     `mapstructure:"format" yaml:"format"` // console|json
	File   FileConfig `mapstructure:"file" yaml:"file"`
}

// FileConfig configures rotating log file output. Empty Filename disables it.
type FileConfig struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// HTTPConfig configures the REST bridge
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MetricsPath  string        `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// MQTTConfig configures the MQTT publisher. Empty Broker disables it.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	Retain      bool   `mapstructure:"retain" yaml:"retain"`
}

// CommandConfig limits how often the current setpoint may be transmitted
type CommandConfig struct {
	RatePerMinute int `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
	Burst         int `mapstructure:"burst" yaml:"burst"`
}

// Config is the full evboxstat configuration
type Config struct {
	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	HTTP       HTTPConfig       `mapstructure:"http" yaml:"http"`
	MQTT       MQTTConfig       `mapstructure:"mqtt" yaml:"mqtt"`
	Command    CommandConfig    `mapstructure:"command" yaml:"command"`
}

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"port":          "connection.port",
	"baud":          "connection.baud",
	"flow-control":  "connection.flow_control",
	"url":           "connection.url",
	"username":      "connection.username",
	"no-ssl-verify": "connection.no_ssl_verify",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"log-file":      "logging.file.filename",
	"http-addr":     "http.addr",
	"mqtt-broker":   "mqtt.broker",
	"mqtt-prefix":   "mqtt.topic_prefix",
}

// Load reads configuration. Precedence: flags set on the command line,
// environment, config file, defaults. path may be empty.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EVBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("connection.port", "")
	v.SetDefault("connection.baud", 38400)
	v.SetDefault("connection.flow_control", FlowControlNone)
	v.SetDefault("connection.read_timeout", 100*time.Millisecond)
	v.SetDefault("connection.url", "")
	v.SetDefault("connection.username", "")
	v.SetDefault("connection.password", "")
	v.SetDefault("connection.no_ssl_verify", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.max_size_mb", 10)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 5*time.Second)
	v.SetDefault("http.metrics_path", "/metrics")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic_prefix", "evbox")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("command.rate_per_minute", 6)
	v.SetDefault("command.burst", 2)
}

// YAML renders the configuration in config file form. The password is never
// written out.
func (c Config) YAML() ([]byte, error) {
	c.Connection.Password = ""
	return yaml.Marshal(&c)
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Connection.FlowControl {
	case FlowControlNone, FlowControlRTS, FlowControlRTSInverted:
	default:
		return fmt.Errorf("invalid flow control %q (use none, rts or rts-inverted)", c.Connection.FlowControl)
	}
	if c.Connection.BaudRate <= 0 {
		return errors.New("baud rate must be positive")
	}
	if c.Command.RatePerMinute <= 0 {
		return errors.New("command rate must be positive")
	}
	return nil
}
