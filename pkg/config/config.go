// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads meshstat settings from an optional TOML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

// Defaults
const (
	DefaultBaud        = 9600
	DefaultTopicPrefix = "meshstat"
	DefaultLogLevel    = "info"
)

// Config holds connection, framing and bridge settings.
type Config struct {
	Port        string
	Baud        int
	URL         string
	Username    string
	NoSSLVerify bool

	Mode        xbee.OperatingMode
	ByteTimeout time.Duration

	LogLevel    zerolog.Level
	CapturePath string

	MQTT MQTTConfig
}

// MQTTConfig configures the MQTT bridge.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	QoS      byte
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Baud:        DefaultBaud,
		Mode:        xbee.ModeAPIEscaped,
		ByteTimeout: xbee.DefaultByteTimeout,
		LogLevel:    zerolog.InfoLevel,
		MQTT: MQTTConfig{
			Topic: DefaultTopicPrefix,
		},
	}
}

type fileConfig struct {
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`
	Mode        string `toml:"mode"`
	ByteTimeout string `toml:"byte_timeout"`
	LogLevel    string `toml:"log_level"`
	Capture     string `toml:"capture"`

	MQTT struct {
		Broker   string `toml:"broker"`
		Topic    string `toml:"topic"`
		ClientID string `toml:"client_id"`
		Username string `toml:"username"`
		QoS      int    `toml:"qos"`
	} `toml:"mqtt"`
}

// Load reads path on top of Default. Keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(Default(), raw, meta)
}

// Parse is Load for TOML held in memory.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(Default(), raw, meta)
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return Config{}, fmt.Errorf("baud must be positive, got %d", raw.Baud)
		}
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("username") {
		cfg.Username = strings.TrimSpace(raw.Username)
	}
	if meta.IsDefined("no_ssl_verify") {
		cfg.NoSSLVerify = raw.NoSSLVerify
	}

	if meta.IsDefined("mode") {
		mode, err := xbee.ParseOperatingMode(strings.TrimSpace(raw.Mode))
		if err != nil {
			return Config{}, fmt.Errorf("parse mode: %w", err)
		}
		cfg.Mode = mode
	}
	if meta.IsDefined("byte_timeout") {
		d, err := ParseTimeout(raw.ByteTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse byte_timeout: %w", err)
		}
		cfg.ByteTimeout = d
	}

	if meta.IsDefined("log_level") {
		level, err := zerolog.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("capture") {
		cfg.CapturePath = strings.TrimSpace(raw.Capture)
	}

	if meta.IsDefined("mqtt", "broker") {
		cfg.MQTT.Broker = strings.TrimSpace(raw.MQTT.Broker)
	}
	if meta.IsDefined("mqtt", "topic") {
		topic := strings.Trim(strings.TrimSpace(raw.MQTT.Topic), "/")
		if topic == "" {
			return Config{}, fmt.Errorf("mqtt.topic must not be empty")
		}
		cfg.MQTT.Topic = topic
	}
	if meta.IsDefined("mqtt", "client_id") {
		cfg.MQTT.ClientID = strings.TrimSpace(raw.MQTT.ClientID)
	}
	if meta.IsDefined("mqtt", "username") {
		cfg.MQTT.Username = strings.TrimSpace(raw.MQTT.Username)
	}
	if meta.IsDefined("mqtt", "qos") {
		if raw.MQTT.QoS < 0 || raw.MQTT.QoS > 2 {
			return Config{}, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", raw.MQTT.QoS)
		}
		cfg.MQTT.QoS = byte(raw.MQTT.QoS)
	}

	return cfg, nil
}

// ParseTimeout parses a per-byte timeout such as "300ms". Zero and negative
// values are rejected; the parser has no "wait forever" setting.
func ParseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", d)
	}
	return d, nil
}
