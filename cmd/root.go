// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/meshstat/pkg/config"
	"github.com/Thermoquad/meshstat/pkg/xbee"
)

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Framing flags
	modeName    string
	byteTimeout time.Duration
	logLevel    string

	// settings is the merged result of defaults, config file and flags
	settings = config.Default()
	logger   = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "meshstat",
	Short: "XBee API Frame Analyzer",
	Long: `Meshstat - A CLI tool for monitoring and exercising XBee-style radio modules
over their API frame interface.

Provides commands for raw frame logging, link statistics, AT commands, offline
frame encoding/decoding, capture replay, and an MQTT bridge.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

Framing:
  --mode escaped (AP=2, default) or --mode api (AP=1)
  --byte-timeout bounds the wait for each byte of a frame (default 300ms)

Settings may also be read from a TOML file given with --config; flags given on
the command line take precedence.

For WebSocket authentication, the password is read from the MESHSTAT_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Framing flags
	rootCmd.PersistentFlags().StringVar(&modeName, "mode", "escaped", "API mode: api (AP=1) or escaped (AP=2)")
	rootCmd.PersistentFlags().DurationVar(&byteTimeout, "byte-timeout", xbee.DefaultByteTimeout, "Maximum wait for each byte of a frame")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
}

// loadSettings merges the config file and explicitly set flags into settings.
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("mode") {
		mode, err := xbee.ParseOperatingMode(modeName)
		if err != nil {
			return fmt.Errorf("--mode: %w", err)
		}
		cfg.Mode = mode
	}
	if flags.Changed("byte-timeout") {
		if byteTimeout <= 0 {
			return fmt.Errorf("--byte-timeout must be positive")
		}
		cfg.ByteTimeout = byteTimeout
	}
	if flags.Changed("log-level") {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		cfg.LogLevel = level
	}

	settings = cfg
	logger = initLogger(settings.LogLevel)
	logger.Debug().
		Stringer("mode", settings.Mode).
		Dur("byte_timeout", settings.ByteTimeout).
		Msg("settings loaded")
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
