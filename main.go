// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Meshstat - XBee API Frame Analyzer
//
// A CLI tool for monitoring, decoding and sending XBee-style API frames
// over a serial port or a WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/meshstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
