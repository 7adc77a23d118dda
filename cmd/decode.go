// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

var decodeCmd = &cobra.Command{
	Use:   "decode HEX...",
	Short: "Decode a hex-encoded frame",
	Long: `Parse one frame given as hex and print its decoded fields.

The hex may be split across arguments and may contain spaces. The frame is
parsed in the mode selected with --mode, so an escaped capture must be decoded
with --mode escaped and a plain one with --mode api.

Examples:
  meshstat decode 7E 00 04 08 01 4E 49 5F
  meshstat --mode api decode 7E0004080152535D`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

// decodeFrame parses a hex frame and renders it, raw bytes included.
func decodeFrame(hexFrame string, mode xbee.OperatingMode) (string, error) {
	packet, err := xbee.ParseHex(hexFrame, mode, nil)
	if err != nil {
		return "", err
	}
	frame, err := xbee.NewFrame(packet)
	if err != nil {
		return "", err
	}
	return xbee.FormatFrame(frame, packet), nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	out, err := decodeFrame(strings.Join(args, ""), settings.Mode)
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	fmt.Print(out)
	return nil
}
