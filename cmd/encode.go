// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

var encodeCmd = &cobra.Command{
	Use:   "encode TYPE [HEXDATA...]",
	Short: "Encode frame data into plain and escaped frames",
	Long: `Build a frame from a frame type and its data, and print both encodings.

TYPE is a frame type name (e.g. AT_COMMAND, case-insensitive) or a code such
as 0x08. HEXDATA is everything after the frame-type byte: for AT_COMMAND the
frame ID, the two command characters and any parameter.

Examples:
  meshstat encode AT_COMMAND 01 4E49
  meshstat encode 0x8A 06`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
}

// parseFrameType accepts a registered frame type name or a numeric code.
func parseFrameType(reg *xbee.Registry, s string) (xbee.FrameType, error) {
	for _, k := range reg.Kinds() {
		if strings.EqualFold(k.Name, s) {
			return k.Type, nil
		}
	}
	code, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown frame type %q", s)
	}
	return xbee.FrameType(code), nil
}

// encodeFrame returns the plain and escaped encodings of a frame.
func encodeFrame(typeName, hexData string) (plain, escaped []byte, err error) {
	reg := xbee.DefaultRegistry()
	code, err := parseFrameType(reg, typeName)
	if err != nil {
		return nil, nil, err
	}
	data, err := xbee.DecodeHex(hexData)
	if err != nil {
		return nil, nil, err
	}

	frame := xbee.Frame{Type: code, Data: data}
	if err := frame.Validate(); err != nil {
		return nil, nil, err
	}
	// Make sure the data is valid for the frame type before printing it
	if _, err := reg.Decode(frame.Payload()); err != nil {
		return nil, nil, err
	}
	return frame.Bytes(), frame.EscapedBytes(), nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	plain, escaped, err := encodeFrame(args[0], strings.Join(args[1:], ""))
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	fmt.Printf("Plain (AP=1):   % X\n", plain)
	fmt.Printf("Escaped (AP=2): % X\n", escaped)
	return nil
}
