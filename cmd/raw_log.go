// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/meshstat/pkg/capture"
	"github.com/Thermoquad/meshstat/pkg/xbee"
)

var (
	rawLogCapture string
	rawLogRaw     bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display API frames as they arrive.

Each frame is shown with a timestamp, its frame type, frame ID and decoded
fields. Frames that fail to parse are reported and the reader resynchronises
on the next delimiter.

With --capture, every frame (and every failed read) is also appended to a
capture file that the replay command can decode later.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogCapture, "capture", "", "Append frames to a capture file")
	rawLogCmd.Flags().BoolVar(&rawLogRaw, "raw", false, "Also print the raw bytes of each frame")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	capturePath := settings.CapturePath
	if cmd.Flags().Changed("capture") {
		capturePath = rawLogCapture
	}

	var recorder *capture.Writer
	if capturePath != "" {
		f, err := os.OpenFile(capturePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open capture file: %w", err)
		}
		defer f.Close()
		recorder = capture.NewWriter(f)
	}

	fmt.Printf("Meshstat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Mode: %s, byte timeout: %v\n", settings.Mode, settings.ByteTimeout)
	if capturePath != "" {
		fmt.Printf("Capture: %s\n", capturePath)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	reader := newFrameReader(conn)
	reg := reader.Registry()
	for {
		frame, packet, err := reader.ReadFrame()
		if err != nil {
			if xbee.IsIdle(err) {
				continue
			}
			if xbee.IsLinkClosed(err) {
				logger.Info().Err(err).Msg("connection closed")
				return nil
			}
			fmt.Printf("[ERROR] %v\n", err)
			if recorder != nil {
				if err := recorder.WriteError(capture.DirectionRX, settings.Mode, err); err != nil {
					logger.Warn().Err(err).Msg("capture failed")
				}
			}
			continue
		}

		if rawLogRaw {
			fmt.Print(reg.FormatFrame(frame, packet))
		} else {
			fmt.Print(reg.FormatPacket(packet))
		}
		if recorder != nil {
			if err := recorder.WriteFrame(capture.DirectionRX, settings.Mode, frame); err != nil {
				logger.Warn().Err(err).Msg("capture failed")
			}
		}
	}
}
