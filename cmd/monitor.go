// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor link health and nodes with live statistics",
	Long: `Track frame errors, resynchronisation and node activity with statistics.

This command reads every frame on the link and reports:
  - Checksum failures and frames cut short by the byte timeout
  - Unescaped special bytes (escaped mode only)
  - Frames too short for their type
  - Garbage bytes skipped while hunting for a delimiter
  - Frame and error rates

By default, only errors are displayed. Use --show-all to display valid frames too.

In the terminal UI, nodes heard on the network are listed on the left. Type an
AT command (e.g. "NI" or "D0 05") into the command box and press Enter to send
it to the selected node, or to the local module.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, connInfo)
	}
	return runTextMode(conn, connInfo)
}

// readFrames reads frames from conn and hands each outcome to deliver until
// the link closes. Idle timeouts are dropped.
func readFrames(conn io.Reader, deliver func(frameMsg)) error {
	reader := newFrameReader(conn)
	for {
		frame, packet, err := reader.ReadFrame()
		if err != nil && xbee.IsIdle(err) {
			continue
		}
		if err != nil && xbee.IsLinkClosed(err) {
			return err
		}
		deliver(frameMsg{
			frame:   frame,
			packet:  packet,
			err:     err,
			skipped: reader.Skipped(),
		})
	}
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(conn Connection, connInfo string) error {
	m := initialMonitorModel(connInfo, showAll, newFrameWriter(conn))
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		err := readFrames(conn, func(msg frameMsg) { p.Send(msg) })
		p.Send(linkClosedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode(conn Connection, connInfo string) error {
	fmt.Printf("Meshstat - Link Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := xbee.NewStatistics()
	synchronized := false

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	frames := make(chan frameMsg, 10)
	closed := make(chan error, 1)
	go func() {
		closed <- readFrames(conn, func(msg frameMsg) { frames <- msg })
	}()

	for {
		select {
		case msg := <-frames:
			stats.Update(msg.packet, msg.err)
			stats.SetSkippedBytes(msg.skipped)

			if msg.err != nil {
				printFrameError(msg.err)
				continue
			}

			// The first good frame marks the link as in sync
			if !synchronized {
				synchronized = true
				if msg.skipped > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d bytes\n\n", msg.skipped)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}

			if showAll || isResponse(msg.packet) {
				fmt.Print(xbee.FormatPacket(msg.packet))
			}

		case err := <-closed:
			fmt.Println()
			fmt.Print(stats.String())
			logger.Info().Err(err).Msg("connection closed")
			return nil

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// printFrameError prints a frame error in highlighted format
func printFrameError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mFRAME ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// isResponse reports whether p answers a request, so it is shown even when
// only errors are displayed.
func isResponse(p xbee.Packet) bool {
	switch p.(type) {
	case *xbee.ATCommandResponsePacket, *xbee.RemoteATCommandResponsePacket, *xbee.TransmitStatusPacket:
		return true
	}
	return false
}
