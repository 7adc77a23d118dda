// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/meshstat/pkg/capture"
	"github.com/Thermoquad/meshstat/pkg/xbee"
)

var replayErrorsOnly bool

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a capture file recorded by raw_log",
	Long: `Read a capture file and decode every recorded frame, then print the
statistics for the whole capture.

Each record keeps the mode it was captured in, so no connection or --mode
is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayErrorsOnly, "errors-only", false, "Only print failed records")
}

// replayCapture decodes every record from r into out and returns the statistics.
func replayCapture(r io.Reader, out io.Writer, errorsOnly bool) (*xbee.Statistics, error) {
	records, err := capture.ReadAll(r)
	if err != nil {
		return nil, err
	}

	stats := xbee.NewStatistics()
	for i, rec := range records {
		packet, err := rec.Packet(nil)
		stats.Update(packet, err)

		header := fmt.Sprintf("#%d %s %s", i+1, rec.Time.Format("2006-01-02 15:04:05.000"), rec.Direction)
		if err != nil {
			fmt.Fprintf(out, "%s ERROR: %v\n", header, err)
			continue
		}
		if errorsOnly {
			continue
		}
		fmt.Fprintf(out, "%s %s\n%s", header, xbee.FormatHeader(packet), xbee.FormatFields(packet))
	}
	return stats, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	stats, err := replayCapture(f, os.Stdout, replayErrorsOnly)
	if err != nil {
		return fmt.Errorf("failed to read capture: %w", err)
	}
	fmt.Println()
	fmt.Print(stats.String())
	return nil
}
