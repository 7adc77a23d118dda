// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

var (
	atTimeout int
	atRemote  string
	atQueue   bool
	atApply   bool
)

var atCmd = &cobra.Command{
	Use:   "at CMD [HEXPARAM]",
	Short: "Send an AT command and wait for its response",
	Long: `Send an AT command to the local module (or, with --remote, to another node)
and wait for the response carrying the same frame ID.

CMD is the two-character command, e.g. NI or ID. Without HEXPARAM the command
queries the current value; with it, the value is set. The parameter is given
as hex bytes, e.g. "7FFF".

Examples:
  meshstat -p /dev/ttyUSB0 at NI
  meshstat -p /dev/ttyUSB0 at ID 7FFF
  meshstat -p /dev/ttyUSB0 at --remote 0013A20040A1B2C3 D0 05

Exit codes:
  0 - Response received with status OK
  1 - Timeout, or response with an error status
  2 - Connection or argument error`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAT,
}

func init() {
	rootCmd.AddCommand(atCmd)
	atCmd.Flags().IntVar(&atTimeout, "timeout", 5, "Timeout in seconds to wait for the response")
	atCmd.Flags().StringVar(&atRemote, "remote", "", "64-bit address (hex) of a remote node")
	atCmd.Flags().BoolVar(&atQueue, "queue", false, "Queue the value instead of applying it (local only)")
	atCmd.Flags().BoolVar(&atApply, "apply", true, "Apply the value immediately (remote only)")
}

// buildATRequest creates the AT command frame described by the arguments.
func buildATRequest(frameID uint8, command string, hexParam string, remote string, queue, apply bool) (xbee.Packet, error) {
	command = strings.ToUpper(command)
	var param []byte
	if hexParam != "" {
		var err error
		param, err = xbee.DecodeHex(hexParam)
		if err != nil {
			return nil, err
		}
	}

	if remote != "" {
		dest64, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(remote), "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid remote address %q: %w", remote, err)
		}
		options := 0
		if apply {
			options |= xbee.RemoteOptionApplyNow
		}
		return xbee.NewRemoteATCommandPacket(int(frameID), dest64, xbee.Unknown16, options, command, param)
	}

	if queue {
		return xbee.NewATCommandQueuePacket(int(frameID), command, param)
	}
	return xbee.NewATCommandPacket(int(frameID), command, param)
}

// atResponseFor reports whether resp answers req: same frame ID and command,
// and a response kind matching the request kind. It returns the response status.
func atResponseFor(req, resp xbee.Packet) (xbee.ATCommandStatus, bool) {
	reqID, ok := req.FrameID()
	if !ok {
		return 0, false
	}
	respID, ok := resp.FrameID()
	if !ok || respID != reqID {
		return 0, false
	}

	switch r := resp.(type) {
	case *xbee.ATCommandResponsePacket:
		switch q := req.(type) {
		case *xbee.ATCommandPacket:
			return r.Status, q.Command == r.Command
		case *xbee.ATCommandQueuePacket:
			return r.Status, q.Command == r.Command
		}
	case *xbee.RemoteATCommandResponsePacket:
		if q, ok := req.(*xbee.RemoteATCommandPacket); ok {
			return r.Status, q.Command == r.Command
		}
	}
	return 0, false
}

// frameIDs allocates frame IDs for requests sent by this process.
var frameIDs xbee.FrameIDSequence

func runAT(cmd *cobra.Command, args []string) error {
	hexParam := ""
	if len(args) > 1 {
		hexParam = args[1]
	}
	request, err := buildATRequest(frameIDs.Next(), args[0], hexParam, atRemote, atQueue, atApply)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid command: %v\n", err)
		os.Exit(2)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Meshstat - AT Command\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Request: %s\n%s\n", xbee.FormatHeader(request), strings.TrimRight(xbee.FormatFields(request), "\n"))

	responseChan := make(chan xbee.Packet, 1)
	errChan := make(chan error, 1)
	reader := newFrameReader(conn)

	go func() {
		for {
			packet, err := reader.ReadPacket()
			if err != nil {
				if xbee.IsLinkClosed(err) {
					errChan <- err
					return
				}
				if !xbee.IsIdle(err) {
					logger.Debug().Err(err).Msg("frame rejected")
				}
				continue
			}
			if _, ok := atResponseFor(request, packet); ok {
				responseChan <- packet
				return
			}
			// Unrelated traffic (modem status, received data, ...)
			logger.Debug().Str("frame", xbee.FormatHeader(packet)).Msg("ignored")
		}
	}()

	startTime := time.Now()
	if err := newFrameWriter(conn).WritePacket(request); err != nil {
		fmt.Fprintf(os.Stderr, "SEND FAILED: %v\n", err)
		os.Exit(2)
	}

	select {
	case response := <-responseChan:
		rtt := time.Since(startTime)
		status, _ := atResponseFor(request, response)
		fmt.Printf("\nResponse (rtt=%v):\n", rtt.Round(time.Millisecond))
		fmt.Print(xbee.FormatPacket(response))
		if status != xbee.ATStatusOK {
			os.Exit(1)
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "READ FAILED: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(atTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT (no response in %ds)\n", atTimeout)
		os.Exit(1)
	}

	return nil
}
