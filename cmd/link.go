// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

// newFrameReader creates a frame reader on conn using the configured mode and byte timeout.
func newFrameReader(conn io.Reader) *xbee.Reader {
	return xbee.NewReader(conn,
		xbee.WithMode(settings.Mode),
		xbee.WithByteTimeout(settings.ByteTimeout),
	)
}

// newFrameWriter creates a frame writer on conn using the configured mode.
func newFrameWriter(conn io.Writer) *xbee.Writer {
	return xbee.NewWriter(conn, settings.Mode)
}
