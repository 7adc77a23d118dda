// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package xbee implements the API frame layer used by XBee-style mesh radio
// modules over a serial link.
//
// A frame on the wire is
//
//	0x7E | lenHi | lenLo | frameType | data... | checksum
//
// where the 16-bit big-endian length counts frameType and data, and the
// checksum is 0xFF minus the low byte of the sum of those same bytes. In
// escaped mode (AP=2) every byte after the leading delimiter that equals one of
// the four special bytes is sent as 0x7D followed by the byte XOR 0x20.
//
// The package provides the envelope codec, a stream parser with a per-byte
// timeout, a frame-type registry with decode hooks, and a small catalog of
// packet kinds.
package xbee

import (
	"fmt"
	"time"
)

// Special bytes
const (
	Delimiter = 0x7E
	Escape    = 0x7D
	XON       = 0x11
	XOFF      = 0x13
	EscXor    = 0x20
)

// Frame size limits
const (
	// MaxFrameLength is the largest value the 16-bit length field can hold.
	MaxFrameLength = 0xFFFF
	// MaxDataLength is the largest kind-specific payload (length minus the type byte).
	MaxDataLength = MaxFrameLength - 1
)

// DefaultByteTimeout bounds the wait for each logical byte of a frame.
const DefaultByteTimeout = 300 * time.Millisecond

// Special addresses
const (
	Broadcast64 uint64 = 0x000000000000FFFF
	Unknown64   uint64 = 0xFFFFFFFFFFFFFFFF
)

// Special 16-bit addresses. They are untyped so they can be passed to
// constructors as int and compared with uint16 fields.
const (
	Broadcast16 = 0xFFFF
	Unknown16   = 0xFFFE
)

// OperatingMode selects plain or escaped framing.
type OperatingMode int

// Operating modes, numbered after the module's AP parameter.
const (
	ModeAPI        OperatingMode = 1
	ModeAPIEscaped OperatingMode = 2
)

// Validate reports an InvalidArgumentError for anything but ModeAPI and ModeAPIEscaped.
func (m OperatingMode) Validate() error {
	switch m {
	case ModeAPI, ModeAPIEscaped:
		return nil
	}
	return &InvalidArgumentError{Message: fmt.Sprintf("Operating mode must be %d (API) or %d (escaped API), got %d.", ModeAPI, ModeAPIEscaped, int(m))}
}

func (m OperatingMode) String() string {
	switch m {
	case ModeAPI:
		return "api"
	case ModeAPIEscaped:
		return "escaped"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseOperatingMode accepts "api"/"1" and "escaped"/"2".
func ParseOperatingMode(s string) (OperatingMode, error) {
	switch s {
	case "api", "1":
		return ModeAPI, nil
	case "escaped", "api-escaped", "2":
		return ModeAPIEscaped, nil
	}
	return 0, &InvalidArgumentError{Message: fmt.Sprintf("unknown operating mode %q", s)}
}

// FrameType is the one-byte code identifying a packet kind.
type FrameType uint8

// Frame types - commands (host → module)
const (
	FrameATCommand       FrameType = 0x08
	FrameATCommandQueue  FrameType = 0x09
	FrameTransmitRequest FrameType = 0x10
	FrameRemoteATCommand FrameType = 0x17
)

// Frame types - responses and indications (module → host)
const (
	FrameATCommandResponse       FrameType = 0x88
	FrameModemStatus             FrameType = 0x8A
	FrameTransmitStatus          FrameType = 0x8B
	FrameReceivePacket           FrameType = 0x90
	FrameRemoteATCommandResponse FrameType = 0x97
)

// FrameGeneric carries an opaque payload in either direction.
const FrameGeneric FrameType = 0xFF

// String returns the name the default registry gives this code.
func (t FrameType) String() string {
	return defaultRegistry.Name(t)
}

// IsSpecial reports whether b must be escaped in escaped mode.
func IsSpecial(b byte) bool {
	return b == Delimiter || b == Escape || b == XON || b == XOFF
}
