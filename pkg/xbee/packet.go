// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"sync"
)

// Packet is a decoded or to-be-sent API frame.
//
// Every kind declares whether it carries a frame ID for correlating a command
// with its asynchronous response. Kinds without one report the ID as absent and
// ignore SetFrameID.
type Packet interface {
	// FrameType returns the one-byte code written at the start of the payload.
	FrameType() FrameType
	// NeedsFrameID reports whether this kind carries a frame ID.
	NeedsFrameID() bool
	// FrameID returns the frame ID and whether one has been assigned.
	FrameID() (uint8, bool)
	// SetFrameID assigns the frame ID. Values outside [0,255] fail with
	// InvalidArgumentError; kinds without a frame ID ignore the call.
	SetFrameID(id int) error
	// IsBroadcast reports whether the packet is addressed to, or was received as, a broadcast.
	IsBroadcast() bool
	// MarshalPayload returns the kind-specific bytes that follow the frame-type byte.
	MarshalPayload() ([]byte, error)
}

// correlated is embedded by kinds that carry a frame ID.
// The zero value means no ID has been assigned.
type correlated struct {
	id    uint8
	hasID bool
}

func (c *correlated) NeedsFrameID() bool { return true }

func (c *correlated) FrameID() (uint8, bool) { return c.id, c.hasID }

func (c *correlated) SetFrameID(id int) error {
	v, err := checkFrameID(id)
	if err != nil {
		return err
	}
	c.id, c.hasID = v, true
	return nil
}

// uncorrelated is embedded by kinds without a frame ID.
type uncorrelated struct{}

func (uncorrelated) NeedsFrameID() bool { return false }

func (uncorrelated) FrameID() (uint8, bool) { return 0, false }

// SetFrameID is a no-op: the kind has nowhere to put an ID.
func (uncorrelated) SetFrameID(int) error { return nil }

func checkFrameID(id int) (uint8, error) {
	if id < 0 || id > 255 {
		return 0, invalidArgument("Frame ID must be between 0 and 255.")
	}
	return uint8(id), nil
}

// frameIDOrZero returns the assigned frame ID, or 0 when none is set.
func (c *correlated) frameIDOrZero() byte {
	return c.id
}

// FrameIDSequence hands out frame IDs 1..255 in a cycle. ID 0 tells the module
// not to send a response, so it is never returned. Safe for concurrent use.
type FrameIDSequence struct {
	mu   sync.Mutex
	last uint8
}

// Next returns the next frame ID.
func (s *FrameIDSequence) Next() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	if s.last == 0 {
		s.last = 1
	}
	return s.last
}

// GenericPacket carries an opaque payload under FrameGeneric.
type GenericPacket struct {
	uncorrelated
	Data []byte
}

// NewGenericPacket creates a generic packet. The data slice is copied.
func NewGenericPacket(data []byte) *GenericPacket {
	return &GenericPacket{Data: append([]byte(nil), data...)}
}

func (p *GenericPacket) FrameType() FrameType { return FrameGeneric }

func (p *GenericPacket) IsBroadcast() bool { return false }

func (p *GenericPacket) MarshalPayload() ([]byte, error) {
	return append([]byte(nil), p.Data...), nil
}

func decodeGeneric(data []byte) (Packet, error) {
	return NewGenericPacket(data), nil
}

// UnknownPacket holds a frame whose type code is not in the registry. The
// original code and remaining bytes are kept so the frame can be re-encoded.
type UnknownPacket struct {
	uncorrelated
	Code FrameType
	Data []byte
}

func (p *UnknownPacket) FrameType() FrameType { return p.Code }

func (p *UnknownPacket) IsBroadcast() bool { return false }

func (p *UnknownPacket) MarshalPayload() ([]byte, error) {
	return append([]byte(nil), p.Data...), nil
}
