// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDelimiter is returned when a frame does not begin with Delimiter.
	ErrMalformedDelimiter = errors.New("xbee: frame does not start with delimiter 0x7E")
	// ErrByteTimeout is wrapped by IncompletePacketError when no byte arrived within the per-byte timeout.
	ErrByteTimeout = errors.New("xbee: byte timeout")
)

// IncompletePacketError reports that the stream ended, or went quiet for longer
// than the per-byte timeout, before a frame was complete.
type IncompletePacketError struct {
	Stage string // which part of the frame was being read
	Err   error
}

// Error implements the error interface
func (e *IncompletePacketError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("xbee: incomplete packet: %v", e.Err)
	}
	return fmt.Sprintf("xbee: incomplete packet reading %s: %v", e.Stage, e.Err)
}

func (e *IncompletePacketError) Unwrap() error {
	return e.Err
}

// ChecksumError reports a frame whose transmitted checksum does not match the computed one.
type ChecksumError struct {
	Expected byte
	Received byte
}

// Error implements the error interface
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("xbee: checksum mismatch: expected 0x%02X, got 0x%02X", e.Expected, e.Received)
}

// UnescapedSpecialByteError reports a reserved byte seen without a preceding escape in escaped mode.
type UnescapedSpecialByteError struct {
	Byte byte
}

// Error implements the error interface
func (e *UnescapedSpecialByteError) Error() string {
	return fmt.Sprintf("xbee: special byte 0x%02X not escaped", e.Byte)
}

// DecodeError reports a payload that carries a known frame type but does not
// satisfy that kind's layout.
type DecodeError struct {
	Type   FrameType
	Name   string
	Reason string
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("xbee: cannot decode %s (0x%02X): %s", e.Name, uint8(e.Type), e.Reason)
}

// InvalidArgumentError reports an out-of-range value passed when building a packet.
type InvalidArgumentError struct {
	Message string
}

// Error implements the error interface
func (e *InvalidArgumentError) Error() string {
	return e.Message
}

func invalidArgument(format string, args ...interface{}) error {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}
