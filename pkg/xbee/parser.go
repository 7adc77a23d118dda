// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"errors"
	"io"
	"os"
	"time"
)

// Parse stages, reported in IncompletePacketError.Stage
const (
	StageDelimiter = "delimiter"
	StageLength    = "length"
	StagePayload   = "payload"
	StageChecksum  = "checksum"
)

// TimeoutReader is a stream with a native read timeout, such as a
// go.bug.st/serial port. A Read that returns 0, nil means the timeout elapsed.
type TimeoutReader interface {
	io.Reader
	SetReadTimeout(t time.Duration) error
}

// DeadlineReader is a stream with read deadlines, such as a net.Conn.
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// maxEmptyReads bounds consecutive 0, nil reads from a reader without a timeout primitive.
const maxEmptyReads = 100

// byteSource reads raw bytes with a per-byte timeout. It never sleeps or
// polls: the wait is delegated to the stream's own timeout primitive.
type byteSource struct {
	r          io.Reader
	timeout    time.Duration
	buf        []byte
	pos, n     int
	err        error // deferred error from a short read
	timeoutSet bool
}

func newByteSource(r io.Reader, timeout time.Duration, bufSize int) *byteSource {
	if timeout <= 0 {
		timeout = DefaultByteTimeout
	}
	if bufSize < 1 {
		bufSize = 1
	}
	return &byteSource{r: r, timeout: timeout, buf: make([]byte, bufSize)}
}

// readRaw returns the next byte as it appeared on the wire.
func (s *byteSource) readRaw() (byte, error) {
	if s.pos < s.n {
		b := s.buf[s.pos]
		s.pos++
		return b, nil
	}
	if s.err != nil {
		err := s.err
		s.err = nil
		return 0, err
	}
	if err := s.fill(); err != nil {
		return 0, err
	}
	b := s.buf[s.pos]
	s.pos++
	return b, nil
}

func (s *byteSource) fill() error {
	s.pos, s.n = 0, 0

	switch r := s.r.(type) {
	case TimeoutReader:
		if !s.timeoutSet {
			if err := r.SetReadTimeout(s.timeout); err != nil {
				return err
			}
			s.timeoutSet = true
		}
		n, err := r.Read(s.buf)
		return s.filled(n, err, true)

	case DeadlineReader:
		if err := r.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return err
		}
		n, err := r.Read(s.buf)
		if isTimeout(err) {
			err = ErrByteTimeout
		}
		return s.filled(n, err, false)
	}

	for i := 0; i < maxEmptyReads; i++ {
		n, err := s.r.Read(s.buf)
		if n > 0 || err != nil {
			return s.filled(n, err, false)
		}
	}
	return io.ErrNoProgress
}

func (s *byteSource) filled(n int, err error, emptyIsTimeout bool) error {
	if n > 0 {
		s.n, s.err = n, err
		return nil
	}
	if err != nil {
		return err
	}
	if emptyIsTimeout {
		return ErrByteTimeout
	}
	return io.ErrNoProgress
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// readByte returns the next logical byte, resolving byte stuffing in escaped mode.
func (s *byteSource) readByte(mode OperatingMode, stage string) (byte, error) {
	b, err := s.readRaw()
	if err != nil {
		return 0, &IncompletePacketError{Stage: stage, Err: err}
	}
	if mode != ModeAPIEscaped || !IsSpecial(b) {
		return b, nil
	}
	if b != Escape {
		return 0, &UnescapedSpecialByteError{Byte: b}
	}
	b, err = s.readRaw()
	if err != nil {
		return 0, &IncompletePacketError{Stage: stage, Err: err}
	}
	return b ^ EscXor, nil
}

// ParsePacket reads one frame from r, starting at the length field (the
// delimiter has already been consumed), validates its checksum and decodes it
// with reg (DefaultRegistry when nil).
//
// Each logical byte must arrive within timeout (DefaultByteTimeout when zero);
// there is no limit on the frame as a whole. ParsePacket reads exactly the
// bytes of one frame and keeps no state between calls.
func ParsePacket(r io.Reader, mode OperatingMode, reg *Registry, timeout time.Duration) (Packet, error) {
	_, p, err := parseFrame(newByteSource(r, timeout, 1), mode, reg)
	return p, err
}

func parseFrame(src *byteSource, mode OperatingMode, reg *Registry) (Frame, Packet, error) {
	if err := mode.Validate(); err != nil {
		return Frame{}, nil, err
	}
	if reg == nil {
		reg = defaultRegistry
	}

	hi, err := src.readByte(mode, StageLength)
	if err != nil {
		return Frame{}, nil, err
	}
	lo, err := src.readByte(mode, StageLength)
	if err != nil {
		return Frame{}, nil, err
	}
	length := int(hi)<<8 | int(lo)

	payload := make([]byte, length)
	var acc Accumulator
	for i := range payload {
		b, err := src.readByte(mode, StagePayload)
		if err != nil {
			return Frame{}, nil, err
		}
		payload[i] = b
		acc.Add(b)
	}
	expected := acc.Generate()

	received, err := src.readByte(mode, StageChecksum)
	if err != nil {
		return Frame{}, nil, err
	}
	if received != expected {
		return Frame{}, nil, &ChecksumError{Expected: expected, Received: received}
	}

	p, err := reg.Decode(payload)
	if err != nil {
		return Frame{}, nil, err
	}
	return Frame{Type: FrameType(payload[0]), Data: payload[1:]}, p, nil
}
