// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"errors"
	"io"
	"sync"
	"time"
)

// readBufferSize is how many raw bytes Reader pulls from the stream per read.
const readBufferSize = 256

// Reader reads frames from a byte stream. It skips bytes until a delimiter,
// then parses one frame. A failed frame does not affect the next ReadFrame.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	src      *byteSource
	mode     OperatingMode
	registry *Registry

	// set when a frame was cut short by a raw delimiter in escaped mode;
	// that delimiter starts the next frame
	delimiterSeen bool
	skipped       uint64
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	mode     OperatingMode
	timeout  time.Duration
	registry *Registry
}

// WithMode sets the operating mode. The default is ModeAPIEscaped.
func WithMode(mode OperatingMode) ReaderOption {
	return func(c *readerConfig) { c.mode = mode }
}

// WithByteTimeout sets the per-byte timeout. The default is DefaultByteTimeout.
func WithByteTimeout(d time.Duration) ReaderOption {
	return func(c *readerConfig) { c.timeout = d }
}

// WithRegistry sets the registry used to decode frames. The default is DefaultRegistry.
func WithRegistry(reg *Registry) ReaderOption {
	return func(c *readerConfig) { c.registry = reg }
}

// NewReader creates a frame reader on r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	cfg := readerConfig{
		mode:     ModeAPIEscaped,
		timeout:  DefaultByteTimeout,
		registry: defaultRegistry,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = defaultRegistry
	}
	return &Reader{
		src:      newByteSource(r, cfg.timeout, readBufferSize),
		mode:     cfg.mode,
		registry: cfg.registry,
	}
}

// Mode returns the reader's operating mode.
func (r *Reader) Mode() OperatingMode {
	return r.mode
}

// Registry returns the registry the reader decodes with.
func (r *Reader) Registry() *Registry {
	return r.registry
}

// Skipped returns how many bytes were discarded while looking for a delimiter.
func (r *Reader) Skipped() uint64 {
	return r.skipped
}

// ReadFrame reads the next frame and returns both its envelope and decoded packet.
//
// While waiting for a delimiter a quiet link reports an IncompletePacketError
// at StageDelimiter wrapping ErrByteTimeout; IsIdle recognises it.
func (r *Reader) ReadFrame() (Frame, Packet, error) {
	if err := r.mode.Validate(); err != nil {
		return Frame{}, nil, err
	}
	if !r.delimiterSeen {
		if err := r.seekDelimiter(); err != nil {
			return Frame{}, nil, err
		}
	}
	r.delimiterSeen = false

	f, p, err := parseFrame(r.src, r.mode, r.registry)
	var unescaped *UnescapedSpecialByteError
	if errors.As(err, &unescaped) && unescaped.Byte == Delimiter {
		r.delimiterSeen = true
	}
	return f, p, err
}

// ReadPacket reads the next frame and returns the decoded packet.
func (r *Reader) ReadPacket() (Packet, error) {
	_, p, err := r.ReadFrame()
	return p, err
}

func (r *Reader) seekDelimiter() error {
	for {
		b, err := r.src.readRaw()
		if err != nil {
			return &IncompletePacketError{Stage: StageDelimiter, Err: err}
		}
		if b == Delimiter {
			return nil
		}
		r.skipped++
	}
}

// IsIdle reports whether err only means that no frame started within the byte timeout.
func IsIdle(err error) bool {
	var incomplete *IncompletePacketError
	return errors.As(err, &incomplete) &&
		incomplete.Stage == StageDelimiter &&
		errors.Is(incomplete.Err, ErrByteTimeout)
}

// IsLinkClosed reports whether err means the underlying stream is gone: any
// transport failure other than a byte timeout. Frame errors such as a bad
// checksum leave the link usable.
func IsLinkClosed(err error) bool {
	var incomplete *IncompletePacketError
	if !errors.As(err, &incomplete) {
		return false
	}
	return !errors.Is(incomplete.Err, ErrByteTimeout)
}

// Writer writes frames to a byte stream. It is safe for concurrent use;
// each frame is written with a single Write call.
type Writer struct {
	mu   sync.Mutex
	w    io.Writer
	mode OperatingMode
}

// NewWriter creates a frame writer on w.
func NewWriter(w io.Writer, mode OperatingMode) *Writer {
	return &Writer{w: w, mode: mode}
}

// WriteFrame encodes f for the writer's mode and writes it.
func (w *Writer) WriteFrame(f Frame) error {
	data, err := f.Encode(w.mode)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(data)
	return err
}

// WritePacket encodes p and writes it.
func (w *Writer) WritePacket(p Packet) error {
	f, err := NewFrame(p)
	if err != nil {
		return err
	}
	return w.WriteFrame(f)
}
