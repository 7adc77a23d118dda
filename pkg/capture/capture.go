// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records frames to, and replays them from, capture files.
//
// A capture file is a CBOR sequence (RFC 8742) of records. Each record is an
// array [time, direction, mode, raw, error] where raw holds the frame bytes
// exactly as they appear on the wire in that mode.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

// Direction tells whether a frame was received from or sent to the module.
type Direction uint8

// Directions
const (
	DirectionRX Direction = 0
	DirectionTX Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionRX:
		return "RX"
	case DirectionTX:
		return "TX"
	}
	return fmt.Sprintf("DIR(%d)", uint8(d))
}

// Record is one captured frame, or one failed read when Err is set.
type Record struct {
	_ struct{} `cbor:",toarray"`

	Time      time.Time
	Direction Direction
	Mode      xbee.OperatingMode
	Raw       []byte
	Err       string
}

// NewRecord captures f as encoded for mode.
func NewRecord(ts time.Time, dir Direction, mode xbee.OperatingMode, f xbee.Frame) (Record, error) {
	raw, err := f.Encode(mode)
	if err != nil {
		return Record{}, err
	}
	return Record{Time: ts, Direction: dir, Mode: mode, Raw: raw}, nil
}

// NewErrorRecord captures a failed read.
func NewErrorRecord(ts time.Time, dir Direction, mode xbee.OperatingMode, readErr error) Record {
	return Record{Time: ts, Direction: dir, Mode: mode, Err: readErr.Error()}
}

// ErrRecordedFailure is returned by Record.Packet for records of failed reads.
var ErrRecordedFailure = errors.New("capture: record holds a failed read")

// Packet parses the recorded frame with reg (xbee.DefaultRegistry when nil).
func (r Record) Packet(reg *xbee.Registry) (xbee.Packet, error) {
	if r.Err != "" {
		return nil, fmt.Errorf("%w: %s", ErrRecordedFailure, r.Err)
	}
	return xbee.Parse(r.Raw, r.Mode, reg)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Writer appends records to a capture file. Safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	count int
}

// NewWriter creates a capture writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: encMode.NewEncoder(w)}
}

// Write appends rec.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write capture record: %w", err)
	}
	w.count++
	return nil
}

// WriteFrame appends f as a record stamped with the current time.
func (w *Writer) WriteFrame(dir Direction, mode xbee.OperatingMode, f xbee.Frame) error {
	rec, err := NewRecord(time.Now(), dir, mode, f)
	if err != nil {
		return err
	}
	return w.Write(rec)
}

// WriteError appends a failed read stamped with the current time.
func (w *Writer) WriteError(dir Direction, mode xbee.OperatingMode, readErr error) error {
	return w.Write(NewErrorRecord(time.Now(), dir, mode, readErr))
}

// Count returns how many records have been written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Reader reads records from a capture file.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a capture reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: decMode.NewDecoder(r)}
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read capture record: %w", err)
	}
	return rec, nil
}

// ReadAll returns every record in r.
func ReadAll(r io.Reader) ([]Record, error) {
	cr := NewReader(r)
	var records []Record
	for {
		rec, err := cr.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
