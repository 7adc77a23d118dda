// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame counts and error rates on a link.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	ChecksumErrors   uint64
	IncompleteFrames uint64
	EscapeErrors     uint64
	DecodeErrors     uint64
	OtherErrors      uint64
	UnknownFrames    uint64
	BroadcastFrames  uint64
	SkippedBytes     uint64
	FramesByType     map[FrameType]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		FramesByType:   make(map[FrameType]uint64),
	}
}

// Update records the outcome of one ReadFrame call. Idle timeouts are not counted.
func (s *Statistics) Update(p Packet, err error) {
	if err != nil && IsIdle(err) {
		return
	}
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if err != nil {
		var (
			checksum   *ChecksumError
			incomplete *IncompletePacketError
			unescaped  *UnescapedSpecialByteError
			decode     *DecodeError
		)
		switch {
		case errors.As(err, &checksum):
			s.ChecksumErrors++
		case errors.As(err, &incomplete):
			s.IncompleteFrames++
		case errors.As(err, &unescaped):
			s.EscapeErrors++
		case errors.As(err, &decode):
			s.DecodeErrors++
		default:
			s.OtherErrors++
		}
		return
	}

	s.ValidFrames++
	if p == nil {
		return
	}
	if s.FramesByType == nil {
		s.FramesByType = make(map[FrameType]uint64)
	}
	s.FramesByType[p.FrameType()]++
	if _, ok := p.(*UnknownPacket); ok {
		s.UnknownFrames++
	}
	if p.IsBroadcast() {
		s.BroadcastFrames++
	}
}

// SetSkippedBytes records the reader's skipped-byte counter.
func (s *Statistics) SetSkippedBytes(n uint64) {
	s.SkippedBytes = n
}

// Errors returns the total number of failed frames.
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.IncompleteFrames + s.EscapeErrors + s.DecodeErrors + s.OtherErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.IncompleteFrames > 0 {
		result += fmt.Sprintf("Incomplete:      %8d (%.1f%%)\n", s.IncompleteFrames, percent(s.IncompleteFrames))
	}
	if s.EscapeErrors > 0 {
		result += fmt.Sprintf("Escape Errors:   %8d (%.1f%%)\n", s.EscapeErrors, percent(s.EscapeErrors))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.OtherErrors > 0 {
		result += fmt.Sprintf("Other Errors:    %8d (%.1f%%)\n", s.OtherErrors, percent(s.OtherErrors))
	}
	if s.UnknownFrames > 0 {
		result += fmt.Sprintf("Unknown Types:   %8d\n", s.UnknownFrames)
	}
	if s.BroadcastFrames > 0 {
		result += fmt.Sprintf("Broadcast:       %8d\n", s.BroadcastFrames)
	}
	if s.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", s.SkippedBytes)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
