// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

// Checksum computes the frame checksum over the unescaped frame-type byte and data.
func Checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return 0xFF - sum
}

// ValidChecksum reports whether checksum matches payload.
func ValidChecksum(payload []byte, checksum byte) bool {
	var acc Accumulator
	acc.Write(payload)
	acc.Add(checksum)
	return acc.Validate()
}

// Accumulator is a running checksum. The zero value is ready to use.
//
// Generate returns the checksum for the bytes added so far; Validate reports
// whether the bytes added so far, including a trailing checksum, sum to 0xFF.
type Accumulator struct {
	sum byte
}

// Add adds a single byte.
func (a *Accumulator) Add(b byte) {
	a.sum += b
}

// Write adds p to the running sum. It never fails.
func (a *Accumulator) Write(p []byte) (int, error) {
	for _, b := range p {
		a.sum += b
	}
	return len(p), nil
}

// Reset clears the running sum.
func (a *Accumulator) Reset() {
	a.sum = 0
}

// Generate returns 0xFF minus the low byte of the sum.
func (a *Accumulator) Generate() byte {
	return 0xFF - a.sum
}

// Validate reports whether the low byte of the sum is 0xFF.
func (a *Accumulator) Validate() bool {
	return a.sum == 0xFF
}
