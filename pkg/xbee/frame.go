// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Frame is the envelope around one packet: a frame-type code and the
// kind-specific data that follows it. Two frames are equal when their encoded
// bytes are equal.
type Frame struct {
	Type FrameType
	Data []byte
}

// NewFrame builds the envelope for a packet.
func NewFrame(p Packet) (Frame, error) {
	data, err := p.MarshalPayload()
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Type: p.FrameType(), Data: data}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate checks that the frame fits the 16-bit length field.
func (f Frame) Validate() error {
	if len(f.Data) > MaxDataLength {
		return invalidArgument("Frame data too large: %d bytes (max %d).", len(f.Data), MaxDataLength)
	}
	return nil
}

// Length returns the value of the length field: the type byte plus data.
func (f Frame) Length() int {
	return 1 + len(f.Data)
}

// Payload returns the frame-type code followed by the data, as covered by the checksum.
func (f Frame) Payload() []byte {
	payload := make([]byte, 0, f.Length())
	payload = append(payload, byte(f.Type))
	return append(payload, f.Data...)
}

// Checksum returns the checksum byte for the frame.
func (f Frame) Checksum() byte {
	return Checksum(f.Payload())
}

// Bytes returns the plain (AP=1) encoding.
func (f Frame) Bytes() []byte {
	n := f.Length()
	out := make([]byte, 0, n+4)
	out = append(out, Delimiter, byte(n>>8), byte(n))
	out = append(out, byte(f.Type))
	out = append(out, f.Data...)
	return append(out, f.Checksum())
}

// EscapedBytes returns the escaped (AP=2) encoding. The leading delimiter is never escaped.
func (f Frame) EscapedBytes() []byte {
	plain := f.Bytes()
	out := make([]byte, 0, len(plain)*2)
	out = append(out, plain[0])
	return appendEscaped(out, plain[1:])
}

// Encode returns the encoding for mode.
func (f Frame) Encode(mode OperatingMode) ([]byte, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if mode == ModeAPIEscaped {
		return f.EscapedBytes(), nil
	}
	return f.Bytes(), nil
}

// Equal reports whether both frames encode to the same bytes.
func (f Frame) Equal(other Frame) bool {
	return bytes.Equal(f.Bytes(), other.Bytes())
}

// Key returns the plain encoding as a string, usable as a map key.
// Frames with equal keys are Equal.
func (f Frame) Key() string {
	return string(f.Bytes())
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (0x%02X) % X", f.Type, uint8(f.Type), f.Data)
}

// Marshal encodes p as a complete frame for mode.
func Marshal(p Packet, mode OperatingMode) ([]byte, error) {
	f, err := NewFrame(p)
	if err != nil {
		return nil, err
	}
	return f.Encode(mode)
}

// EscapeBytes byte-stuffs every special byte in data.
func EscapeBytes(data []byte) []byte {
	return appendEscaped(make([]byte, 0, len(data)*2), data)
}

func appendEscaped(dst, data []byte) []byte {
	for _, b := range data {
		if IsSpecial(b) {
			dst = append(dst, Escape, b^EscXor)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// UnescapeBytes reverses EscapeBytes.
func UnescapeBytes(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b == Escape:
			i++
			if i >= len(data) {
				return nil, &IncompletePacketError{Stage: "escape sequence", Err: fmt.Errorf("escape byte at end of data")}
			}
			out = append(out, data[i]^EscXor)
		case IsSpecial(b):
			return nil, &UnescapedSpecialByteError{Byte: b}
		default:
			out = append(out, b)
		}
	}
	return out, nil
}

// Parse decodes one complete frame held in data using reg (DefaultRegistry when nil).
func Parse(data []byte, mode OperatingMode, reg *Registry) (Packet, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if len(data) > 1 && data[0] != Delimiter {
		return nil, ErrMalformedDelimiter
	}
	rest := data
	if len(rest) > 0 && rest[0] == Delimiter {
		rest = rest[1:]
	}
	return ParsePacket(bytes.NewReader(rest), mode, reg, 0)
}

// ParseHex is Parse for a hex string. Whitespace anywhere in s is ignored.
func ParseHex(s string, mode OperatingMode, reg *Registry) (Packet, error) {
	data, err := DecodeHex(s)
	if err != nil {
		return nil, err
	}
	return Parse(data, mode, reg)
}

// DecodeHex decodes a hex string after removing all whitespace.
func DecodeHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, invalidArgument("invalid hex frame: %v", err)
	}
	return data, nil
}
