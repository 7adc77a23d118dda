// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

// scriptedPort behaves like a serial port with a read timeout: each Read
// returns the next scripted chunk, and a nil chunk (or the end of the script)
// is a timeout reported as 0, nil.
type scriptedPort struct {
	chunks   [][]byte
	timeout  time.Duration
	setCalls int
	reads    int
}

func (p *scriptedPort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	p.setCalls++
	return nil
}

func (p *scriptedPort) Read(buf []byte) (int, error) {
	p.reads++
	if len(p.chunks) == 0 {
		return 0, nil
	}
	chunk := p.chunks[0]
	p.chunks = p.chunks[1:]
	return copy(buf, chunk), nil
}

// oneByteAtATime splits data into single-byte chunks.
func oneByteAtATime(data []byte) [][]byte {
	chunks := make([][]byte, len(data))
	for i, b := range data {
		chunks[i] = []byte{b}
	}
	return chunks
}

func registryWithout(code FrameType) *Registry {
	var kinds []Kind
	for _, k := range DefaultRegistry().Kinds() {
		if k.Type != code {
			kinds = append(kinds, k)
		}
	}
	return MustRegistry(kinds...)
}

func TestParsePacket_UnknownCode(t *testing.T) {
	reg := registryWithout(FrameGeneric)

	p, err := ParsePacket(bytes.NewReader([]byte{0x00, 0x01, 0xFF, 0x00}), ModeAPI, reg, 0)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	unknown, ok := p.(*UnknownPacket)
	if !ok {
		t.Fatalf("expected *UnknownPacket, got %T", p)
	}
	if unknown.Code != 0xFF {
		t.Errorf("Code = 0x%02X, want 0xFF", uint8(unknown.Code))
	}
	if len(unknown.Data) != 0 {
		t.Errorf("Data = % X, want empty", unknown.Data)
	}
	if unknown.NeedsFrameID() || unknown.IsBroadcast() {
		t.Error("unknown packets carry no frame ID and are never broadcast")
	}
}

func TestParsePacket_ChecksumMismatch(t *testing.T) {
	reg := registryWithout(FrameGeneric)

	_, err := ParsePacket(bytes.NewReader([]byte{0x00, 0x01, 0xFF, 0x01}), ModeAPI, reg, 0)
	var checksum *ChecksumError
	if !errors.As(err, &checksum) {
		t.Fatalf("expected ChecksumError, got %v", err)
	}
	if checksum.Expected != 0x00 {
		t.Errorf("Expected = 0x%02X, want 0x00", checksum.Expected)
	}
	if checksum.Received != 0x01 {
		t.Errorf("Received = 0x%02X, want 0x01", checksum.Received)
	}
}

func TestParsePacket_Escaped(t *testing.T) {
	p, err := ParsePacket(bytes.NewReader([]byte{0x00, 0x02, 0xFF, 0x7D, 0x5E, 0x82}), ModeAPIEscaped, nil, 0)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	g, ok := p.(*GenericPacket)
	if !ok {
		t.Fatalf("expected *GenericPacket, got %T", p)
	}
	if !bytes.Equal(g.Data, []byte{0x7E}) {
		t.Errorf("Data = % X, want 7E", g.Data)
	}
}

func TestParsePacket_EscapedLengthAndChecksum(t *testing.T) {
	// 16 data bytes give length 0x11, which must arrive escaped
	f := Frame{Type: FrameGeneric, Data: bytes.Repeat([]byte{0x13}, 16)}
	encoded := f.EscapedBytes()

	p, err := ParsePacket(bytes.NewReader(encoded[1:]), ModeAPIEscaped, nil, 0)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if g := p.(*GenericPacket); !bytes.Equal(g.Data, f.Data) {
		t.Errorf("Data = % X, want % X", g.Data, f.Data)
	}
}

func TestParsePacket_UnescapedSpecialByte(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  byte
	}{
		{"XON in payload", []byte{0x00, 0x02, 0xFF, 0x11, 0xED}, XON},
		{"XOFF in length", []byte{0x00, 0x13}, XOFF},
		{"delimiter in payload", []byte{0x00, 0x02, 0xFF, 0x7E, 0x82}, Delimiter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePacket(bytes.NewReader(tt.input), ModeAPIEscaped, nil, 0)
			var unescaped *UnescapedSpecialByteError
			if !errors.As(err, &unescaped) {
				t.Fatalf("expected UnescapedSpecialByteError, got %v", err)
			}
			if unescaped.Byte != tt.want {
				t.Errorf("Byte = 0x%02X, want 0x%02X", unescaped.Byte, tt.want)
			}
		})
	}
}

func TestParsePacket_PlainModeIgnoresSpecialBytes(t *testing.T) {
	p, err := ParsePacket(bytes.NewReader([]byte{0x00, 0x03, 0xFF, 0x11, 0x7D, 0x72}), ModeAPI, nil, 0)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if g := p.(*GenericPacket); !bytes.Equal(g.Data, []byte{0x11, 0x7D}) {
		t.Errorf("Data = % X, want 11 7D", g.Data)
	}
}

func TestParsePacket_InvalidMode(t *testing.T) {
	for _, mode := range []OperatingMode{0, 3, 255} {
		_, err := ParsePacket(bytes.NewReader([]byte{0x00, 0x01, 0xFF, 0x00}), mode, nil, 0)
		var invalid *InvalidArgumentError
		if !errors.As(err, &invalid) {
			t.Errorf("mode %d: expected InvalidArgumentError, got %v", mode, err)
		}
	}
}

func TestParsePacket_DecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty payload", []byte{0x00, 0x00, 0xFF}},
		{"AT command too short", []byte{0x00, 0x02, 0x08, 0x01, 0xF6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePacket(bytes.NewReader(tt.input), ModeAPI, nil, 0)
			var decode *DecodeError
			if !errors.As(err, &decode) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
		})
	}
}

func TestParsePacket_EndOfStream(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		stage string
	}{
		{"empty", nil, StageLength},
		{"half length", []byte{0x00}, StageLength},
		{"short payload", []byte{0x00, 0x03, 0xFF}, StagePayload},
		{"no checksum", []byte{0x00, 0x01, 0xFF}, StageChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePacket(bytes.NewReader(tt.input), ModeAPI, nil, 0)
			var incomplete *IncompletePacketError
			if !errors.As(err, &incomplete) {
				t.Fatalf("expected IncompletePacketError, got %v", err)
			}
			if incomplete.Stage != tt.stage {
				t.Errorf("Stage = %q, want %q", incomplete.Stage, tt.stage)
			}
			if !errors.Is(err, io.EOF) {
				t.Errorf("error should wrap io.EOF, got %v", err)
			}
		})
	}
}

func TestParsePacket_EscapeAtEndOfStream(t *testing.T) {
	_, err := ParsePacket(bytes.NewReader([]byte{0x00, 0x01, 0xFF, 0x7D}), ModeAPIEscaped, nil, 0)
	var incomplete *IncompletePacketError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompletePacketError, got %v", err)
	}
	if incomplete.Stage != StageChecksum {
		t.Errorf("Stage = %q, want %q", incomplete.Stage, StageChecksum)
	}
}

func TestParsePacket_ReadsExactlyOneFrame(t *testing.T) {
	first := []byte{0x00, 0x01, 0xFF, 0x00}
	second := []byte{0x7E, 0x00, 0x02, 0x8A, 0x06, 0x6F}
	r := bytes.NewReader(append(append([]byte(nil), first...), second...))

	if _, err := ParsePacket(r, ModeAPI, nil, 0); err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if r.Len() != len(second) {
		t.Fatalf("%d bytes left in stream, want %d", r.Len(), len(second))
	}

	rest, _ := io.ReadAll(r)
	p, err := Parse(rest, ModeAPI, nil)
	if err != nil {
		t.Fatalf("Parse of second frame failed: %v", err)
	}
	if ms, ok := p.(*ModemStatusPacket); !ok || ms.Status != ModemCoordinatorStarted {
		t.Errorf("second frame = %#v, want coordinator started modem status", p)
	}
}

func TestParsePacket_TimeoutReaderGap(t *testing.T) {
	port := &scriptedPort{chunks: [][]byte{{0x00}, nil, {0x01}, {0xFF}, {0x00}}}

	_, err := ParsePacket(port, ModeAPI, nil, 50*time.Millisecond)
	var incomplete *IncompletePacketError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompletePacketError, got %v", err)
	}
	if !errors.Is(err, ErrByteTimeout) {
		t.Errorf("error should wrap ErrByteTimeout, got %v", err)
	}
	if incomplete.Stage != StageLength {
		t.Errorf("Stage = %q, want %q", incomplete.Stage, StageLength)
	}
	if port.timeout != 50*time.Millisecond {
		t.Errorf("port timeout = %v, want 50ms", port.timeout)
	}
	if port.reads != 2 {
		t.Errorf("parser made %d reads, want 2 (no retry after a timeout)", port.reads)
	}
}

func TestParsePacket_TimeoutReaderTrickle(t *testing.T) {
	port := &scriptedPort{chunks: oneByteAtATime([]byte{0x00, 0x02, 0xFF, 0x7D, 0x5E, 0x82})}

	p, err := ParsePacket(port, ModeAPIEscaped, nil, 0)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if _, ok := p.(*GenericPacket); !ok {
		t.Errorf("expected *GenericPacket, got %T", p)
	}
	if port.setCalls != 1 {
		t.Errorf("SetReadTimeout called %d times, want 1", port.setCalls)
	}
	if port.timeout != DefaultByteTimeout {
		t.Errorf("port timeout = %v, want default %v", port.timeout, DefaultByteTimeout)
	}
}

func TestParsePacket_TimeoutBetweenEscapeAndValue(t *testing.T) {
	port := &scriptedPort{chunks: [][]byte{{0x00}, {0x02}, {0xFF}, {0x7D}}}

	_, err := ParsePacket(port, ModeAPIEscaped, nil, 0)
	var incomplete *IncompletePacketError
	if !errors.As(err, &incomplete) || !errors.Is(err, ErrByteTimeout) {
		t.Fatalf("expected IncompletePacketError wrapping ErrByteTimeout, got %v", err)
	}
	if incomplete.Stage != StagePayload {
		t.Errorf("Stage = %q, want %q", incomplete.Stage, StagePayload)
	}
}

// stallingReader never returns data or an error.
type stallingReader struct{}

func (stallingReader) Read([]byte) (int, error) { return 0, nil }

func TestParsePacket_NoProgress(t *testing.T) {
	_, err := ParsePacket(stallingReader{}, ModeAPI, nil, 0)
	if !errors.Is(err, io.ErrNoProgress) {
		t.Errorf("expected io.ErrNoProgress, got %v", err)
	}
}

// trickle writes data to w one byte at a time with a pause before each byte.
// It stops quietly when the pipe is closed.
func trickle(w net.Conn, data []byte, gap time.Duration) {
	for _, b := range data {
		time.Sleep(gap)
		if _, err := w.Write([]byte{b}); err != nil {
			return
		}
	}
}

func TestParsePacket_DeadlineGapExceedsTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go trickle(server, []byte{0x00, 0x01}, 0)

	start := time.Now()
	_, err := ParsePacket(client, ModeAPI, nil, 50*time.Millisecond)
	elapsed := time.Since(start)

	var incomplete *IncompletePacketError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompletePacketError, got %v", err)
	}
	if !errors.Is(err, ErrByteTimeout) {
		t.Errorf("error should wrap ErrByteTimeout, got %v", err)
	}
	if incomplete.Stage != StagePayload {
		t.Errorf("Stage = %q, want %q", incomplete.Stage, StagePayload)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("parse failed after %v, before the byte timeout", elapsed)
	}
}

func TestParsePacket_DeadlineSlowTrickle(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// Total time exceeds the per-byte timeout; every gap stays under it.
	frame := []byte{0x00, 0x02, 0x8A, 0x06, 0x6F}
	go trickle(server, frame, 30*time.Millisecond)

	p, err := ParsePacket(client, ModeAPI, nil, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if _, ok := p.(*ModemStatusPacket); !ok {
		t.Errorf("expected *ModemStatusPacket, got %T", p)
	}
}
