// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

// must unwraps a constructor result in test tables.
func must[P Packet](p P, err error) P {
	if err != nil {
		panic(err)
	}
	return p
}

func TestFrameID_OutOfRange(t *testing.T) {
	const want = "Frame ID must be between 0 and 255."

	constructors := map[string]func(id int) error{
		"AT_COMMAND": func(id int) error {
			_, err := NewATCommandPacket(id, "NI", nil)
			return err
		},
		"AT_COMMAND_QUEUE": func(id int) error {
			_, err := NewATCommandQueuePacket(id, "NI", nil)
			return err
		},
		"AT_COMMAND_RESPONSE": func(id int) error {
			_, err := NewATCommandResponsePacket(id, "NI", ATStatusOK, nil)
			return err
		},
		"TRANSMIT_REQUEST": func(id int) error {
			_, err := NewTransmitRequestPacket(id, Broadcast64, Unknown16, 0, 0, []byte("hi"))
			return err
		},
		"TRANSMIT_STATUS": func(id int) error {
			_, err := NewTransmitStatusPacket(id, 0, 0, DeliverySuccess, 0)
			return err
		},
		"REMOTE_AT_COMMAND": func(id int) error {
			_, err := NewRemoteATCommandPacket(id, 0x0013A20040A1B2C3, Unknown16, 0, "D0", nil)
			return err
		},
		"REMOTE_AT_COMMAND_RESPONSE": func(id int) error {
			_, err := NewRemoteATCommandResponsePacket(id, 0x0013A20040A1B2C3, 0x1234, "D0", ATStatusOK, nil)
			return err
		},
	}

	for name, build := range constructors {
		t.Run(name, func(t *testing.T) {
			for _, id := range []int{256, -1, 1000} {
				err := build(id)
				var invalid *InvalidArgumentError
				if !errors.As(err, &invalid) {
					t.Fatalf("id %d: expected InvalidArgumentError, got %v", id, err)
				}
				if invalid.Message != want {
					t.Errorf("id %d: message = %q, want %q", id, invalid.Message, want)
				}
			}
			for _, id := range []int{0, 1, 255} {
				if err := build(id); err != nil {
					t.Errorf("id %d should be accepted, got %v", id, err)
				}
			}
		})
	}
}

func TestFrameID_ZeroValueIsAbsent(t *testing.T) {
	p := &ATCommandPacket{Command: "NI"}
	if !p.NeedsFrameID() {
		t.Fatal("AT_COMMAND should carry a frame ID")
	}
	if _, ok := p.FrameID(); ok {
		t.Error("zero-value packet should report no frame ID")
	}

	if err := p.SetFrameID(0); err != nil {
		t.Fatalf("SetFrameID(0) failed: %v", err)
	}
	if id, ok := p.FrameID(); !ok || id != 0 {
		t.Errorf("FrameID() = %d, %v; want 0, true", id, ok)
	}

	if err := p.SetFrameID(256); err == nil {
		t.Error("SetFrameID(256) should fail")
	}
	if id, _ := p.FrameID(); id != 0 {
		t.Errorf("failed SetFrameID changed the ID to %d", id)
	}
}

func TestFrameID_UncorrelatedKindsIgnoreSet(t *testing.T) {
	rx := must(NewReceivePacket(0x0013A20040A1B2C3, 0x1234, 0, []byte("x")))
	packets := []Packet{
		NewGenericPacket([]byte{1, 2}),
		&UnknownPacket{Code: 0x42},
		&ModemStatusPacket{Status: ModemJoined},
		rx,
	}

	for _, p := range packets {
		if p.NeedsFrameID() {
			t.Errorf("%T should not carry a frame ID", p)
		}
		for _, id := range []int{7, 256, -1} {
			if err := p.SetFrameID(id); err != nil {
				t.Errorf("%T.SetFrameID(%d) = %v, want nil", p, id, err)
			}
		}
		if _, ok := p.FrameID(); ok {
			t.Errorf("%T reports a frame ID after SetFrameID", p)
		}
	}
}

func TestIsBroadcast(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
		expect bool
	}{
		{
			name:   "transmit to broadcast 64-bit address",
			packet: must(NewTransmitRequestPacket(1, Broadcast64, Unknown16, 0, 0, []byte("hi"))),
			expect: true,
		},
		{
			name:   "transmit to broadcast 16-bit address",
			packet: must(NewTransmitRequestPacket(1, Unknown64, Broadcast16, 0, 0, []byte("hi"))),
			expect: true,
		},
		{
			name:   "transmit to unicast address",
			packet: must(NewTransmitRequestPacket(1, 0x0013A20040A1B2C3, Unknown16, 0, 0, []byte("hi"))),
			expect: false,
		},
		{
			name:   "remote AT to broadcast",
			packet: must(NewRemoteATCommandPacket(1, Broadcast64, Unknown16, 0, "NI", nil)),
			expect: true,
		},
		{
			name:   "receive with broadcast option",
			packet: must(NewReceivePacket(0x0013A20040A1B2C3, 0x1234, ReceiveOptionBroadcast, []byte("x"))),
			expect: true,
		},
		{
			name:   "receive acknowledged unicast",
			packet: must(NewReceivePacket(0x0013A20040A1B2C3, 0x1234, ReceiveOptionAcknowledged, []byte("x"))),
			expect: false,
		},
		{
			name:   "generic",
			packet: NewGenericPacket(nil),
			expect: false,
		},
		{
			name:   "AT command",
			packet: must(NewATCommandPacket(1, "NI", nil)),
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.packet.IsBroadcast(); got != tt.expect {
				t.Errorf("IsBroadcast() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestConstructorValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"AT command too long", func() error { _, err := NewATCommandPacket(1, "NIX", nil); return err }()},
		{"AT command empty", func() error { _, err := NewATCommandPacket(1, "", nil); return err }()},
		{"16-bit address too large", func() error {
			_, err := NewTransmitRequestPacket(1, Broadcast64, 0x10000, 0, 0, nil)
			return err
		}()},
		{"negative radius", func() error {
			_, err := NewTransmitRequestPacket(1, Broadcast64, Unknown16, -1, 0, nil)
			return err
		}()},
		{"options too large", func() error {
			_, err := NewReceivePacket(0, 0, 256, nil)
			return err
		}()},
		{"retries too large", func() error {
			_, err := NewTransmitStatusPacket(1, 0, 300, DeliverySuccess, 0)
			return err
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var invalid *InvalidArgumentError
			if !errors.As(tt.err, &invalid) {
				t.Errorf("expected InvalidArgumentError, got %v", tt.err)
			}
		})
	}
}

func TestPacketRoundTrip(t *testing.T) {
	packets := []Packet{
		must(NewATCommandPacket(1, "NI", nil)),
		must(NewATCommandPacket(2, "ID", []byte{0x7E, 0x7D})),
		must(NewATCommandQueuePacket(3, "BD", []byte{0x07})),
		must(NewATCommandResponsePacket(4, "NI", ATStatusOK, []byte("node-1"))),
		must(NewATCommandResponsePacket(5, "XX", ATStatusInvalidCommand, nil)),
		must(NewRemoteATCommandPacket(6, 0x0013A20040A1B2C3, 0xFFFE, RemoteOptionApplyNow, "D0", []byte{0x05})),
		must(NewRemoteATCommandResponsePacket(7, 0x0013A20040A1B2C3, 0x7D11, "D0", ATStatusOK, nil)),
		must(NewTransmitRequestPacket(8, Broadcast64, Unknown16, 0, 0, []byte("hello"))),
		must(NewTransmitStatusPacket(8, 0x1234, 2, DeliveryRouteNotFound, 0x01)),
		must(NewReceivePacket(0x0013A20040A1B2C3, 0x1234, ReceiveOptionAcknowledged, []byte{0x11, 0x13})),
		&ModemStatusPacket{Status: ModemCoordinatorStarted},
		NewGenericPacket([]byte{0xDE, 0xAD, 0xBE, 0xEF}),
	}

	for _, p := range packets {
		for _, mode := range []OperatingMode{ModeAPI, ModeAPIEscaped} {
			t.Run(FormatHeader(p)+"/"+mode.String(), func(t *testing.T) {
				encoded, err := Marshal(p, mode)
				if err != nil {
					t.Fatalf("Marshal failed: %v", err)
				}
				decoded, err := Parse(encoded, mode, nil)
				if err != nil {
					t.Fatalf("Parse failed: %v", err)
				}
				if !reflect.DeepEqual(decoded, p) {
					t.Errorf("round trip mismatch\n got: %#v\nwant: %#v", decoded, p)
				}
			})
		}
	}
}

func TestUnknownPacketRoundTrip(t *testing.T) {
	p := &UnknownPacket{Code: 0x42, Data: []byte{0x01, 0x7E}}

	encoded, err := Marshal(p, ModeAPIEscaped)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := Parse(encoded, ModeAPIEscaped, nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, p) {
		t.Errorf("got %#v, want %#v", decoded, p)
	}
}

func TestMutableFieldsAreEncoded(t *testing.T) {
	p := must(NewATCommandPacket(1, "NI", nil))
	p.Parameter = []byte("relay")

	encoded, err := Marshal(p, ModeAPI)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := Parse(encoded, ModeAPI, nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := string(decoded.(*ATCommandPacket).Parameter); got != "relay" {
		t.Errorf("Parameter = %q, want relay", got)
	}
}

func TestMarshal_InvalidCommandAfterMutation(t *testing.T) {
	p := must(NewATCommandPacket(1, "NI", nil))
	p.Command = "N"

	_, err := Marshal(p, ModeAPI)
	var invalid *InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidArgumentError, got %v", err)
	}
}

func TestFrameIDSequence(t *testing.T) {
	var seq FrameIDSequence

	if got := seq.Next(); got != 1 {
		t.Fatalf("first ID = %d, want 1", got)
	}
	for i := 2; i <= 255; i++ {
		if got := seq.Next(); int(got) != i {
			t.Fatalf("ID = %d, want %d", got, i)
		}
	}
	if got := seq.Next(); got != 1 {
		t.Errorf("ID after 255 = %d, want 1", got)
	}
}

func TestFrameIDSequence_Concurrent(t *testing.T) {
	var seq FrameIDSequence
	var mu sync.Mutex
	seen := make(map[uint8]int)

	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 51; i++ {
				id := seq.Next()
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 255 {
		t.Errorf("got %d distinct IDs, want 255", len(seen))
	}
	if seen[0] != 0 {
		t.Error("ID 0 must never be handed out")
	}
}
