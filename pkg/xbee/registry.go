// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import "fmt"

// DecodeFunc turns the bytes after the frame-type code into a Packet.
type DecodeFunc func(data []byte) (Packet, error)

// Kind describes one registered frame type.
type Kind struct {
	Type FrameType
	Name string
	// MinLength is the smallest data length (excluding the type byte) the
	// decoder accepts. Shorter payloads fail with DecodeError before Decode runs.
	MinLength int
	Decode    DecodeFunc
}

// UnknownName is the name reported for codes missing from a registry.
const UnknownName = "UNKNOWN"

// Registry maps frame-type codes to kinds. It is built once and not modified
// afterwards, so it can be shared by concurrent parsers.
type Registry struct {
	kinds [256]*Kind
}

// NewRegistry builds a registry from kinds. Registering the same code twice,
// or a kind without a decoder, is an error.
func NewRegistry(kinds ...Kind) (*Registry, error) {
	r := &Registry{}
	if err := r.add(kinds); err != nil {
		return nil, err
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error. Intended for package-level tables.
func MustRegistry(kinds ...Kind) *Registry {
	r, err := NewRegistry(kinds...)
	if err != nil {
		panic(err)
	}
	return r
}

// Extend returns a new registry holding r's kinds plus kinds. r is unchanged.
func (r *Registry) Extend(kinds ...Kind) (*Registry, error) {
	next := &Registry{kinds: r.kinds}
	if err := next.add(kinds); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *Registry) add(kinds []Kind) error {
	for i := range kinds {
		k := kinds[i]
		if k.Decode == nil {
			return fmt.Errorf("xbee: kind %s (0x%02X) has no decoder", k.Name, uint8(k.Type))
		}
		if prev := r.kinds[k.Type]; prev != nil {
			return fmt.Errorf("xbee: frame type 0x%02X registered twice (%s, %s)", uint8(k.Type), prev.Name, k.Name)
		}
		r.kinds[k.Type] = &k
	}
	return nil
}

// Lookup returns the kind registered for code. Unregistered codes resolve to
// an unknown kind that decodes into *UnknownPacket carrying the code.
func (r *Registry) Lookup(code FrameType) Kind {
	if k := r.kinds[code]; k != nil {
		return *k
	}
	return Kind{
		Type: code,
		Name: UnknownName,
		Decode: func(data []byte) (Packet, error) {
			return &UnknownPacket{Code: code, Data: append([]byte(nil), data...)}, nil
		},
	}
}

// Known reports whether code is registered.
func (r *Registry) Known(code FrameType) bool {
	return r.kinds[code] != nil
}

// Name returns the registered name for code, or UnknownName.
func (r *Registry) Name(code FrameType) string {
	if k := r.kinds[code]; k != nil {
		return k.Name
	}
	return UnknownName
}

// Kinds returns the registered kinds in code order.
func (r *Registry) Kinds() []Kind {
	var out []Kind
	for _, k := range r.kinds {
		if k != nil {
			out = append(out, *k)
		}
	}
	return out
}

// Decode dispatches an unescaped payload (frame-type code followed by data) to its kind.
// An unregistered code is not an error.
func (r *Registry) Decode(payload []byte) (Packet, error) {
	if len(payload) == 0 {
		return nil, &DecodeError{Name: UnknownName, Reason: "empty payload"}
	}
	k := r.Lookup(FrameType(payload[0]))
	data := payload[1:]
	if len(data) < k.MinLength {
		return nil, &DecodeError{
			Type:   k.Type,
			Name:   k.Name,
			Reason: fmt.Sprintf("payload too short: %d bytes (min %d)", len(data), k.MinLength),
		}
	}
	return k.Decode(data)
}

// defaultRegistry holds the built-in catalog.
var defaultRegistry = MustRegistry(
	Kind{Type: FrameATCommand, Name: "AT_COMMAND", MinLength: 3, Decode: decodeATCommand},
	Kind{Type: FrameATCommandQueue, Name: "AT_COMMAND_QUEUE", MinLength: 3, Decode: decodeATCommandQueue},
	Kind{Type: FrameTransmitRequest, Name: "TRANSMIT_REQUEST", MinLength: 13, Decode: decodeTransmitRequest},
	Kind{Type: FrameRemoteATCommand, Name: "REMOTE_AT_COMMAND", MinLength: 14, Decode: decodeRemoteATCommand},
	Kind{Type: FrameATCommandResponse, Name: "AT_COMMAND_RESPONSE", MinLength: 4, Decode: decodeATCommandResponse},
	Kind{Type: FrameModemStatus, Name: "MODEM_STATUS", MinLength: 1, Decode: decodeModemStatus},
	Kind{Type: FrameTransmitStatus, Name: "TRANSMIT_STATUS", MinLength: 6, Decode: decodeTransmitStatus},
	Kind{Type: FrameReceivePacket, Name: "RECEIVE_PACKET", MinLength: 11, Decode: decodeReceivePacket},
	Kind{Type: FrameRemoteATCommandResponse, Name: "REMOTE_AT_COMMAND_RESPONSE", MinLength: 14, Decode: decodeRemoteATCommandResponse},
	Kind{Type: FrameGeneric, Name: "GENERIC", Decode: decodeGeneric},
)

// DefaultRegistry returns the registry holding every kind this package implements.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
