// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"encoding/binary"
	"fmt"
)

// ATCommandStatus is the status byte of an AT command response.
type ATCommandStatus uint8

// AT command status values
const (
	ATStatusOK               ATCommandStatus = 0x00
	ATStatusError            ATCommandStatus = 0x01
	ATStatusInvalidCommand   ATCommandStatus = 0x02
	ATStatusInvalidParameter ATCommandStatus = 0x03
	ATStatusTxFailure        ATCommandStatus = 0x04
)

func (s ATCommandStatus) String() string {
	switch s {
	case ATStatusOK:
		return "OK"
	case ATStatusError:
		return "ERROR"
	case ATStatusInvalidCommand:
		return "INVALID_COMMAND"
	case ATStatusInvalidParameter:
		return "INVALID_PARAMETER"
	case ATStatusTxFailure:
		return "TX_FAILURE"
	}
	return fmt.Sprintf("STATUS_0x%02X", uint8(s))
}

// ATCommandPacket (0x08) queries or sets a parameter on the local module.
// Parameter may be changed after construction.
type ATCommandPacket struct {
	correlated
	Command   string
	Parameter []byte
}

// NewATCommandPacket creates an AT_COMMAND packet.
// command is the two-character AT command, e.g. "NI".
func NewATCommandPacket(frameID int, command string, parameter []byte) (*ATCommandPacket, error) {
	p := &ATCommandPacket{Parameter: parameter}
	if err := p.SetFrameID(frameID); err != nil {
		return nil, err
	}
	if err := checkCommand(command); err != nil {
		return nil, err
	}
	p.Command = command
	return p, nil
}

func (p *ATCommandPacket) FrameType() FrameType { return FrameATCommand }

func (p *ATCommandPacket) IsBroadcast() bool { return false }

func (p *ATCommandPacket) MarshalPayload() ([]byte, error) {
	if err := checkCommand(p.Command); err != nil {
		return nil, err
	}
	out := make([]byte, 0, 3+len(p.Parameter))
	out = append(out, p.frameIDOrZero())
	out = append(out, p.Command...)
	return append(out, p.Parameter...), nil
}

func decodeATCommand(data []byte) (Packet, error) {
	p := &ATCommandPacket{}
	p.id, p.hasID = data[0], true
	p.Command = string(data[1:3])
	p.Parameter = tail(data, 3)
	return p, nil
}

// ATCommandQueuePacket (0x09) is an AT command whose value is queued until
// an AC or a regular AT command applies it.
type ATCommandQueuePacket struct {
	ATCommandPacket
}

// NewATCommandQueuePacket creates an AT_COMMAND_QUEUE packet.
func NewATCommandQueuePacket(frameID int, command string, parameter []byte) (*ATCommandQueuePacket, error) {
	p, err := NewATCommandPacket(frameID, command, parameter)
	if err != nil {
		return nil, err
	}
	return &ATCommandQueuePacket{ATCommandPacket: *p}, nil
}

func (p *ATCommandQueuePacket) FrameType() FrameType { return FrameATCommandQueue }

func decodeATCommandQueue(data []byte) (Packet, error) {
	p, _ := decodeATCommand(data)
	return &ATCommandQueuePacket{ATCommandPacket: *p.(*ATCommandPacket)}, nil
}

// ATCommandResponsePacket (0x88) answers an AT_COMMAND or AT_COMMAND_QUEUE
// with the same frame ID.
type ATCommandResponsePacket struct {
	correlated
	Command string
	Status  ATCommandStatus
	Value   []byte
}

// NewATCommandResponsePacket creates an AT_COMMAND_RESPONSE packet.
func NewATCommandResponsePacket(frameID int, command string, status ATCommandStatus, value []byte) (*ATCommandResponsePacket, error) {
	p := &ATCommandResponsePacket{Status: status, Value: value}
	if err := p.SetFrameID(frameID); err != nil {
		return nil, err
	}
	if err := checkCommand(command); err != nil {
		return nil, err
	}
	p.Command = command
	return p, nil
}

func (p *ATCommandResponsePacket) FrameType() FrameType { return FrameATCommandResponse }

func (p *ATCommandResponsePacket) IsBroadcast() bool { return false }

func (p *ATCommandResponsePacket) MarshalPayload() ([]byte, error) {
	if err := checkCommand(p.Command); err != nil {
		return nil, err
	}
	out := make([]byte, 0, 4+len(p.Value))
	out = append(out, p.frameIDOrZero())
	out = append(out, p.Command...)
	out = append(out, byte(p.Status))
	return append(out, p.Value...), nil
}

func decodeATCommandResponse(data []byte) (Packet, error) {
	p := &ATCommandResponsePacket{
		Command: string(data[1:3]),
		Status:  ATCommandStatus(data[3]),
		Value:   tail(data, 4),
	}
	p.id, p.hasID = data[0], true
	return p, nil
}

// RemoteATCommandPacket (0x17) runs an AT command on another node.
type RemoteATCommandPacket struct {
	correlated
	Dest64    uint64
	Dest16    uint16
	Options   uint8
	Command   string
	Parameter []byte
}

// Remote AT command option bits
const (
	RemoteOptionDisableAck = 0x01
	RemoteOptionApplyNow   = 0x02
)

// NewRemoteATCommandPacket creates a REMOTE_AT_COMMAND packet.
func NewRemoteATCommandPacket(frameID int, dest64 uint64, dest16 int, options int, command string, parameter []byte) (*RemoteATCommandPacket, error) {
	p := &RemoteATCommandPacket{Dest64: dest64, Parameter: parameter}
	if err := p.SetFrameID(frameID); err != nil {
		return nil, err
	}
	var err error
	if p.Dest16, err = checkUint16("16-bit address", dest16); err != nil {
		return nil, err
	}
	if p.Options, err = checkUint8("Transmit options", options); err != nil {
		return nil, err
	}
	if err := checkCommand(command); err != nil {
		return nil, err
	}
	p.Command = command
	return p, nil
}

func (p *RemoteATCommandPacket) FrameType() FrameType { return FrameRemoteATCommand }

func (p *RemoteATCommandPacket) IsBroadcast() bool {
	return p.Dest64 == Broadcast64 || p.Dest16 == Broadcast16
}

func (p *RemoteATCommandPacket) MarshalPayload() ([]byte, error) {
	if err := checkCommand(p.Command); err != nil {
		return nil, err
	}
	out := make([]byte, 14, 14+len(p.Parameter))
	out[0] = p.frameIDOrZero()
	binary.BigEndian.PutUint64(out[1:9], p.Dest64)
	binary.BigEndian.PutUint16(out[9:11], p.Dest16)
	out[11] = p.Options
	copy(out[12:14], p.Command)
	return append(out, p.Parameter...), nil
}

func decodeRemoteATCommand(data []byte) (Packet, error) {
	p := &RemoteATCommandPacket{
		Dest64:    binary.BigEndian.Uint64(data[1:9]),
		Dest16:    binary.BigEndian.Uint16(data[9:11]),
		Options:   data[11],
		Command:   string(data[12:14]),
		Parameter: tail(data, 14),
	}
	p.id, p.hasID = data[0], true
	return p, nil
}

// RemoteATCommandResponsePacket (0x97) answers a REMOTE_AT_COMMAND.
type RemoteATCommandResponsePacket struct {
	correlated
	Source64 uint64
	Source16 uint16
	Command  string
	Status   ATCommandStatus
	Value    []byte
}

// NewRemoteATCommandResponsePacket creates a REMOTE_AT_COMMAND_RESPONSE packet.
func NewRemoteATCommandResponsePacket(frameID int, source64 uint64, source16 int, command string, status ATCommandStatus, value []byte) (*RemoteATCommandResponsePacket, error) {
	p := &RemoteATCommandResponsePacket{Source64: source64, Status: status, Value: value}
	if err := p.SetFrameID(frameID); err != nil {
		return nil, err
	}
	var err error
	if p.Source16, err = checkUint16("16-bit address", source16); err != nil {
		return nil, err
	}
	if err := checkCommand(command); err != nil {
		return nil, err
	}
	p.Command = command
	return p, nil
}

func (p *RemoteATCommandResponsePacket) FrameType() FrameType {
	return FrameRemoteATCommandResponse
}

func (p *RemoteATCommandResponsePacket) IsBroadcast() bool { return false }

func (p *RemoteATCommandResponsePacket) MarshalPayload() ([]byte, error) {
	if err := checkCommand(p.Command); err != nil {
		return nil, err
	}
	out := make([]byte, 14, 14+len(p.Value))
	out[0] = p.frameIDOrZero()
	binary.BigEndian.PutUint64(out[1:9], p.Source64)
	binary.BigEndian.PutUint16(out[9:11], p.Source16)
	copy(out[11:13], p.Command)
	out[13] = byte(p.Status)
	return append(out, p.Value...), nil
}

func decodeRemoteATCommandResponse(data []byte) (Packet, error) {
	p := &RemoteATCommandResponsePacket{
		Source64: binary.BigEndian.Uint64(data[1:9]),
		Source16: binary.BigEndian.Uint16(data[9:11]),
		Command:  string(data[11:13]),
		Status:   ATCommandStatus(data[13]),
		Value:    tail(data, 14),
	}
	p.id, p.hasID = data[0], true
	return p, nil
}

func checkCommand(command string) error {
	if len(command) != 2 {
		return invalidArgument("AT command must be 2 characters, got %q.", command)
	}
	return nil
}

func checkUint16(field string, v int) (uint16, error) {
	if v < 0 || v > 0xFFFF {
		return 0, invalidArgument("%s must be between 0 and 65535.", field)
	}
	return uint16(v), nil
}

func checkUint8(field string, v int) (uint8, error) {
	if v < 0 || v > 0xFF {
		return 0, invalidArgument("%s must be between 0 and 255.", field)
	}
	return uint8(v), nil
}

// tail returns a copy of data[from:], or nil when nothing follows.
func tail(data []byte, from int) []byte {
	if len(data) <= from {
		return nil
	}
	return append([]byte(nil), data[from:]...)
}
