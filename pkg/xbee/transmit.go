// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"encoding/binary"
	"fmt"
)

// Receive option bits
const (
	ReceiveOptionAcknowledged = 0x01
	ReceiveOptionBroadcast    = 0x02
)

// TransmitRequestPacket (0x10) sends RF data to a node, or to every node when
// either destination address is the broadcast address.
type TransmitRequestPacket struct {
	correlated
	Dest64  uint64
	Dest16  uint16
	Radius  uint8
	Options uint8
	RFData  []byte
}

// NewTransmitRequestPacket creates a TRANSMIT_REQUEST packet. Use Unknown16 as
// dest16 when the 16-bit address is not known.
func NewTransmitRequestPacket(frameID int, dest64 uint64, dest16, radius, options int, data []byte) (*TransmitRequestPacket, error) {
	p := &TransmitRequestPacket{Dest64: dest64, RFData: data}
	if err := p.SetFrameID(frameID); err != nil {
		return nil, err
	}
	var err error
	if p.Dest16, err = checkUint16("16-bit address", dest16); err != nil {
		return nil, err
	}
	if p.Radius, err = checkUint8("Broadcast radius", radius); err != nil {
		return nil, err
	}
	if p.Options, err = checkUint8("Transmit options", options); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *TransmitRequestPacket) FrameType() FrameType { return FrameTransmitRequest }

func (p *TransmitRequestPacket) IsBroadcast() bool {
	return p.Dest64 == Broadcast64 || p.Dest16 == Broadcast16
}

func (p *TransmitRequestPacket) MarshalPayload() ([]byte, error) {
	out := make([]byte, 13, 13+len(p.RFData))
	out[0] = p.frameIDOrZero()
	binary.BigEndian.PutUint64(out[1:9], p.Dest64)
	binary.BigEndian.PutUint16(out[9:11], p.Dest16)
	out[11] = p.Radius
	out[12] = p.Options
	return append(out, p.RFData...), nil
}

func decodeTransmitRequest(data []byte) (Packet, error) {
	p := &TransmitRequestPacket{
		Dest64:  binary.BigEndian.Uint64(data[1:9]),
		Dest16:  binary.BigEndian.Uint16(data[9:11]),
		Radius:  data[11],
		Options: data[12],
		RFData:  tail(data, 13),
	}
	p.id, p.hasID = data[0], true
	return p, nil
}

// DeliveryStatus reports the outcome of a transmission.
type DeliveryStatus uint8

// Delivery status values
const (
	DeliverySuccess           DeliveryStatus = 0x00
	DeliveryMACAckFailure     DeliveryStatus = 0x01
	DeliveryCCAFailure        DeliveryStatus = 0x02
	DeliveryNetworkAckFailure DeliveryStatus = 0x21
	DeliveryNotJoined         DeliveryStatus = 0x22
	DeliverySelfAddressed     DeliveryStatus = 0x23
	DeliveryAddressNotFound   DeliveryStatus = 0x24
	DeliveryRouteNotFound     DeliveryStatus = 0x25
	DeliveryPayloadTooLarge   DeliveryStatus = 0x74
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliverySuccess:
		return "SUCCESS"
	case DeliveryMACAckFailure:
		return "MAC_ACK_FAILURE"
	case DeliveryCCAFailure:
		return "CCA_FAILURE"
	case DeliveryNetworkAckFailure:
		return "NETWORK_ACK_FAILURE"
	case DeliveryNotJoined:
		return "NOT_JOINED"
	case DeliverySelfAddressed:
		return "SELF_ADDRESSED"
	case DeliveryAddressNotFound:
		return "ADDRESS_NOT_FOUND"
	case DeliveryRouteNotFound:
		return "ROUTE_NOT_FOUND"
	case DeliveryPayloadTooLarge:
		return "PAYLOAD_TOO_LARGE"
	}
	return fmt.Sprintf("DELIVERY_0x%02X", uint8(s))
}

// TransmitStatusPacket (0x8B) reports delivery of the TRANSMIT_REQUEST with the same frame ID.
type TransmitStatusPacket struct {
	correlated
	Dest16    uint16
	Retries   uint8
	Delivery  DeliveryStatus
	Discovery uint8
}

// NewTransmitStatusPacket creates a TRANSMIT_STATUS packet.
func NewTransmitStatusPacket(frameID int, dest16, retries int, delivery DeliveryStatus, discovery int) (*TransmitStatusPacket, error) {
	p := &TransmitStatusPacket{Delivery: delivery}
	if err := p.SetFrameID(frameID); err != nil {
		return nil, err
	}
	var err error
	if p.Dest16, err = checkUint16("16-bit address", dest16); err != nil {
		return nil, err
	}
	if p.Retries, err = checkUint8("Retry count", retries); err != nil {
		return nil, err
	}
	if p.Discovery, err = checkUint8("Discovery status", discovery); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *TransmitStatusPacket) FrameType() FrameType { return FrameTransmitStatus }

func (p *TransmitStatusPacket) IsBroadcast() bool { return false }

func (p *TransmitStatusPacket) MarshalPayload() ([]byte, error) {
	out := make([]byte, 6)
	out[0] = p.frameIDOrZero()
	binary.BigEndian.PutUint16(out[1:3], p.Dest16)
	out[3] = p.Retries
	out[4] = byte(p.Delivery)
	out[5] = p.Discovery
	return out, nil
}

func decodeTransmitStatus(data []byte) (Packet, error) {
	p := &TransmitStatusPacket{
		Dest16:    binary.BigEndian.Uint16(data[1:3]),
		Retries:   data[3],
		Delivery:  DeliveryStatus(data[4]),
		Discovery: data[5],
	}
	p.id, p.hasID = data[0], true
	return p, nil
}

// ReceivePacket (0x90) delivers RF data received from another node.
type ReceivePacket struct {
	uncorrelated
	Source64 uint64
	Source16 uint16
	Options  uint8
	RFData   []byte
}

// NewReceivePacket creates a RECEIVE_PACKET.
func NewReceivePacket(source64 uint64, source16, options int, data []byte) (*ReceivePacket, error) {
	p := &ReceivePacket{Source64: source64, RFData: data}
	var err error
	if p.Source16, err = checkUint16("16-bit address", source16); err != nil {
		return nil, err
	}
	if p.Options, err = checkUint8("Receive options", options); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ReceivePacket) FrameType() FrameType { return FrameReceivePacket }

// IsBroadcast reports whether the sender addressed the packet to every node.
func (p *ReceivePacket) IsBroadcast() bool {
	return p.Options&ReceiveOptionBroadcast != 0
}

func (p *ReceivePacket) MarshalPayload() ([]byte, error) {
	out := make([]byte, 11, 11+len(p.RFData))
	binary.BigEndian.PutUint64(out[0:8], p.Source64)
	binary.BigEndian.PutUint16(out[8:10], p.Source16)
	out[10] = p.Options
	return append(out, p.RFData...), nil
}

func decodeReceivePacket(data []byte) (Packet, error) {
	return &ReceivePacket{
		Source64: binary.BigEndian.Uint64(data[0:8]),
		Source16: binary.BigEndian.Uint16(data[8:10]),
		Options:  data[10],
		RFData:   tail(data, 11),
	}, nil
}

// ModemStatus is the event code of a MODEM_STATUS packet.
type ModemStatus uint8

// Modem status values
const (
	ModemHardwareReset      ModemStatus = 0x00
	ModemWatchdogReset      ModemStatus = 0x01
	ModemJoined             ModemStatus = 0x02
	ModemDisassociated      ModemStatus = 0x03
	ModemCoordinatorStarted ModemStatus = 0x06
	ModemSecurityKeyUpdated ModemStatus = 0x07
	ModemVoltageExceeded    ModemStatus = 0x0D
	ModemConfigChanged      ModemStatus = 0x11
)

func (s ModemStatus) String() string {
	switch s {
	case ModemHardwareReset:
		return "HARDWARE_RESET"
	case ModemWatchdogReset:
		return "WATCHDOG_RESET"
	case ModemJoined:
		return "JOINED"
	case ModemDisassociated:
		return "DISASSOCIATED"
	case ModemCoordinatorStarted:
		return "COORDINATOR_STARTED"
	case ModemSecurityKeyUpdated:
		return "SECURITY_KEY_UPDATED"
	case ModemVoltageExceeded:
		return "VOLTAGE_EXCEEDED"
	case ModemConfigChanged:
		return "CONFIG_CHANGED"
	}
	return fmt.Sprintf("MODEM_0x%02X", uint8(s))
}

// ModemStatusPacket (0x8A) is sent by the module on reset, join and similar events.
type ModemStatusPacket struct {
	uncorrelated
	Status ModemStatus
}

func (p *ModemStatusPacket) FrameType() FrameType { return FrameModemStatus }

func (p *ModemStatusPacket) IsBroadcast() bool { return false }

func (p *ModemStatusPacket) MarshalPayload() ([]byte, error) {
	return []byte{byte(p.Status)}, nil
}

func decodeModemStatus(data []byte) (Packet, error) {
	return &ModemStatusPacket{Status: ModemStatus(data[0])}, nil
}
