// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// FormatPacket formats a packet into a human-readable block: a header line
// followed by indented field lines. Kind names come from DefaultRegistry.
func FormatPacket(p Packet) string {
	return defaultRegistry.FormatPacket(p)
}

// FormatFrame formats a packet followed by a hex dump of its plain encoding.
func FormatFrame(f Frame, p Packet) string {
	return defaultRegistry.FormatFrame(f, p)
}

// FormatHeader returns a one-line summary: name, code, frame ID and broadcast flag.
func FormatHeader(p Packet) string {
	return defaultRegistry.FormatHeader(p)
}

// FormatPacket is like the package-level FormatPacket but names kinds from r.
func (r *Registry) FormatPacket(p Packet) string {
	return r.formatPacketAt(time.Now(), p)
}

func (r *Registry) formatPacketAt(ts time.Time, p Packet) string {
	result := fmt.Sprintf("[%s] %s", ts.Format("15:04:05.000"), r.FormatHeader(p))
	return result + "\n" + FormatFields(p)
}

// FormatFrame is like the package-level FormatFrame but names kinds from r.
func (r *Registry) FormatFrame(f Frame, p Packet) string {
	return r.FormatPacket(p) + FormatHexDump("Raw", f.Bytes())
}

// FormatHeader is like the package-level FormatHeader but names kinds from r.
func (r *Registry) FormatHeader(p Packet) string {
	header := fmt.Sprintf("%s (0x%02X)", r.packetName(p), uint8(p.FrameType()))
	if id, ok := p.FrameID(); ok {
		header += fmt.Sprintf(" id=%d", id)
	} else if p.NeedsFrameID() {
		header += " id=-"
	}
	if p.IsBroadcast() {
		header += " broadcast"
	}
	return header
}

func (r *Registry) packetName(p Packet) string {
	if u, ok := p.(*UnknownPacket); ok {
		return fmt.Sprintf("%s[0x%02X]", UnknownName, uint8(u.Code))
	}
	return r.Name(p.FrameType())
}

// FormatFields formats the kind-specific fields, one per line.
func FormatFields(p Packet) string {
	switch p := p.(type) {
	case *ATCommandQueuePacket:
		return fmt.Sprintf("  Command: %s%s\n", p.Command, formatParameter(p.Parameter))

	case *ATCommandPacket:
		return fmt.Sprintf("  Command: %s%s\n", p.Command, formatParameter(p.Parameter))

	case *ATCommandResponsePacket:
		return fmt.Sprintf("  Command: %s, Status: %s%s\n", p.Command, p.Status, formatValue(p.Value))

	case *RemoteATCommandPacket:
		return fmt.Sprintf("  Dest: %016X/%04X, Options: 0x%02X, Command: %s%s\n",
			p.Dest64, p.Dest16, p.Options, p.Command, formatParameter(p.Parameter))

	case *RemoteATCommandResponsePacket:
		return fmt.Sprintf("  Source: %016X/%04X, Command: %s, Status: %s%s\n",
			p.Source64, p.Source16, p.Command, p.Status, formatValue(p.Value))

	case *TransmitRequestPacket:
		return fmt.Sprintf("  Dest: %016X/%04X, Radius: %d, Options: 0x%02X\n%s",
			p.Dest64, p.Dest16, p.Radius, p.Options, FormatHexDump("Data", p.RFData))

	case *TransmitStatusPacket:
		return fmt.Sprintf("  Dest16: %04X, Retries: %d, Delivery: %s, Discovery: 0x%02X\n",
			p.Dest16, p.Retries, p.Delivery, p.Discovery)

	case *ReceivePacket:
		return fmt.Sprintf("  Source: %016X/%04X, Options: 0x%02X\n%s",
			p.Source64, p.Source16, p.Options, FormatHexDump("Data", p.RFData))

	case *ModemStatusPacket:
		return fmt.Sprintf("  Status: %s (0x%02X)\n", p.Status, uint8(p.Status))

	case *GenericPacket:
		return FormatHexDump("Payload", p.Data)

	case *UnknownPacket:
		return FormatHexDump("Payload", p.Data)
	}

	data, err := p.MarshalPayload()
	if err != nil {
		return fmt.Sprintf("  (cannot encode: %v)\n", err)
	}
	return FormatHexDump("Payload", data)
}

func formatParameter(param []byte) string {
	if len(param) == 0 {
		return " (query)"
	}
	return ", Parameter: " + formatBytes(param)
}

func formatValue(value []byte) string {
	if len(value) == 0 {
		return ""
	}
	return ", Value: " + formatBytes(value)
}

// formatBytes prints printable ASCII as a quoted string and everything else as hex.
func formatBytes(b []byte) string {
	printable := true
	for _, c := range b {
		if c > unicode.MaxASCII || !unicode.IsPrint(rune(c)) {
			printable = false
			break
		}
	}
	if printable {
		return fmt.Sprintf("%q", string(b))
	}
	return fmt.Sprintf("% X", b)
}

// FormatHexDump formats data as an indented hex dump, 16 bytes per line.
func FormatHexDump(label string, data []byte) string {
	if len(data) == 0 {
		return fmt.Sprintf("  %s: (empty)\n", label)
	}
	prefix := fmt.Sprintf("  %s: ", label)
	indent := strings.Repeat(" ", len(prefix))

	var sb strings.Builder
	sb.WriteString(prefix)
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			sb.WriteString("\n")
			sb.WriteString(indent)
		}
		fmt.Fprintf(&sb, "%02X ", b)
	}
	sb.WriteString("\n")
	return sb.String()
}
