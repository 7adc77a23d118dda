// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

func TestBuildATRequestLocal(t *testing.T) {
	p, err := buildATRequest(5, "ni", "", "", false, true)
	require.NoError(t, err)

	at, ok := p.(*xbee.ATCommandPacket)
	require.True(t, ok, "got %T", p)
	require.Equal(t, "NI", at.Command)
	require.Empty(t, at.Parameter)

	id, ok := at.FrameID()
	require.True(t, ok)
	require.Equal(t, uint8(5), id)
}

func TestBuildATRequestParameter(t *testing.T) {
	p, err := buildATRequest(1, "ID", "7F FF", "", false, true)
	require.NoError(t, err)
	require.Equal(t, []byte{0x7F, 0xFF}, p.(*xbee.ATCommandPacket).Parameter)
}

func TestBuildATRequestQueue(t *testing.T) {
	p, err := buildATRequest(1, "D0", "05", "", true, true)
	require.NoError(t, err)
	require.Equal(t, xbee.FrameATCommandQueue, p.FrameType())
}

func TestBuildATRequestRemote(t *testing.T) {
	p, err := buildATRequest(9, "D0", "05", "0x0013A20040A1B2C3", false, true)
	require.NoError(t, err)

	remote, ok := p.(*xbee.RemoteATCommandPacket)
	require.True(t, ok, "got %T", p)
	require.Equal(t, uint64(0x0013A20040A1B2C3), remote.Dest64)
	require.Equal(t, uint16(xbee.Unknown16), remote.Dest16)
	require.Equal(t, uint8(xbee.RemoteOptionApplyNow), remote.Options)
	require.Equal(t, []byte{0x05}, remote.Parameter)

	p, err = buildATRequest(9, "D0", "", "0013A20040A1B2C3", false, false)
	require.NoError(t, err)
	require.Zero(t, p.(*xbee.RemoteATCommandPacket).Options)
}

func TestBuildATRequestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		command string
		param   string
		remote  string
	}{
		{"short command", "N", "", ""},
		{"long command", "NID", "", ""},
		{"odd hex", "ID", "7FF", ""},
		{"not hex", "ID", "zz", ""},
		{"bad remote", "NI", "", "node-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildATRequest(1, tt.command, tt.param, tt.remote, false, true)
			require.Error(t, err)
		})
	}
}

func TestATResponseFor(t *testing.T) {
	local, err := xbee.NewATCommandPacket(7, "NI", nil)
	require.NoError(t, err)
	queued, err := xbee.NewATCommandQueuePacket(8, "D0", []byte{0x05})
	require.NoError(t, err)
	remote, err := xbee.NewRemoteATCommandPacket(9, 0x0013A20040A1B2C3, xbee.Unknown16, xbee.RemoteOptionApplyNow, "D0", nil)
	require.NoError(t, err)

	response := func(id int, command string, status xbee.ATCommandStatus) xbee.Packet {
		p, err := xbee.NewATCommandResponsePacket(id, command, status, nil)
		require.NoError(t, err)
		return p
	}
	remoteResponse := func(id int, command string) xbee.Packet {
		p, err := xbee.NewRemoteATCommandResponsePacket(id, 0x0013A20040A1B2C3, 0x1234, command, xbee.ATStatusOK, nil)
		require.NoError(t, err)
		return p
	}

	tests := []struct {
		name     string
		request  xbee.Packet
		response xbee.Packet
		match    bool
		status   xbee.ATCommandStatus
	}{
		{"local match", local, response(7, "NI", xbee.ATStatusOK), true, xbee.ATStatusOK},
		{"local error status", local, response(7, "NI", xbee.ATStatusInvalidCommand), true, xbee.ATStatusInvalidCommand},
		{"other frame id", local, response(6, "NI", xbee.ATStatusOK), false, 0},
		{"other command", local, response(7, "ID", xbee.ATStatusOK), false, 0},
		{"queued match", queued, response(8, "D0", xbee.ATStatusOK), true, xbee.ATStatusOK},
		{"remote match", remote, remoteResponse(9, "D0"), true, xbee.ATStatusOK},
		{"remote wants remote response", remote, response(9, "D0", xbee.ATStatusOK), false, 0},
		{"local ignores remote response", local, remoteResponse(7, "NI"), false, 0},
		{"uncorrelated response", local, &xbee.ModemStatusPacket{Status: xbee.ModemCoordinatorStarted}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := atResponseFor(tt.request, tt.response)
			require.Equal(t, tt.match, ok)
			if ok {
				require.Equal(t, tt.status, status)
			}
		})
	}
}
