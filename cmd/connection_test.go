// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

// wsBridge is a test WebSocket server standing in for a serial bridge.
type wsBridge struct {
	server   *httptest.Server
	conns    chan *websocket.Conn
	user     string
	password string
}

func newWSBridge(t *testing.T) *wsBridge {
	t.Helper()
	b := &wsBridge{conns: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.user, b.password, _ = r.BasicAuth()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.conns <- conn
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *wsBridge) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func (b *wsBridge) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-b.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no WebSocket connection")
		return nil
	}
}

func atCommandFrame(t *testing.T) []byte {
	t.Helper()
	p, err := xbee.NewATCommandPacket(1, "NI", nil)
	require.NoError(t, err)
	raw, err := xbee.Marshal(p, xbee.ModeAPIEscaped)
	require.NoError(t, err)
	return raw
}

func TestWebSocketConnectionReadsFrames(t *testing.T) {
	bridge := newWSBridge(t)
	conn, err := OpenWebSocketConnection(bridge.url(), "", "", false)
	require.NoError(t, err)
	defer conn.Close()
	server := bridge.accept(t)

	raw := atCommandFrame(t)
	// A frame split over two messages, with a text message in between
	require.NoError(t, server.WriteMessage(websocket.BinaryMessage, raw[:3]))
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("ignored")))
	require.NoError(t, server.WriteMessage(websocket.BinaryMessage, raw[3:]))

	reader := xbee.NewReader(conn, xbee.WithMode(xbee.ModeAPIEscaped), xbee.WithByteTimeout(200*time.Millisecond))
	p, err := reader.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, xbee.FrameATCommand, p.FrameType())

	// Nothing more: the read times out without breaking the connection
	_, err = reader.ReadPacket()
	require.True(t, xbee.IsIdle(err), "got %v", err)

	require.NoError(t, server.WriteMessage(websocket.BinaryMessage, raw))
	_, err = reader.ReadPacket()
	require.NoError(t, err)
}

func TestWebSocketConnectionShortReads(t *testing.T) {
	bridge := newWSBridge(t)
	conn, err := OpenWebSocketConnection(bridge.url(), "", "", false)
	require.NoError(t, err)
	defer conn.Close()
	server := bridge.accept(t)

	require.NoError(t, server.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4, 5}))

	buf := make([]byte, 2)
	var got []byte
	for len(got) < 5 {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	require.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

func TestWebSocketConnectionWrites(t *testing.T) {
	bridge := newWSBridge(t)
	conn, err := OpenWebSocketConnection(bridge.url(), "", "", false)
	require.NoError(t, err)
	defer conn.Close()
	server := bridge.accept(t)

	p, err := xbee.NewATCommandPacket(1, "NI", nil)
	require.NoError(t, err)
	require.NoError(t, xbee.NewWriter(conn, xbee.ModeAPIEscaped).WritePacket(p))

	messageType, data, err := server.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, messageType)
	require.Equal(t, atCommandFrame(t), data)
}

func TestWebSocketConnectionClosedByServer(t *testing.T) {
	bridge := newWSBridge(t)
	conn, err := OpenWebSocketConnection(bridge.url(), "", "", false)
	require.NoError(t, err)
	defer conn.Close()
	server := bridge.accept(t)

	require.NoError(t, server.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	server.Close()

	reader := xbee.NewReader(conn, xbee.WithByteTimeout(time.Second))
	_, err = reader.ReadPacket()
	require.ErrorIs(t, err, ErrConnectionClosed)
	require.True(t, xbee.IsLinkClosed(err))
}

func TestWebSocketConnectionCloseStopsUndrainedPump(t *testing.T) {
	bridge := newWSBridge(t)
	c, err := OpenWebSocketConnection(bridge.url(), "", "", false)
	require.NoError(t, err)
	conn := c.(*WebSocketConnection)
	server := bridge.accept(t)

	// More messages than incoming can hold, none of them read
	raw := atCommandFrame(t)
	for i := 0; i < cap(conn.incoming)+8; i++ {
		require.NoError(t, server.WriteMessage(websocket.BinaryMessage, raw))
	}
	require.Eventually(t, func() bool {
		return len(conn.incoming) == cap(conn.incoming)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	select {
	case <-conn.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("pump still running after Close")
	}
}

func TestWebSocketConnectionBasicAuth(t *testing.T) {
	bridge := newWSBridge(t)
	conn, err := OpenWebSocketConnection(bridge.url(), "admin", "secret", false)
	require.NoError(t, err)
	defer conn.Close()
	bridge.accept(t)

	require.Equal(t, "admin", bridge.user)
	require.Equal(t, "secret", bridge.password)
}

func TestOpenWebSocketConnectionRejectsScheme(t *testing.T) {
	_, err := OpenWebSocketConnection("http://localhost:1234", "", "", false)
	require.ErrorContains(t, err, "unsupported URL scheme")
}
