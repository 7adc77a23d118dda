// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection provides a common interface for reading/writing bytes from serial or WebSocket.
// Both implementations also provide SetReadTimeout, which the frame reader
// uses for its per-byte timeout.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// SetReadTimeout bounds each Read; a Read that times out returns 0, nil.
func (s *SerialConnection) SetReadTimeout(t time.Duration) error {
	return s.port.SetReadTimeout(t)
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection exposes the binary messages of a WebSocket as a byte stream.
//
// Messages are read by a background goroutine so that Read can give up after
// the read timeout without breaking the connection, which a deadline on the
// socket itself would do.
type WebSocketConnection struct {
	conn     *websocket.Conn
	incoming chan []byte
	readErr  error         // set before incoming is closed
	done     chan struct{} // closed by Close
	stopped  chan struct{} // closed when pump returns

	buf       []byte
	bufOffset int
	timeout   time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:     conn,
		incoming: make(chan []byte, 64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *WebSocketConnection) pump() {
	defer close(w.stopped)
	defer close(w.incoming)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.readErr = err
			return
		}
		// Only binary messages carry frames
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		// Nobody drains incoming after Close
		select {
		case w.incoming <- data:
		case <-w.done:
			return
		}
	}
}

// SetReadTimeout bounds each Read; a Read that times out returns 0, nil.
// Zero means Read blocks until data arrives.
func (w *WebSocketConnection) SetReadTimeout(t time.Duration) error {
	w.timeout = t
	return nil
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	var (
		data []byte
		ok   bool
	)
	if w.timeout > 0 {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		select {
		case data, ok = <-w.incoming:
		case <-timer.C:
			return 0, nil
		}
	} else {
		data, ok = <-w.incoming
	}

	if !ok {
		if w.readErr != nil && !websocket.IsCloseError(w.readErr, websocket.CloseNormalClosure) {
			return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, w.readErr)
		}
		return 0, ErrConnectionClosed
	}

	w.buf = data
	n := copy(p, w.buf)
	w.bufOffset = n
	return n, nil
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketConnection(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("MESHSTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection based on settings
func OpenConnection() (Connection, string, error) {
	if settings.URL != "" {
		password := ""
		if settings.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(settings.URL, settings.Username, password, settings.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		logger.Debug().Str("url", settings.URL).Msg("websocket connected")
		return conn, fmt.Sprintf("WebSocket: %s", settings.URL), nil
	}

	if settings.Port != "" {
		conn, err := OpenSerialConnection(settings.Port, settings.Baud)
		if err != nil {
			return nil, "", err
		}
		logger.Debug().Str("port", settings.Port).Int("baud", settings.Baud).Msg("serial port opened")
		return conn, fmt.Sprintf("Serial: %s @ %d baud", settings.Port, settings.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}
