// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lattice-works/span/lib/codec"
	"github.com/lattice-works/span/lib/wire"
)

// Compile-time interface checks.
var (
	_ Listener = (*WebSocketListener)(nil)
	_ Dialer   = (*WebSocketDialer)(nil)
)

// WebSocketListener turns upgraded WebSocket connections into frame
// connections. It does not own an HTTP server: mount [WebSocketListener.Handler]
// on whatever mux serves the frontend, and Accept yields each upgraded
// connection. Frames travel as binary messages, one CBOR frame per
// message.
type WebSocketListener struct {
	address       string
	maxFrameBytes int64
	upgrader      websocket.Upgrader

	accepted  chan Conn
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketListener creates a listener. address is informational
// (for Addr and logging); maxFrameBytes caps single-message reads
// (zero applies wire.MaxFrameBytes).
//
// The upgrader accepts any origin: the bridge's trust model is the
// local host boundary, not the Origin header, and webview frontends
// send file:// or app-scheme origins that an allowlist would
// misclassify.
func NewWebSocketListener(address string, maxFrameBytes int64) *WebSocketListener {
	if maxFrameBytes <= 0 {
		maxFrameBytes = wire.MaxFrameBytes
	}
	return &WebSocketListener{
		address:       address,
		maxFrameBytes: maxFrameBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		accepted: make(chan Conn),
		done:     make(chan struct{}),
	}
}

// Handler returns the http.Handler that upgrades requests and feeds
// Accept.
func (l *WebSocketListener) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error response.
			return
		}
		socket.SetReadLimit(l.maxFrameBytes)
		conn := &webSocketConn{socket: socket}

		select {
		case l.accepted <- conn:
		case <-l.done:
			socket.Close()
		}
	})
}

// Accept blocks for the next upgraded connection.
func (l *WebSocketListener) Accept() (Conn, error) {
	select {
	case conn := <-l.accepted:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Addr returns the configured address string.
func (l *WebSocketListener) Addr() string {
	return l.address
}

// Close stops accepting. Connections already accepted are unaffected;
// upgrades that race with Close are dropped.
func (l *WebSocketListener) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

// WebSocketDialer connects to a backend's WebSocket endpoint.
type WebSocketDialer struct {
	// URL is the endpoint, e.g. "ws://127.0.0.1:8655/bridge".
	URL string

	// MaxFrameBytes caps single-message reads (zero applies
	// wire.MaxFrameBytes).
	MaxFrameBytes int64
}

// Dial connects and performs the WebSocket handshake.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	socket, response, err := websocket.DefaultDialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", d.URL, err)
	}
	if response != nil && response.Body != nil {
		response.Body.Close()
	}

	limit := d.MaxFrameBytes
	if limit <= 0 {
		limit = wire.MaxFrameBytes
	}
	socket.SetReadLimit(limit)
	return &webSocketConn{socket: socket}, nil
}

// webSocketConn adapts a gorilla connection to the frame Conn
// interface.
type webSocketConn struct {
	socket  *websocket.Conn
	writeMu sync.Mutex
}

func (c *webSocketConn) Send(frame wire.Frame) error {
	data, err := codec.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.socket.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("sending frame: %w", err)
	}
	return nil
}

func (c *webSocketConn) Receive() (wire.Frame, error) {
	for {
		messageType, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return wire.Frame{}, io.EOF
			}
			var closeError *websocket.CloseError
			if errors.As(err, &closeError) {
				return wire.Frame{}, io.EOF
			}
			return wire.Frame{}, fmt.Errorf("receiving frame: %w", err)
		}
		if messageType != websocket.BinaryMessage {
			// Text and control payloads are not frames; skip.
			continue
		}

		var frame wire.Frame
		if err := codec.Unmarshal(data, &frame); err != nil {
			return wire.Frame{}, fmt.Errorf("decoding frame: %w", err)
		}
		if err := frame.Validate(); err != nil {
			return wire.Frame{}, fmt.Errorf("invalid frame: %w", err)
		}
		return frame, nil
	}
}

func (c *webSocketConn) Close() error {
	// Best-effort close handshake before dropping the TCP connection.
	c.writeMu.Lock()
	_ = c.socket.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.socket.Close()
}
