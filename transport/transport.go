// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/lattice-works/span/lib/codec"
	"github.com/lattice-works/span/lib/wire"
)

// Conn is one established frame channel between the two contexts.
type Conn interface {
	// Send writes one frame. Safe for concurrent use.
	Send(frame wire.Frame) error

	// Receive reads the next frame. Single reader only. Returns
	// io.EOF (possibly wrapped) when the peer has closed.
	Receive() (wire.Frame, error)

	// Close tears the channel down. Pending Receive calls unblock
	// with an error.
	Close() error
}

// Listener accepts inbound connections on the backend side.
type Listener interface {
	// Accept blocks for the next connection. Unblocks with an error
	// after Close.
	Accept() (Conn, error)

	// Addr describes where the listener is reachable, for logging.
	Addr() string

	// Close stops accepting. Established connections are unaffected.
	Close() error
}

// Dialer establishes an outbound connection from the frontend side.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// ErrFrameTooLarge is returned by Receive when a single frame exceeds
// the read limit.
var ErrFrameTooLarge = errors.New("transport: frame exceeds size limit")

// streamConn adapts a byte-stream net.Conn into a frame Conn using
// the codec's CBOR stream encoder and decoder. Used by the socket
// transport and by anything else that yields a net.Conn.
type streamConn struct {
	conn    net.Conn
	writeMu sync.Mutex
	encoder *codec.Encoder
	decoder *codec.Decoder
	limiter *frameLimiter
}

// newStreamConn wraps conn. maxFrameBytes caps how much a single
// Receive may consume; zero applies wire.MaxFrameBytes.
func newStreamConn(conn net.Conn, maxFrameBytes int64) *streamConn {
	if maxFrameBytes <= 0 {
		maxFrameBytes = wire.MaxFrameBytes
	}
	limiter := &frameLimiter{reader: conn, limit: maxFrameBytes, remaining: maxFrameBytes}
	return &streamConn{
		conn:    conn,
		encoder: codec.NewEncoder(conn),
		decoder: codec.NewDecoder(limiter),
		limiter: limiter,
	}
}

func (c *streamConn) Send(frame wire.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.encoder.Encode(frame); err != nil {
		return fmt.Errorf("sending frame: %w", err)
	}
	return nil
}

func (c *streamConn) Receive() (wire.Frame, error) {
	c.limiter.reset()

	var frame wire.Frame
	if err := c.decoder.Decode(&frame); err != nil {
		if errors.Is(err, io.EOF) {
			return wire.Frame{}, io.EOF
		}
		return wire.Frame{}, fmt.Errorf("receiving frame: %w", err)
	}
	if err := frame.Validate(); err != nil {
		return wire.Frame{}, fmt.Errorf("invalid frame: %w", err)
	}
	return frame, nil
}

func (c *streamConn) Close() error {
	return c.conn.Close()
}

// frameLimiter guards the decoder against a peer that streams an
// oversized value. The budget refills before each Receive, so the
// limit is per frame (plus any read-ahead the decoder buffered, which
// only ever loosens the bound).
type frameLimiter struct {
	reader    io.Reader
	mu        sync.Mutex
	limit     int64
	remaining int64
}

func (l *frameLimiter) reset() {
	l.mu.Lock()
	l.remaining = l.limit
	l.mu.Unlock()
}

func (l *frameLimiter) Read(p []byte) (int, error) {
	l.mu.Lock()
	remaining := l.remaining
	l.mu.Unlock()

	if remaining <= 0 {
		return 0, ErrFrameTooLarge
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	read, err := l.reader.Read(p)

	l.mu.Lock()
	l.remaining -= int64(read)
	l.mu.Unlock()
	return read, err
}
