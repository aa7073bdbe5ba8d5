// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/lattice-works/span/lib/wire"
)

// Pipe returns two connected in-memory frame connections. Frames sent
// on one side are received on the other, in order. Useful for tests
// and for embedding the backend in the same process as its caller
// without a socket.
//
// Each direction carries a small buffer, so a sender does not block
// until the buffer fills. Closing one side ends the peer's Receive
// with io.EOF after buffered frames drain.
func Pipe() (Conn, Conn) {
	aToB := make(chan wire.Frame, 16)
	bToA := make(chan wire.Frame, 16)
	a := &pipeConn{send: aToB, receive: bToA, closed: make(chan struct{})}
	b := &pipeConn{send: bToA, receive: aToB, closed: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

// PipeListener yields the backend sides of [Pipe] pairs created by
// [PipeListener.DialFrontend]. It lets a single-process application
// drive the full backend accept loop without any OS-level boundary.
type PipeListener struct {
	incoming  chan Conn
	done      chan struct{}
	closeOnce sync.Once
}

// NewPipeListener creates an empty listener.
func NewPipeListener() *PipeListener {
	return &PipeListener{
		incoming: make(chan Conn),
		done:     make(chan struct{}),
	}
}

// DialFrontend creates a connected pair, hands the backend side to
// Accept, and returns the frontend side.
func (l *PipeListener) DialFrontend(ctx context.Context) (Conn, error) {
	frontend, backend := Pipe()
	select {
	case l.incoming <- backend:
		return frontend, nil
	case <-l.done:
		frontend.Close()
		backend.Close()
		return nil, net.ErrClosed
	case <-ctx.Done():
		frontend.Close()
		backend.Close()
		return nil, ctx.Err()
	}
}

// Dial implements [Dialer] so a PipeListener doubles as the dialer for
// its own backend.
func (l *PipeListener) Dial(ctx context.Context) (Conn, error) {
	return l.DialFrontend(ctx)
}

// Accept blocks for the next backend-side connection.
func (l *PipeListener) Accept() (Conn, error) {
	select {
	case conn := <-l.incoming:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Addr identifies the listener in logs.
func (l *PipeListener) Addr() string {
	return "pipe"
}

// Close stops accepting.
func (l *PipeListener) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

// Compile-time interface checks.
var (
	_ Listener = (*PipeListener)(nil)
	_ Dialer   = (*PipeListener)(nil)
	_ Conn     = (*pipeConn)(nil)
)

type pipeConn struct {
	send    chan wire.Frame
	receive chan wire.Frame
	peer    *pipeConn

	closed    chan struct{}
	closeOnce sync.Once
}

func (c *pipeConn) Send(frame wire.Frame) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	case <-c.peer.closed:
		return io.ErrClosedPipe
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return net.ErrClosed
	case <-c.peer.closed:
		return io.ErrClosedPipe
	}
}

func (c *pipeConn) Receive() (wire.Frame, error) {
	// Drain buffered frames before honoring a peer close, so a
	// send-then-close sequence delivers the frame like a socket
	// flush would.
	select {
	case frame := <-c.receive:
		return frame, nil
	default:
	}

	select {
	case frame := <-c.receive:
		return frame, nil
	case <-c.closed:
		return wire.Frame{}, net.ErrClosed
	case <-c.peer.closed:
		select {
		case frame := <-c.receive:
			return frame, nil
		default:
			return wire.Frame{}, io.EOF
		}
	}
}

func (c *pipeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
