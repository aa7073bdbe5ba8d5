// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*SocketListener)(nil)
	_ Dialer   = (*SocketDialer)(nil)
)

// SocketListener accepts frame connections on a Unix domain socket.
type SocketListener struct {
	listener      net.Listener
	socketPath    string
	maxFrameBytes int64
}

// ListenSocket binds a Unix socket at socketPath. Any stale socket
// file at that path is removed first; the file is removed again on
// Close. maxFrameBytes caps single-frame reads (zero applies
// wire.MaxFrameBytes).
func ListenSocket(socketPath string, maxFrameBytes int64) (*SocketListener, error) {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	return &SocketListener{
		listener:      listener,
		socketPath:    socketPath,
		maxFrameBytes: maxFrameBytes,
	}, nil
}

// Accept blocks for the next connection.
func (l *SocketListener) Accept() (Conn, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	return newStreamConn(conn, l.maxFrameBytes), nil
}

// Addr returns the socket path.
func (l *SocketListener) Addr() string {
	return l.socketPath
}

// Close stops accepting and removes the socket file.
func (l *SocketListener) Close() error {
	err := l.listener.Close()
	os.Remove(l.socketPath)
	return err
}

// SocketDialer connects to a backend's Unix socket.
type SocketDialer struct {
	// SocketPath is the path to the backend's socket.
	SocketPath string

	// Timeout bounds the dial when the context carries no deadline.
	// Zero means 5 seconds.
	Timeout time.Duration

	// MaxFrameBytes caps single-frame reads (zero applies
	// wire.MaxFrameBytes).
	MaxFrameBytes int64
}

// Dial connects to the socket.
func (d *SocketDialer) Dial(ctx context.Context) (Conn, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", d.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing socket %s: %w", d.SocketPath, err)
	}
	return newStreamConn(conn, d.MaxFrameBytes), nil
}
