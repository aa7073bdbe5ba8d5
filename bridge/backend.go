// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/lattice-works/span/dispatch"
	"github.com/lattice-works/span/events"
	"github.com/lattice-works/span/lib/wire"
	"github.com/lattice-works/span/transport"
)

// Backend serves a dispatch registry and event broker to frontend
// connections.
type Backend struct {
	// Registry resolves incoming calls. Required.
	Registry *dispatch.Registry

	// Broker is the event source forwarded to subscribed connections.
	// Required.
	Broker *events.Broker

	// Logger receives structured log output. If nil, slog.Default()
	// is used. Per-call events are logged at Debug level; lifecycle
	// and errors at Info/Error.
	Logger *slog.Logger

	// CompressThreshold is the event payload size at which frames are
	// LZ4-compressed. Zero applies wire.DefaultCompressThreshold;
	// negative disables compression.
	CompressThreshold int

	connections sync.WaitGroup
}

func (b *Backend) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Backend) compressThreshold() int {
	switch {
	case b.CompressThreshold < 0:
		return 0 // disabled
	case b.CompressThreshold == 0:
		return wire.DefaultCompressThreshold
	default:
		return b.CompressThreshold
	}
}

// Serve accepts connections until ctx is cancelled or the listener
// fails, then waits for in-flight connections and their calls to
// drain. Each connection is handled on its own goroutine; each call
// within a connection on its own goroutine again, so long-running
// handlers never block dispatch of unrelated commands.
func (b *Backend) Serve(ctx context.Context, listener transport.Listener) error {
	if b.Registry == nil {
		return errors.New("bridge: Registry is required")
	}
	if b.Broker == nil {
		return errors.New("bridge: Broker is required")
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	b.logger().Info("bridge backend listening", "addr", listener.Addr())

	var connectionCount int64
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			b.logger().Error("accept failed", "error", err)
			continue
		}

		connectionCount++
		connectionID := connectionCount
		b.connections.Add(1)
		go func() {
			defer b.connections.Done()
			b.handleConnection(ctx, conn, connectionID)
		}()
	}

	b.connections.Wait()
	return nil
}

// handleConnection runs one connection's read loop: calls are
// dispatched on fresh goroutines, subscribe/unsubscribe frames adjust
// the connection's event forwarding. Returns when the peer disconnects
// or ctx is cancelled, after cancelling in-flight handlers and
// tearing down forwarding.
func (b *Backend) handleConnection(ctx context.Context, conn transport.Conn, connectionID int64) {
	defer conn.Close()

	logger := b.logger().With("connection_id", connectionID)
	logger.Debug("connection accepted")

	ctx, cancel := context.WithCancel(ctx)

	session := newSession(b, conn, logger)
	// LIFO: cancel in-flight handlers first, then wait for them.
	defer session.teardown()
	defer cancel()

	for {
		frame, err := conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Debug("connection closed by peer")
			} else if ctx.Err() == nil {
				logger.Error("receive failed", "error", err)
			}
			return
		}

		switch frame.Kind {
		case wire.KindCall:
			session.dispatchCall(ctx, frame)
		case wire.KindSubscribe:
			session.subscribe(frame.Event)
		case wire.KindUnsubscribe:
			session.unsubscribe(frame.Event)
		default:
			// Result and event frames only flow backend→frontend.
			logger.Warn("unexpected frame kind from frontend", "kind", frame.Kind)
		}
	}
}
