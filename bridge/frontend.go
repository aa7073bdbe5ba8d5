// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/lattice-works/span/dispatch"
	"github.com/lattice-works/span/lib/codec"
	"github.com/lattice-works/span/lib/wire"
	"github.com/lattice-works/span/transport"
)

// ErrClosed is returned by Frontend operations after the connection
// has been closed or lost.
var ErrClosed = errors.New("bridge: connection closed")

// Frontend is the caller side of a bridge connection. It issues
// commands as futures and routes event frames to registered
// listeners.
type Frontend struct {
	conn   transport.Conn
	logger *slog.Logger

	mu        sync.Mutex
	pending   map[string]*Future
	listeners map[string][]*listener
	closed    bool
	closeErr  error

	readDone chan struct{}
}

type listener struct {
	callback func(codec.RawMessage)
	cancel   sync.Once
}

// Dial connects through the dialer and starts the frontend's read
// loop. If logger is nil, slog.Default() is used.
func Dial(ctx context.Context, dialer transport.Dialer, logger *slog.Logger) (*Frontend, error) {
	conn, err := dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialing bridge: %w", err)
	}
	return NewFrontend(conn, logger), nil
}

// NewFrontend wraps an established connection and starts its read
// loop.
func NewFrontend(conn transport.Conn, logger *slog.Logger) *Frontend {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Frontend{
		conn:      conn,
		logger:    logger,
		pending:   make(map[string]*Future),
		listeners: make(map[string][]*listener),
		readDone:  make(chan struct{}),
	}
	go f.readLoop()
	return f
}

// Call sends a command and returns a future for its result. Multiple
// calls may be in flight at once; results correlate by request ID, so
// completion order is independent of issue order.
func (f *Frontend) Call(ctx context.Context, command string, args map[string]any) (*Future, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	future := newFuture(uuid.NewString(), command)

	f.mu.Lock()
	if f.closed {
		err := f.closeErr
		f.mu.Unlock()
		return nil, err
	}
	f.pending[future.requestID] = future
	f.mu.Unlock()

	frame := wire.Frame{
		Kind:      wire.KindCall,
		RequestID: future.requestID,
		Command:   command,
		Args:      args,
	}
	if err := f.conn.Send(frame); err != nil {
		f.mu.Lock()
		delete(f.pending, future.requestID)
		f.mu.Unlock()
		return nil, fmt.Errorf("sending call %q: %w", command, err)
	}
	return future, nil
}

// Invoke is Call followed by Wait: it blocks for the result.
func (f *Frontend) Invoke(ctx context.Context, command string, args map[string]any) (Result, error) {
	future, err := f.Call(ctx, command, args)
	if err != nil {
		return Result{}, err
	}
	return future.Wait(ctx)
}

// On registers a listener for the named event and returns a cancel
// function. The first listener for an event subscribes on the wire;
// cancelling the last one unsubscribes. The cancel function is
// idempotent. Callbacks run on the read loop and receive the event's
// still-encoded payload; they must not block.
func (f *Frontend) On(event string, callback func(codec.RawMessage)) (func(), error) {
	registered := &listener{callback: callback}

	f.mu.Lock()
	if f.closed {
		err := f.closeErr
		f.mu.Unlock()
		return nil, err
	}
	first := len(f.listeners[event]) == 0
	f.listeners[event] = append(f.listeners[event], registered)
	f.mu.Unlock()

	if first {
		frame := wire.Frame{Kind: wire.KindSubscribe, Event: event}
		if err := f.conn.Send(frame); err != nil {
			f.removeListener(event, registered)
			return nil, fmt.Errorf("subscribing to %q: %w", event, err)
		}
	}

	cancel := func() {
		registered.cancel.Do(func() {
			if f.removeListener(event, registered) {
				// Last listener gone; stop the server-side feed.
				frame := wire.Frame{Kind: wire.KindUnsubscribe, Event: event}
				if err := f.conn.Send(frame); err != nil {
					f.logger.Debug("unsubscribe send failed",
						"event", event, "error", err)
				}
			}
		})
	}
	return cancel, nil
}

// removeListener detaches one listener and reports whether it was the
// event's last.
func (f *Frontend) removeListener(event string, target *listener) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	registered := f.listeners[event]
	for i, candidate := range registered {
		if candidate == target {
			registered = append(registered[:i], registered[i+1:]...)
			break
		}
	}
	if len(registered) == 0 {
		delete(f.listeners, event)
		return !f.closed
	}
	f.listeners[event] = registered
	return false
}

// Close shuts the connection down. Pending futures resolve with
// ErrClosed.
func (f *Frontend) Close() error {
	err := f.conn.Close()
	<-f.readDone
	return err
}

// readLoop routes incoming frames until the connection dies, then
// fails everything still pending.
func (f *Frontend) readLoop() {
	defer close(f.readDone)
	for {
		frame, err := f.conn.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				f.logger.Error("bridge receive failed", "error", err)
			}
			f.fail(ErrClosed)
			return
		}

		switch frame.Kind {
		case wire.KindResult:
			f.resolveResult(frame)
		case wire.KindEvent:
			f.deliverEvent(frame)
		default:
			f.logger.Warn("unexpected frame kind from backend", "kind", frame.Kind)
		}
	}
}

func (f *Frontend) resolveResult(frame wire.Frame) {
	f.mu.Lock()
	future, ok := f.pending[frame.RequestID]
	delete(f.pending, frame.RequestID)
	f.mu.Unlock()

	if !ok {
		// Stale result, e.g. the caller gave up before the backend
		// answered. Nothing to correlate against.
		f.logger.Debug("result for unknown request", "request_id", frame.RequestID)
		return
	}

	if frame.OK {
		future.resolve(Result{Data: frame.Data}, nil)
		return
	}
	var err error
	if frame.Error != nil {
		err = frame.Error.ToError()
	} else {
		err = &dispatch.Error{
			Kind:    dispatch.KindInternalError,
			Command: frame.Command,
			Message: "malformed result frame",
		}
	}
	future.resolve(Result{}, err)
}

func (f *Frontend) deliverEvent(frame wire.Frame) {
	raw, err := wire.DecodeEventPayload(frame.Payload, frame.RawSize)
	if err != nil {
		f.logger.Error("event payload decode failed",
			"event", frame.Event, "error", err)
		return
	}

	f.mu.Lock()
	registered := append([]*listener(nil), f.listeners[frame.Event]...)
	f.mu.Unlock()

	for _, target := range registered {
		f.invokeListener(frame.Event, target, raw)
	}
}

func (f *Frontend) invokeListener(event string, target *listener, payload codec.RawMessage) {
	defer func() {
		if recovered := recover(); recovered != nil {
			f.logger.Error("event listener panicked",
				"event", event,
				"panic", recovered,
				"stack", string(debug.Stack()))
		}
	}()
	target.callback(payload)
}

// fail resolves all pending futures with err and marks the frontend
// closed.
func (f *Frontend) fail(err error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.closeErr = err
	pending := f.pending
	f.pending = nil
	f.listeners = nil
	f.mu.Unlock()

	for _, future := range pending {
		future.resolve(Result{}, err)
	}
}
