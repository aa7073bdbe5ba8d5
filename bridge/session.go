// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lattice-works/span/events"
	"github.com/lattice-works/span/lib/codec"
	"github.com/lattice-works/span/lib/wire"
	"github.com/lattice-works/span/transport"
)

// session tracks the per-connection backend state: active event
// subscriptions and in-flight calls.
type session struct {
	backend *Backend
	conn    transport.Conn
	logger  *slog.Logger

	// calls tracks in-flight handler goroutines so teardown can wait
	// for them before the connection's resources are released.
	calls sync.WaitGroup

	// seq numbers event frames sent on this connection. Monotonic per
	// connection, letting the frontend detect delivery order.
	seq atomic.Uint64

	mu            sync.Mutex
	subscriptions map[string]*events.Subscription
	closed        bool
}

func newSession(backend *Backend, conn transport.Conn, logger *slog.Logger) *session {
	return &session{
		backend:       backend,
		conn:          conn,
		logger:        logger,
		subscriptions: make(map[string]*events.Subscription),
	}
}

// dispatchCall runs the command on its own goroutine and sends the
// result frame when it completes. Concurrent calls on one connection
// proceed independently.
func (s *session) dispatchCall(ctx context.Context, frame wire.Frame) {
	s.calls.Add(1)
	go func() {
		defer s.calls.Done()

		started := time.Now()
		value, err := s.backend.Registry.Invoke(ctx, frame.Command, frame.Args)

		result := wire.Frame{
			Kind:      wire.KindResult,
			RequestID: frame.RequestID,
			Command:   frame.Command,
		}
		if err != nil {
			result.Error = wire.NewErrorPayload(frame.Command, err)
		} else {
			data, marshalError := codec.Marshal(value)
			if marshalError != nil {
				s.logger.Error("result encoding failed",
					"command", frame.Command, "error", marshalError)
				result.Error = wire.NewErrorPayload(frame.Command, marshalError)
			} else {
				result.OK = true
				result.Data = codec.RawMessage(data)
			}
		}

		if sendError := s.conn.Send(result); sendError != nil {
			s.logger.Debug("result send failed",
				"command", frame.Command, "error", sendError)
			return
		}
		s.logger.Debug("call completed",
			"command", frame.Command,
			"ok", result.OK,
			"duration", time.Since(started))
	}()
}

// subscribe starts forwarding the named event to this connection.
// Duplicate subscriptions are ignored; one broker subscription per
// event name.
func (s *session) subscribe(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, exists := s.subscriptions[event]; exists {
		return
	}
	s.subscriptions[event] = s.backend.Broker.Subscribe(event, func(value any) {
		s.forward(event, value)
	})
	s.logger.Debug("subscribed", "event", event)
}

// unsubscribe stops forwarding the named event. Unknown events are
// ignored.
func (s *session) unsubscribe(event string) {
	s.mu.Lock()
	subscription := s.subscriptions[event]
	delete(s.subscriptions, event)
	s.mu.Unlock()

	if subscription != nil {
		subscription.Cancel()
		s.logger.Debug("unsubscribed", "event", event)
	}
}

// forward encodes one published event value and sends it to the peer.
// Runs on the subscription's delivery goroutine, so per-event order is
// preserved.
func (s *session) forward(event string, value any) {
	payload, rawSize, err := wire.EncodeEventPayload(value, s.backend.compressThreshold())
	if err != nil {
		s.logger.Error("event encoding failed", "event", event, "error", err)
		return
	}
	frame := wire.Frame{
		Kind:    wire.KindEvent,
		Event:   event,
		Seq:     s.seq.Add(1),
		Payload: payload,
		RawSize: rawSize,
	}
	if sendError := s.conn.Send(frame); sendError != nil {
		s.logger.Debug("event send failed", "event", event, "error", sendError)
	}
}

// teardown cancels all subscriptions and waits for in-flight calls.
// Safe to call once, after the read loop exits.
func (s *session) teardown() {
	s.mu.Lock()
	s.closed = true
	subscriptions := s.subscriptions
	s.subscriptions = nil
	s.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.Cancel()
	}
	s.calls.Wait()
}
