// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/lattice-works/span/bridge"
	"github.com/lattice-works/span/dispatch"
	"github.com/lattice-works/span/events"
	"github.com/lattice-works/span/lib/codec"
	"github.com/lattice-works/span/lib/testutil"
	"github.com/lattice-works/span/state"
	"github.com/lattice-works/span/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startBackend builds a backend with a small command set and serves it
// on the given listener until the test ends.
func startBackend(t *testing.T, listener transport.Listener) *events.Broker {
	t.Helper()

	logger := quietLogger()
	broker := events.NewBroker(logger)
	registry := dispatch.NewRegistry(logger)
	counter := state.New(0)

	registry.MustRegister(dispatch.Handler{
		Name: "ping",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			return "pong", nil
		},
	})
	registry.MustRegister(dispatch.Handler{
		Name: "counter.increment",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			var value int
			err := counter.Update(ctx, func(current *int) error {
				*current++
				value = *current
				return nil
			})
			return value, err
		},
	})
	registry.MustRegister(dispatch.Handler{
		Name: "announce",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			broker.Publish("announcement", args["message"])
			return nil, nil
		},
	})

	backend := &bridge.Backend{
		Registry: registry,
		Broker:   broker,
		Logger:   logger,
	}

	serveContext, cancelServe := context.WithCancel(context.Background())
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		backend.Serve(serveContext, listener)
	}()
	t.Cleanup(func() {
		cancelServe()
		testutil.RequireClosed(t, serveDone, 5*time.Second, "backend did not stop")
		broker.Close()
	})
	return broker
}

// TestSocketRoundtrip drives a call and an event subscription through
// a real Unix socket, the daemon's default transport.
func TestSocketRoundtrip(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(testutil.SocketDir(t), "daemon.sock")
	listener, err := transport.ListenSocket(socketPath, 0)
	if err != nil {
		t.Fatalf("ListenSocket: %v", err)
	}
	startBackend(t, listener)

	dialer := &transport.SocketDialer{SocketPath: socketPath}
	frontend, err := bridge.Dial(context.Background(), dialer, quietLogger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer frontend.Close()

	result, err := frontend.Invoke(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var reply string
	if err := result.Decode(&reply); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reply != "pong" {
		t.Fatalf("reply = %q, want %q", reply, "pong")
	}

	received := make(chan string, 4)
	cancel, err := frontend.On("announcement", func(payload codec.RawMessage) {
		var message string
		if err := codec.Unmarshal(payload, &message); err != nil {
			t.Errorf("Unmarshal: %v", err)
			return
		}
		received <- message
	})
	if err != nil {
		t.Fatalf("On: %v", err)
	}
	defer cancel()

	if _, err := frontend.Invoke(context.Background(), "announce",
		map[string]any{"message": "socket works"}); err != nil {
		t.Fatalf("Invoke announce: %v", err)
	}
	message := testutil.RequireReceive(t, received, 5*time.Second, "announcement not delivered")
	if message != "socket works" {
		t.Fatalf("message = %q", message)
	}
}

// TestSocketTwoClients verifies that state is shared between
// independent connections and that events fan out to both.
func TestSocketTwoClients(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(testutil.SocketDir(t), "daemon.sock")
	listener, err := transport.ListenSocket(socketPath, 0)
	if err != nil {
		t.Fatalf("ListenSocket: %v", err)
	}
	broker := startBackend(t, listener)

	dialer := &transport.SocketDialer{SocketPath: socketPath}
	first, err := bridge.Dial(context.Background(), dialer, quietLogger())
	if err != nil {
		t.Fatalf("Dial first: %v", err)
	}
	defer first.Close()
	second, err := bridge.Dial(context.Background(), dialer, quietLogger())
	if err != nil {
		t.Fatalf("Dial second: %v", err)
	}
	defer second.Close()

	// Both clients increment the same counter.
	increment := func(frontend *bridge.Frontend) int {
		t.Helper()
		result, err := frontend.Invoke(context.Background(), "counter.increment", nil)
		if err != nil {
			t.Fatalf("Invoke: %v", err)
		}
		var value int
		if err := result.Decode(&value); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		return value
	}
	if got := increment(first); got != 1 {
		t.Fatalf("first increment = %d, want 1", got)
	}
	if got := increment(second); got != 2 {
		t.Fatalf("second increment = %d, want 2", got)
	}

	// A broker-published event reaches both connections.
	firstReceived := make(chan struct{}, 1)
	secondReceived := make(chan struct{}, 1)
	cancelFirst, err := first.On("announcement", func(codec.RawMessage) {
		firstReceived <- struct{}{}
	})
	if err != nil {
		t.Fatalf("On first: %v", err)
	}
	defer cancelFirst()
	cancelSecond, err := second.On("announcement", func(codec.RawMessage) {
		secondReceived <- struct{}{}
	})
	if err != nil {
		t.Fatalf("On second: %v", err)
	}
	defer cancelSecond()

	// A call after the subscribe frame, on the same connection, only
	// returns once the backend has processed the subscription.
	if _, err := first.Invoke(context.Background(), "ping", nil); err != nil {
		t.Fatalf("fence first: %v", err)
	}
	if _, err := second.Invoke(context.Background(), "ping", nil); err != nil {
		t.Fatalf("fence second: %v", err)
	}

	broker.Publish("announcement", "to everyone")
	testutil.RequireReceive(t, firstReceived, 5*time.Second, "first client missed the event")
	testutil.RequireReceive(t, secondReceived, 5*time.Second, "second client missed the event")
}
