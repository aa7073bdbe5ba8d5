// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lattice-works/span/dispatch"
	"github.com/lattice-works/span/events"
	"github.com/lattice-works/span/lib/codec"
	"github.com/lattice-works/span/lib/schema"
	"github.com/lattice-works/span/lib/testutil"
	"github.com/lattice-works/span/state"
	"github.com/lattice-works/span/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testBridge wires a backend and frontend over an in-memory pipe.
type testBridge struct {
	registry *dispatch.Registry
	broker   *events.Broker
	frontend *Frontend
	counter  *state.Cell[int]
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()

	logger := quietLogger()
	tb := &testBridge{
		registry: dispatch.NewRegistry(logger),
		broker:   events.NewBroker(logger),
		counter:  state.New(0),
	}

	tb.registry.MustRegister(dispatch.Handler{
		Name: "ping",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			return "pong", nil
		},
	})
	tb.registry.MustRegister(dispatch.Handler{
		Name: "counter.increment",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			var value int
			err := tb.counter.Update(ctx, func(current *int) error {
				*current++
				value = *current
				return nil
			})
			return value, err
		},
	})
	tb.registry.MustRegister(dispatch.Handler{
		Name: "counter.get",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			return tb.counter.Snapshot(ctx)
		},
	})
	tb.registry.MustRegister(dispatch.Handler{
		Name: "task.run",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			for _, percent := range []int{25, 50, 100} {
				tb.broker.Publish("task-progress", map[string]any{"percent": percent})
			}
			return true, nil
		},
	})
	tb.registry.MustRegister(dispatch.Handler{
		Name: "fail",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			panic("handler exploded")
		},
	})
	tb.registry.MustRegister(dispatch.Handler{
		Name: "greet",
		Args: schema.Fields{
			"name": {Type: schema.String, Required: true},
		},
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			name, _ := args.String("name")
			return "hello " + name, nil
		},
	})

	backend := &Backend{
		Registry: tb.registry,
		Broker:   tb.broker,
		Logger:   logger,
	}

	listener := transport.NewPipeListener()
	serveContext, cancelServe := context.WithCancel(context.Background())
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		backend.Serve(serveContext, listener)
	}()

	frontend, err := Dial(context.Background(), listener, logger)
	if err != nil {
		cancelServe()
		t.Fatalf("Dial: %v", err)
	}
	tb.frontend = frontend

	t.Cleanup(func() {
		frontend.Close()
		cancelServe()
		testutil.RequireClosed(t, serveDone, 5*time.Second, "backend did not stop")
		tb.broker.Close()
	})
	return tb
}

func TestInvokeRoundtrip(t *testing.T) {
	tb := newTestBridge(t)

	result, err := tb.frontend.Invoke(context.Background(), "ping", nil)
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
}

func TestInvokeWithArguments(t *testing.T) {
	tb := newTestBridge(t)

	result, err := tb.frontend.Invoke(context.Background(), "greet",
		map[string]any{"name": "span"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var reply string
	if err := result.Decode(&reply); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reply != "hello span" {
		t.Fatalf("reply = %q, want %q", reply, "hello span")
	}

	_, err = tb.frontend.Invoke(context.Background(), "greet", nil)
	if !dispatch.IsKind(err, dispatch.KindArgumentError) {
		t.Fatalf("missing argument error = %v, want kind %s", err, dispatch.KindArgumentError)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	tb := newTestBridge(t)

	const callers = 100
	results := make(chan int, callers)
	var waitGroup sync.WaitGroup
	for i := 0; i < callers; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			result, err := tb.frontend.Invoke(context.Background(), "counter.increment", nil)
			if err != nil {
				t.Errorf("Invoke: %v", err)
				return
			}
			var value int
			if err := result.Decode(&value); err != nil {
				t.Errorf("Decode: %v", err)
				return
			}
			results <- value
		}()
	}
	waitGroup.Wait()
	close(results)

	seen := make([]int, 0, callers)
	for value := range results {
		seen = append(seen, value)
	}
	if len(seen) != callers {
		t.Fatalf("got %d results, want %d", len(seen), callers)
	}
	sort.Ints(seen)
	for i, value := range seen {
		if value != i+1 {
			t.Fatalf("results[%d] = %d, want %d; increments were lost or duplicated", i, value, i+1)
		}
	}

	result, err := tb.frontend.Invoke(context.Background(), "counter.get", nil)
	if err != nil {
		t.Fatalf("Invoke counter.get: %v", err)
	}
	var final int
	if err := result.Decode(&final); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if final != callers {
		t.Fatalf("final counter = %d, want %d", final, callers)
	}
}

func TestEventStream(t *testing.T) {
	tb := newTestBridge(t)

	type progress struct {
		Percent int `cbor:"percent"`
	}
	received := make(chan int, 8)
	cancel, err := tb.frontend.On("task-progress", func(payload codec.RawMessage) {
		var update progress
		if err := codec.Unmarshal(payload, &update); err != nil {
			t.Errorf("Unmarshal: %v", err)
			return
		}
		received <- update.Percent
	})
	if err != nil {
		t.Fatalf("On: %v", err)
	}
	defer cancel()

	result, err := tb.frontend.Invoke(context.Background(), "task.run", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var done bool
	if err := result.Decode(&done); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !done {
		t.Fatal("task.run returned false")
	}

	for _, want := range []int{25, 50, 100} {
		got := testutil.RequireReceive(t, received, 5*time.Second, "progress update %d not delivered", want)
		if got != want {
			t.Fatalf("progress = %d, want %d", got, want)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	tb := newTestBridge(t)

	received := make(chan struct{}, 8)
	cancel, err := tb.frontend.On("task-progress", func(payload codec.RawMessage) {
		received <- struct{}{}
	})
	if err != nil {
		t.Fatalf("On: %v", err)
	}

	if _, err := tb.frontend.Invoke(context.Background(), "task.run", nil); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	testutil.RequireReceive(t, received, 5*time.Second, "no event before unsubscribe")

	cancel()
	cancel() // idempotent

	// Drain what was already in flight, then verify silence.
	drained := time.After(100 * time.Millisecond)
drain:
	for {
		select {
		case <-received:
		case <-drained:
			break drain
		}
	}

	if _, err := tb.frontend.Invoke(context.Background(), "task.run", nil); err != nil {
		t.Fatalf("Invoke after unsubscribe: %v", err)
	}
	select {
	case <-received:
		t.Fatal("event delivered after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPanickingHandler(t *testing.T) {
	tb := newTestBridge(t)

	_, err := tb.frontend.Invoke(context.Background(), "fail", nil)
	if !dispatch.IsKind(err, dispatch.KindInternalError) {
		t.Fatalf("error = %v, want kind %s", err, dispatch.KindInternalError)
	}
	var dispatchError *dispatch.Error
	if !errors.As(err, &dispatchError) {
		t.Fatalf("error type = %T, want *dispatch.Error", err)
	}
	if dispatchError.Message != "internal error" {
		t.Fatalf("panic detail leaked to caller: %q", dispatchError.Message)
	}

	// The connection survives a handler panic.
	if _, err := tb.frontend.Invoke(context.Background(), "ping", nil); err != nil {
		t.Fatalf("Invoke after panic: %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	tb := newTestBridge(t)

	_, err := tb.frontend.Invoke(context.Background(), "no.such.command", nil)
	if !dispatch.IsKind(err, dispatch.KindUnknownCommand) {
		t.Fatalf("error = %v, want kind %s", err, dispatch.KindUnknownCommand)
	}
}

func TestWaitContextCancellation(t *testing.T) {
	tb := newTestBridge(t)

	blocked := make(chan struct{})
	t.Cleanup(func() { close(blocked) })
	tb.registry.MustRegister(dispatch.Handler{
		Name: "block",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			select {
			case <-blocked:
			case <-ctx.Done():
			}
			return nil, ctx.Err()
		},
	})

	future, err := tb.frontend.Call(context.Background(), "block", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	waitContext, cancelWait := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelWait()
	_, err = future.Wait(waitContext)
	if !dispatch.IsKind(err, dispatch.KindCancelled) {
		t.Fatalf("error = %v, want kind %s", err, dispatch.KindCancelled)
	}
}

func TestCloseResolvesPendingFutures(t *testing.T) {
	tb := newTestBridge(t)

	blocked := make(chan struct{})
	t.Cleanup(func() { close(blocked) })
	tb.registry.MustRegister(dispatch.Handler{
		Name: "block",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			select {
			case <-blocked:
			case <-ctx.Done():
			}
			return nil, ctx.Err()
		},
	})

	future, err := tb.frontend.Call(context.Background(), "block", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	tb.frontend.Close()

	waitContext, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	_, err = future.Wait(waitContext)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("error = %v, want ErrClosed", err)
	}

	// New calls on a closed frontend fail immediately.
	if _, err := tb.frontend.Call(context.Background(), "ping", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("Call after close = %v, want ErrClosed", err)
	}
}

func TestOutOfOrderCompletion(t *testing.T) {
	tb := newTestBridge(t)

	release := make(chan struct{})
	tb.registry.MustRegister(dispatch.Handler{
		Name: "slow",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			select {
			case <-release:
				return "slow done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	slowFuture, err := tb.frontend.Call(context.Background(), "slow", nil)
	if err != nil {
		t.Fatalf("Call slow: %v", err)
	}

	// A fast call issued after the slow one completes first.
	if _, err := tb.frontend.Invoke(context.Background(), "ping", nil); err != nil {
		t.Fatalf("Invoke ping: %v", err)
	}

	close(release)
	result, err := slowFuture.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait slow: %v", err)
	}
	var reply string
	if err := result.Decode(&reply); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reply != "slow done" {
		t.Fatalf("reply = %q, want %q", reply, "slow done")
	}
}
