// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/lattice-works/span/dispatch"
	"github.com/lattice-works/span/events"
	"github.com/lattice-works/span/lib/schema"
	"github.com/lattice-works/span/state"
)

// registerBuiltins installs the daemon's built-in command set. These
// double as a smoke-test surface for span-call and span-watch.
func registerBuiltins(registry *dispatch.Registry, broker *events.Broker) {
	counter := state.New(0)

	registry.MustRegister(dispatch.Handler{
		Name: "ping",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			return "pong", nil
		},
	})

	registry.MustRegister(dispatch.Handler{
		Name: "echo",
		Args: schema.Fields{
			"value": {Type: schema.Any, Required: true},
		},
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			return args["value"], nil
		},
	})

	registry.MustRegister(dispatch.Handler{
		Name: "commands",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			return registry.Names(), nil
		},
	})

	registry.MustRegister(dispatch.Handler{
		Name: "counter.increment",
		Args: schema.Fields{
			"by": {Type: schema.Number},
		},
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			step, ok := args.Int("by")
			if !ok {
				step = 1
			}
			var value int
			updateError := counter.Update(ctx, func(current *int) error {
				*current += int(step)
				value = *current
				return nil
			})
			return value, updateError
		},
	})

	registry.MustRegister(dispatch.Handler{
		Name: "counter.get",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			return counter.Snapshot(ctx)
		},
	})

	registry.MustRegister(dispatch.Handler{
		Name: "task.run",
		Args: schema.Fields{
			"step_delay_ms": {Type: schema.Number},
		},
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			delay := time.Duration(0)
			if ms, ok := args.Int("step_delay_ms"); ok {
				delay = time.Duration(ms) * time.Millisecond
			}
			for _, percent := range []int{25, 50, 100} {
				if delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				}
				broker.Publish("task-progress", map[string]any{"percent": percent})
			}
			return true, nil
		},
	})

	registry.MustRegister(dispatch.Handler{
		Name: "fail",
		Run: func(ctx context.Context, args dispatch.Args) (any, error) {
			panic("deliberate failure for testing error propagation")
		},
	})
}
