// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/lattice-works/span/lib/schema"
)

// HandlerFunc is the logic behind one command. It receives the
// validated argument map and returns the success value or an error.
// Return a [*Error] (see [HandlerError]) to control the error kind the
// caller sees; any other error surfaces as [KindHandlerError].
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// Handler binds a command name to its run function and argument
// schema.
type Handler struct {
	// Name is the command name as sent by callers.
	Name string

	// Args declares the accepted argument shape. Nil means the
	// handler validates its own input.
	Args schema.Fields

	// Run executes the command.
	Run HandlerFunc
}

// Registry resolves command names to handlers. Register all handlers
// at startup, then share the registry across concurrently invoking
// goroutines.
type Registry struct {
	// Logger receives recovered handler panics and per-invocation
	// debug output. If nil, slog.Default() is used.
	Logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		Logger:   logger,
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Register adds a handler. Returns a [KindDuplicateCommand] error if
// the name is already taken; the existing registration stays active.
func (r *Registry) Register(handler Handler) error {
	if handler.Name == "" {
		return &Error{Kind: KindDuplicateCommand, Message: "handler has no name"}
	}
	if handler.Run == nil {
		return &Error{Kind: KindDuplicateCommand, Command: handler.Name, Message: "handler has no run function"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[handler.Name]; exists {
		return &Error{
			Kind:    KindDuplicateCommand,
			Command: handler.Name,
			Message: "already registered",
		}
	}
	r.handlers[handler.Name] = handler
	return nil
}

// MustRegister is Register that panics on failure. Use in startup
// wiring, where a duplicate name is a programming defect.
func (r *Registry) MustRegister(handler Handler) {
	if err := r.Register(handler); err != nil {
		panic(fmt.Sprintf("dispatch: %v", err))
	}
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke resolves command to its handler, validates args against the
// handler's schema, and runs it. The result is exactly one of a
// success value or a [*Error]; a handler panic is recovered here and
// surfaced as [KindInternalError] so a fault never crashes the bridge
// or leaves the invocation without an outcome.
func (r *Registry) Invoke(ctx context.Context, command string, args map[string]any) (result any, err error) {
	r.mu.RLock()
	handler, exists := r.handlers[command]
	r.mu.RUnlock()

	if !exists {
		return nil, &Error{
			Kind:    KindUnknownCommand,
			Command: command,
			Message: "no handler registered",
		}
	}

	if ctx.Err() != nil {
		return nil, &Error{
			Kind:    KindCancelled,
			Command: command,
			Message: ctx.Err().Error(),
		}
	}

	if checkError := handler.Args.Check(args); checkError != nil {
		return nil, &Error{
			Kind:    KindArgumentError,
			Command: command,
			Message: checkError.Error(),
		}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger().Error("handler panic",
				"command", command,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
			result = nil
			err = &Error{
				Kind:    KindInternalError,
				Command: command,
				Message: "internal error",
			}
		}
	}()

	value, runError := handler.Run(ctx, Args(args))
	if runError != nil {
		return nil, r.classify(command, runError)
	}
	return value, nil
}

// classify maps a handler-returned error into the taxonomy. A *Error
// passes through with the command name filled in; a context
// cancellation becomes KindCancelled; everything else is the handler's
// domain error.
func (r *Registry) classify(command string, runError error) *Error {
	var dispatchError *Error
	if errors.As(runError, &dispatchError) {
		if dispatchError.Command == "" {
			dispatchError.Command = command
		}
		return dispatchError
	}
	if errors.Is(runError, context.Canceled) || errors.Is(runError, context.DeadlineExceeded) {
		return &Error{
			Kind:    KindCancelled,
			Command: command,
			Message: runError.Error(),
		}
	}
	return &Error{
		Kind:    KindHandlerError,
		Command: command,
		Message: runError.Error(),
	}
}
