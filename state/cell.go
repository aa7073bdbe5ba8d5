// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"sync/atomic"
)

// Cell holds one value of type T under mutual exclusion. Create with
// [New]; the zero value is not usable.
//
// Exclusion is a single-slot semaphore rather than a sync.Mutex so
// that acquisition can observe context cancellation. Every waiter
// eventually acquires; no ordering among waiters is promised beyond
// that.
type Cell[T any] struct {
	semaphore chan struct{}
	value     T
}

// New creates a cell owning initial.
func New[T any](initial T) *Cell[T] {
	return &Cell[T]{
		semaphore: make(chan struct{}, 1),
		value:     initial,
	}
}

// Acquire blocks until it obtains the exclusive handle or ctx is
// cancelled. The caller must call [Handle.Release] when done; prefer
// [Cell.Update], which cannot leak the handle.
//
// Acquire is not reentrant. Acquiring a cell the caller already holds
// blocks until that handle is released or ctx is cancelled.
func (c *Cell[T]) Acquire(ctx context.Context) (*Handle[T], error) {
	select {
	case c.semaphore <- struct{}{}:
		return &Handle[T]{cell: c}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Update acquires the handle, applies fn to the value, and releases.
// The handle is released on every exit path: normal return, error
// return, or a panic inside fn (the panic propagates after release).
// If acquisition fails due to ctx cancellation, fn never runs and the
// value is untouched.
func (c *Cell[T]) Update(ctx context.Context, fn func(*T) error) error {
	handle, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer handle.Release()
	return fn(handle.Value())
}

// Snapshot returns a copy of the value taken under the lock. For value
// types containing references (slices, maps), the copy is shallow.
func (c *Cell[T]) Snapshot(ctx context.Context) (T, error) {
	handle, err := c.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer handle.Release()
	return *handle.Value(), nil
}

// Handle is exclusive access to a cell's value. Valid from Acquire
// until Release; using Value after Release is a programming error
// and panics.
type Handle[T any] struct {
	cell     *Cell[T]
	released atomic.Bool
}

// Value returns a pointer to the guarded value. The pointer must not
// be retained past Release.
func (h *Handle[T]) Value() *T {
	if h.released.Load() {
		panic("state: Value called on released handle")
	}
	return &h.cell.value
}

// Release returns exclusive access to the cell. Idempotent: releasing
// an already-released handle is a no-op.
func (h *Handle[T]) Release() {
	if h.released.CompareAndSwap(false, true) {
		<-h.cell.semaphore
	}
}
