// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"sync"

	"github.com/lattice-works/span/dispatch"
	"github.com/lattice-works/span/lib/codec"
)

// Result holds a successful call's encoded return value.
type Result struct {
	Data codec.RawMessage
}

// Decode unmarshals the result into out.
func (r Result) Decode(out any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return codec.Unmarshal(r.Data, out)
}

// Future is a pending call result. It resolves exactly once: with the
// handler's outcome, or with a connection error if the link drops
// first.
type Future struct {
	requestID string
	command   string

	once sync.Once
	done chan struct{}

	// Set before done is closed; read-only afterwards.
	result Result
	err    error
}

func newFuture(requestID, command string) *Future {
	return &Future{
		requestID: requestID,
		command:   command,
		done:      make(chan struct{}),
	}
}

// RequestID returns the call's correlation identifier.
func (f *Future) RequestID() string {
	return f.requestID
}

// Wait blocks until the call resolves or ctx is done. A cancelled
// context yields a dispatch error of kind cancelled; the call itself
// keeps running on the backend. Wait may be called repeatedly and
// from multiple goroutines; every caller observes the same outcome.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return Result{}, &dispatch.Error{
			Kind:    dispatch.KindCancelled,
			Command: f.command,
			Message: ctx.Err().Error(),
		}
	}
}

// resolve delivers the outcome. Later calls are ignored.
func (f *Future) resolve(result Result, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}
