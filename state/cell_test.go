// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lattice-works/span/lib/testutil"
)

func TestUpdateMutatesValue(t *testing.T) {
	cell := New(10)

	err := cell.Update(context.Background(), func(v *int) error {
		*v += 5
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := cell.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got != 15 {
		t.Errorf("value = %d, want 15", got)
	}
}

func TestUpdateReturnsHandlerError(t *testing.T) {
	cell := New(0)
	sentinel := errors.New("nope")

	err := cell.Update(context.Background(), func(v *int) error {
		*v = 99
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Update error = %v, want %v", err, sentinel)
	}

	// The error does not roll back the mutation; it only reports it.
	// The lock must still have been released.
	got, err := cell.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot after error: %v", err)
	}
	if got != 99 {
		t.Errorf("value = %d, want 99", got)
	}
}

func TestUpdateReleasesOnPanic(t *testing.T) {
	cell := New(0)

	func() {
		defer func() {
			if recovered := recover(); recovered == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = cell.Update(context.Background(), func(v *int) error {
			panic("handler fault")
		})
	}()

	// If the panic leaked the lock, this acquire would hang; the
	// timeout context converts a leak into a test failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cell.Snapshot(ctx); err != nil {
		t.Fatalf("cell locked after panic: %v", err)
	}
}

func TestAcquireObservesCancellation(t *testing.T) {
	cell := New(0)

	handle, err := cell.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer handle.Release()

	ctx, cancel := context.WithCancel(context.Background())
	waitError := make(chan error, 1)
	go func() {
		_, acquireError := cell.Acquire(ctx)
		waitError <- acquireError
	}()

	cancel()
	err = testutil.RequireReceive(t, waitError, 5*time.Second, "waiting for cancelled acquire")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire error = %v, want context.Canceled", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	cell := New(0)

	handle, err := cell.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	handle.Release()
	handle.Release() // second release must be a no-op

	// The cell must be acquirable exactly once afterwards, proving the
	// double release did not over-credit the semaphore.
	second, err := cell.Acquire(context.Background())
	if err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	defer second.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := cell.Acquire(ctx); err == nil {
		t.Fatal("third Acquire succeeded while handle held; semaphore over-credited")
	}
}

func TestValueAfterReleasePanics(t *testing.T) {
	cell := New(0)
	handle, err := cell.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	handle.Release()

	defer func() {
		if recovered := recover(); recovered == nil {
			t.Fatal("expected panic from Value after Release")
		}
	}()
	_ = handle.Value()
}

// TestConcurrentUpdatesSerialize runs 100 concurrent increments. Each
// increment reads the counter and writes back one more, returning the
// written value. Serializability requires the final counter to be 100
// and every returned value to be distinct in 1..100.
func TestConcurrentUpdatesSerialize(t *testing.T) {
	cell := New(0)

	const callers = 100
	results := make(chan int, callers)
	var waitGroup sync.WaitGroup
	waitGroup.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer waitGroup.Done()
			var written int
			err := cell.Update(context.Background(), func(v *int) error {
				*v++
				written = *v
				return nil
			})
			if err != nil {
				t.Errorf("Update: %v", err)
				return
			}
			results <- written
		}()
	}
	waitGroup.Wait()
	close(results)

	final, err := cell.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if final != callers {
		t.Errorf("final counter = %d, want %d", final, callers)
	}

	var seen []int
	for value := range results {
		seen = append(seen, value)
	}
	sort.Ints(seen)
	for i, value := range seen {
		if value != i+1 {
			t.Fatalf("returned values not a permutation of 1..%d: position %d is %d", callers, i, value)
		}
	}
}
