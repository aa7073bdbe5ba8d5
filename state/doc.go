// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package state provides the backend's exclusively guarded shared
// state container.
//
// A [Cell] owns one value of an application-defined type. Command
// handlers never touch backend state through package-level variables;
// the cell is the single named owner, and all access goes through an
// exclusive handle so a concurrent handler can never observe a
// half-applied mutation.
//
// [Cell.Update] is the recommended entry point: it acquires the
// handle, runs the mutation, and releases on every exit path including
// a panic inside the mutation function, so a lock leak is not
// representable in caller code. [Cell.Acquire] exists for handlers
// that need to interleave I/O with held state; callers of Acquire own
// the release.
//
// The cell is not reentrant. A handler that acquires while already
// holding the handle deadlocks deterministically — invoking another
// command's dispatch path while holding the handle is a programming
// error, not a supported pattern.
package state
