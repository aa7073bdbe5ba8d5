// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch resolves named commands to registered handlers and
// manages invocation outcomes.
//
// A [Registry] is populated once at startup: each [Handler] binds a
// command name to a run function and an argument schema. Registration
// of a taken name fails ([KindDuplicateCommand]); use [Registry.MustRegister]
// in wiring code where a duplicate is a programming defect worth a
// panic.
//
// [Registry.Invoke] is safe for concurrent use and yields exactly one
// terminal outcome per invocation: the handler's success value or a
// [*Error]. The dispatcher converts every failure mode into the error
// taxonomy — unknown name, schema rejection, handler-reported domain
// error, recovered panic, observed cancellation — so no fault escapes
// the dispatch boundary and no invocation is left without an outcome.
//
// Handlers run on the invoking goroutine. Concurrency across commands
// comes from the callers (the bridge backend invokes each incoming
// call on its own goroutine); two independent commands never block
// each other inside the dispatcher.
package dispatch
