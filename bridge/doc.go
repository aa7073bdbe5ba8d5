// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge joins command dispatch and event broadcast into the
// two-sided contract the frontend and backend program against.
//
// [Backend] owns the dispatch registry and event broker, serves them
// over a [transport.Listener], and runs each incoming call on its own
// goroutine so commands execute in overlapping windows. Events
// published on the broker are forwarded to each connection that has
// subscribed to their name, in publish order per name.
//
// [Frontend] is the calling side: [Frontend.Call] invokes a command
// and returns a [Future] resolving to exactly one typed outcome, and
// [Frontend.On] registers an event listener and returns an idempotent
// cancel function. Only structured values cross the boundary; errors
// arrive as [dispatch.Error] values rebuilt from the wire, never as
// faults.
//
// A connection loss resolves every pending future with an error, so
// the one-outcome-per-call invariant holds even under disconnect.
package bridge
