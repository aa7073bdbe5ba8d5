// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package events provides the backend's fire-and-forget broadcast
// channel.
//
// A [Broker] delivers named events to currently subscribed listeners.
// Emission is transient: an event published while nothing listens on
// its name is dropped silently, and late subscribers see no replay.
//
// [Broker.Publish] never waits on listener callbacks. Each
// [Subscription] owns a delivery goroutine draining its own FIFO
// queue, so a slow listener delays only itself and a panicking
// listener is recovered in its own goroutine — neither can reach the
// publisher or other listeners. Within one subscription, delivery
// order is publish order. Across the subscriptions of a single
// publish, delivery starts in registration order, though the
// independent queues make cross-listener completion order
// unobservable by design.
//
// [Subscription.Cancel] is idempotent; cancelling an
// already-cancelled subscription is a no-op.
package events
