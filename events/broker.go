// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Broker is a multi-subscriber broadcast channel keyed by event name.
// Create with [NewBroker]. Safe for concurrent use.
type Broker struct {
	// Logger receives recovered listener panics. If nil,
	// slog.Default() is used.
	Logger *slog.Logger

	mu            sync.Mutex
	subscriptions map[string][]*Subscription
	closed        bool
}

// NewBroker creates an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		Logger:        logger,
		subscriptions: make(map[string][]*Subscription),
	}
}

func (b *Broker) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Subscribe registers callback for the named event and starts its
// delivery goroutine. The callback runs on that goroutine, one event
// at a time, in publish order. Cancel the returned subscription to
// stop delivery.
//
// Subscribing on a closed broker returns an already-cancelled
// subscription that will never receive anything.
func (b *Broker) Subscribe(event string, callback func(payload any)) *Subscription {
	subscription := &Subscription{
		broker:   b,
		event:    event,
		callback: callback,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		subscription.Cancel()
		return subscription
	}
	b.subscriptions[event] = append(b.subscriptions[event], subscription)
	b.mu.Unlock()

	go subscription.deliver()
	return subscription
}

// Publish enqueues payload for every subscription currently registered
// on the named event, in registration order, and returns without
// waiting for any callback. With zero subscriptions the event is
// dropped silently.
func (b *Broker) Publish(event string, payload any) {
	b.mu.Lock()
	current := make([]*Subscription, len(b.subscriptions[event]))
	copy(current, b.subscriptions[event])
	b.mu.Unlock()

	for _, subscription := range current {
		subscription.enqueue(payload)
	}
}

// Close cancels every subscription. Publishing on a closed broker is a
// no-op; subscribing returns a dead subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*Subscription
	for _, forEvent := range b.subscriptions {
		all = append(all, forEvent...)
	}
	b.subscriptions = make(map[string][]*Subscription)
	b.mu.Unlock()

	for _, subscription := range all {
		subscription.Cancel()
	}
}

// remove detaches subscription from the broker's registry. Called by
// Cancel; delivery order for remaining subscriptions is unaffected.
func (b *Broker) remove(target *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	forEvent := b.subscriptions[target.event]
	for i, subscription := range forEvent {
		if subscription == target {
			b.subscriptions[target.event] = append(forEvent[:i], forEvent[i+1:]...)
			break
		}
	}
	if len(b.subscriptions[target.event]) == 0 {
		delete(b.subscriptions, target.event)
	}
}

// Subscription is one listener's registration. Obtained from
// [Broker.Subscribe].
type Subscription struct {
	broker   *Broker
	event    string
	callback func(payload any)

	queueMu sync.Mutex
	queue   []any

	// wake has capacity 1: it carries "the queue may be non-empty",
	// not a per-item token.
	wake chan struct{}
	stop chan struct{}
	once sync.Once
}

// Event returns the event name this subscription listens on.
func (s *Subscription) Event() string {
	return s.event
}

// Cancel stops delivery and removes the subscription from its broker.
// Idempotent: a second Cancel is a no-op. Events already queued but
// not yet delivered are dropped.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.stop)
	})
}

// enqueue appends payload to the subscription's queue and nudges the
// delivery goroutine. Never blocks: the queue grows as needed.
func (s *Subscription) enqueue(payload any) {
	select {
	case <-s.stop:
		return
	default:
	}

	s.queueMu.Lock()
	s.queue = append(s.queue, payload)
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// deliver drains the queue into the callback until the subscription is
// cancelled. One callback at a time preserves per-listener publish
// order.
func (s *Subscription) deliver() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		for {
			s.queueMu.Lock()
			if len(s.queue) == 0 {
				s.queueMu.Unlock()
				break
			}
			payload := s.queue[0]
			s.queue = s.queue[1:]
			s.queueMu.Unlock()

			s.invoke(payload)
		}
	}
}

// invoke runs the callback with panic isolation. A listener fault is
// logged and the subscription keeps receiving subsequent events.
func (s *Subscription) invoke(payload any) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.broker.logger().Error("event listener panic",
				"event", s.event,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.callback(payload)
}
