// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"

	"github.com/lattice-works/span/dispatch"
	"github.com/lattice-works/span/lib/codec"
)

// Frame kinds.
const (
	// KindCall invokes a command. Frontend → backend.
	KindCall = "call"

	// KindResult is the single terminal outcome of a call.
	// Backend → frontend, correlated by request ID.
	KindResult = "result"

	// KindEvent is a fire-and-forget notification for a subscribed
	// event name. Backend → frontend.
	KindEvent = "event"

	// KindSubscribe asks the backend to forward events for a name.
	// Frontend → backend. The frontend sends it when the first local
	// listener for the name appears.
	KindSubscribe = "subscribe"

	// KindUnsubscribe stops forwarding for a name. Frontend →
	// backend, sent when the last local listener is removed.
	KindUnsubscribe = "unsubscribe"
)

// MaxFrameBytes is the default read limit for a single frame. Guards
// the decoder against a misbehaving peer exhausting memory.
const MaxFrameBytes = 1 << 20

// Frame is the boundary envelope. Kind determines which fields are
// meaningful; unused fields are omitted from the encoding.
type Frame struct {
	// Kind is the frame type: call, result, event, subscribe, or
	// unsubscribe.
	Kind string `cbor:"kind"`

	// RequestID correlates a result with its call. Unique per call;
	// assigned by the frontend.
	RequestID string `cbor:"request_id,omitempty"`

	// Command is the command name (for calls).
	Command string `cbor:"command,omitempty"`

	// Args is the command's argument map (for calls).
	Args map[string]any `cbor:"args,omitempty"`

	// OK reports whether the call succeeded (for results).
	OK bool `cbor:"ok,omitempty"`

	// Data is the encoded success value (for results with OK set).
	// Absent for commands that return nothing.
	Data codec.RawMessage `cbor:"data,omitempty"`

	// Error is the failure outcome (for results with OK unset).
	Error *ErrorPayload `cbor:"error,omitempty"`

	// Event is the event name (for event, subscribe, and unsubscribe
	// frames).
	Event string `cbor:"event,omitempty"`

	// Seq numbers event frames per connection, monotonically. Lets
	// the frontend assert ordered delivery.
	Seq uint64 `cbor:"seq,omitempty"`

	// Payload is the encoded event payload, LZ4 block-compressed when
	// RawSize is non-zero (for event frames).
	Payload []byte `cbor:"payload,omitempty"`

	// RawSize is the pre-compression payload length. Zero means the
	// payload is not compressed.
	RawSize int `cbor:"raw_size,omitempty"`
}

// Validate checks that the frame carries the fields its kind requires.
// Transports call this on receive so malformed frames are rejected at
// the boundary instead of surfacing as nil-field faults deeper in.
func (f *Frame) Validate() error {
	switch f.Kind {
	case KindCall:
		if f.RequestID == "" {
			return errors.New("call frame missing request_id")
		}
		if f.Command == "" {
			return errors.New("call frame missing command")
		}
	case KindResult:
		if f.RequestID == "" {
			return errors.New("result frame missing request_id")
		}
		if !f.OK && f.Error == nil {
			return errors.New("failed result frame missing error")
		}
	case KindEvent:
		if f.Event == "" {
			return errors.New("event frame missing event name")
		}
	case KindSubscribe, KindUnsubscribe:
		if f.Event == "" {
			return fmt.Errorf("%s frame missing event name", f.Kind)
		}
	case "":
		return errors.New("frame missing kind")
	default:
		return fmt.Errorf("unknown frame kind %q", f.Kind)
	}
	return nil
}

// ErrorPayload is the serializable mirror of [dispatch.Error].
type ErrorPayload struct {
	// Kind is the dispatch error kind string.
	Kind string `cbor:"kind"`

	// Command is the command the failure belongs to.
	Command string `cbor:"command,omitempty"`

	// Message is the human-readable description.
	Message string `cbor:"message"`
}

// NewErrorPayload converts an invocation error for the wire. A
// [*dispatch.Error] crosses field-for-field; any other error is
// conservatively classified as an internal fault so backend detail
// does not leak by accident.
func NewErrorPayload(command string, err error) *ErrorPayload {
	var dispatchError *dispatch.Error
	if errors.As(err, &dispatchError) {
		return &ErrorPayload{
			Kind:    string(dispatchError.Kind),
			Command: dispatchError.Command,
			Message: dispatchError.Message,
		}
	}
	return &ErrorPayload{
		Kind:    string(dispatch.KindInternalError),
		Command: command,
		Message: "internal error",
	}
}

// ToError rebuilds the typed dispatch error on the calling side.
func (p *ErrorPayload) ToError() *dispatch.Error {
	return &dispatch.Error{
		Kind:    dispatch.Kind(p.Kind),
		Command: p.Command,
		Message: p.Message,
	}
}
