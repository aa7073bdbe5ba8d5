// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"errors"
	"fmt"
)

// Kind classifies a dispatch failure. Kinds travel across the boundary
// verbatim, so the calling side can distinguish a caller mistake
// (unknown command, bad arguments) from a backend fault without
// parsing messages.
type Kind string

const (
	// KindUnknownCommand means no handler is registered for the name.
	KindUnknownCommand Kind = "unknown_command"

	// KindArgumentError means the arguments failed the handler's
	// declared schema. The message names the offending field.
	KindArgumentError Kind = "argument_error"

	// KindInternalError means the handler raised an unexpected fault
	// (panic). The fault is logged backend-side; the message carries
	// no internal detail.
	KindInternalError Kind = "internal_error"

	// KindHandlerError is a handler's own domain failure, surfaced
	// verbatim to the caller.
	KindHandlerError Kind = "handler_error"

	// KindDuplicateCommand is returned at registration time when the
	// name is already taken. A registration-order defect, not a
	// runtime condition.
	KindDuplicateCommand Kind = "duplicate_command"

	// KindCancelled means the invocation's context was cancelled
	// before or while the handler ran.
	KindCancelled Kind = "cancelled"
)

// Error is the dispatcher's structured failure. Callers use errors.As
// to extract it:
//
//	var dispatchErr *dispatch.Error
//	if errors.As(err, &dispatchErr) {
//	    if dispatchErr.Kind == dispatch.KindUnknownCommand { ... }
//	}
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Command is the command name the failure belongs to. Empty for
	// registration-time errors where the registry itself is the
	// subject.
	Command string

	// Message is the human-readable description.
	Message string
}

func (e *Error) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("dispatch: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("dispatch: command %q: %s: %s", e.Command, e.Kind, e.Message)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var dispatchError *Error
	if errors.As(err, &dispatchError) {
		return dispatchError.Kind == kind
	}
	return false
}

// HandlerError builds a domain error for a handler to return. The
// dispatcher fills in the command name.
func HandlerError(format string, args ...any) *Error {
	return &Error{Kind: KindHandlerError, Message: fmt.Sprintf(format, args...)}
}
