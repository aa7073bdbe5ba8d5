// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the CBOR-encoded frame types for the
// frontend↔backend boundary. Both bridge sides and every transport
// import this package so the envelope is defined once rather than
// mirrored.
//
// A [Frame] is a kind-tagged union: call, result, event, subscribe,
// unsubscribe. Only structured data crosses in a frame — no live
// object references, locks, or callbacks. Errors cross as
// [ErrorPayload], the serializable mirror of [dispatch.Error], because
// a fault cannot be thrown across a serialized boundary; it travels
// the same channel as success data and is rebuilt into a typed error
// on the calling side.
//
// Event payloads at or above a size threshold are LZ4
// block-compressed ([EncodeEventPayload]); the frame records the raw
// size so the receiver can verify the decompressed length. Payloads
// that do not shrink travel raw.
package wire
