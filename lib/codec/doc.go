// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides span's standard CBOR encoding configuration.
//
// Everything that crosses the frontend↔backend boundary — call frames,
// results, event payloads — is CBOR. CBOR covers exactly the value
// space the bridge promises (strings, numbers, booleans, null, arrays,
// string-keyed maps), is self-delimiting so stream transports need no
// framing protocol, and decodes without the float/integer ambiguity
// JSON forces on numeric arguments.
//
// This package provides the shared encoding and decoding modes so that
// every span package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations (payloads, argument re-shaping):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets, pipes):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// [Roundtrip] re-shapes a dynamically-typed value (typically a
// map[string]any of command arguments) into a typed struct by encoding
// and re-decoding it. This is the supported path from the boundary's
// loose representation to handler-local types.
package codec
