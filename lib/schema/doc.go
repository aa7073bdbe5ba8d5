// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema declares the argument shape a command handler
// accepts.
//
// Command dispatch is string-keyed because the call travels across a
// serialized boundary, but the argument map is not trusted: each
// handler registers an [Object] describing its fields, and the
// dispatcher checks incoming arguments against it before the handler
// runs. A malformed call is rejected with enough detail (field name,
// expected and actual type) for the caller to fix it.
//
// The type system is deliberately the boundary's own: string, number,
// boolean, object, array, and any. Finer-grained validation (ranges,
// enum membership) belongs in the handler after re-shaping into a
// typed struct.
package schema
