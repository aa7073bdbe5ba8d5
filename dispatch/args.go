// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"github.com/lattice-works/span/lib/codec"
)

// Args is the argument map a handler receives. Values are in the
// boundary's loose representation (string, numeric types, bool,
// map[string]any, []any, nil). The typed accessors cover the common
// lookups; handlers with structured input use [As] to re-shape the
// whole map into a struct.
type Args map[string]any

// String returns the named argument as a string.
func (a Args) String(name string) (string, bool) {
	value, ok := a[name].(string)
	return value, ok
}

// Bool returns the named argument as a bool.
func (a Args) Bool(name string) (bool, bool) {
	value, ok := a[name].(bool)
	return value, ok
}

// Int returns the named argument as an int64, coercing from any
// numeric representation the codec may have produced. Float values
// with a fractional part do not count as integers.
func (a Args) Int(name string) (int64, bool) {
	switch value := a[name].(type) {
	case int:
		return int64(value), true
	case int8:
		return int64(value), true
	case int16:
		return int64(value), true
	case int32:
		return int64(value), true
	case int64:
		return value, true
	case uint:
		return int64(value), true
	case uint8:
		return int64(value), true
	case uint16:
		return int64(value), true
	case uint32:
		return int64(value), true
	case uint64:
		return int64(value), true
	case float32:
		if value == float32(int64(value)) {
			return int64(value), true
		}
	case float64:
		if value == float64(int64(value)) {
			return int64(value), true
		}
	}
	return 0, false
}

// Float returns the named argument as a float64, coercing from any
// numeric representation.
func (a Args) Float(name string) (float64, bool) {
	switch value := a[name].(type) {
	case float32:
		return float64(value), true
	case float64:
		return value, true
	}
	if integer, ok := a.Int(name); ok {
		return float64(integer), true
	}
	return 0, false
}

// Map returns the named argument as a string-keyed map.
func (a Args) Map(name string) (map[string]any, bool) {
	value, ok := a[name].(map[string]any)
	return value, ok
}

// Slice returns the named argument as a []any.
func (a Args) Slice(name string) ([]any, bool) {
	value, ok := a[name].([]any)
	return value, ok
}

// As re-shapes the argument map into a typed struct via the codec
// round-trip, applying the same field-name and type rules as a value
// that crossed the boundary.
func As[T any](a Args) (T, error) {
	var out T
	err := codec.Roundtrip(map[string]any(a), &out)
	return out, err
}
