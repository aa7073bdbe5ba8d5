// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"sort"
)

// Type is one of the boundary's value categories. "number" covers
// every numeric representation the codec can deliver — integer widths,
// floats — since a serialized boundary does not preserve Go's numeric
// type distinctions.
type Type string

const (
	String  Type = "string"
	Number  Type = "number"
	Boolean Type = "boolean"
	Object  Type = "object"
	Array   Type = "array"
	Any     Type = "any"
)

// Field describes one named argument.
type Field struct {
	// Type is the expected value category.
	Type Type

	// Required rejects calls that omit the field. Optional fields may
	// be absent but, when present, must still match Type.
	Required bool
}

// Fields maps argument names to their declared shape. A nil Fields on
// a handler means the handler validates its own input; the dispatcher
// passes the argument map through untouched.
type Fields map[string]Field

// Check validates args against the declared fields. The first
// violation found is returned; nil means args conform. Unknown
// argument names are violations — a caller sending a field the
// handler never declared is usually a misspelled parameter.
//
// Field names are checked in sorted order so the reported violation
// is deterministic.
func (f Fields) Check(args map[string]any) error {
	if f == nil {
		return nil
	}

	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := f[name]
		value, present := args[name]
		if !present {
			if field.Required {
				return fmt.Errorf("missing required argument %q (%s)", name, field.Type)
			}
			continue
		}
		if err := checkType(name, field.Type, value); err != nil {
			return err
		}
	}

	unknown := make([]string, 0)
	for name := range args {
		if _, declared := f[name]; !declared {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown argument %q", unknown[0])
	}

	return nil
}

// checkType verifies that value belongs to the declared category.
// A nil value is accepted only by Any: null is not a string, number,
// boolean, object, or array.
func checkType(name string, declared Type, value any) error {
	if declared == Any {
		return nil
	}
	if value == nil {
		return fmt.Errorf("argument %q: expected %s, got null", name, declared)
	}

	actual := typeOf(value)
	if actual != declared {
		return fmt.Errorf("argument %q: expected %s, got %s", name, declared, actual)
	}
	return nil
}

// typeOf maps a decoded Go value to its boundary category. The codec
// delivers maps as map[string]any and arrays as []any, but handler
// tests and in-process callers may pass richer Go values, so typed
// slices and string-keyed maps also count.
func typeOf(value any) Type {
	switch value.(type) {
	case string:
		return String
	case bool:
		return Boolean
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return Number
	case map[string]any:
		return Object
	case []any, []string, []int, []float64, []bool:
		return Array
	default:
		return Type(fmt.Sprintf("%T", value))
	}
}
