// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"testing"
)

func TestArgsTypedAccessors(t *testing.T) {
	args := Args{
		"name":    "deploy",
		"count":   uint64(3),
		"ratio":   0.5,
		"whole":   float64(8),
		"partial": 2.5,
		"enable":  true,
		"nested":  map[string]any{"k": "v"},
		"items":   []any{"a", "b"},
	}

	if got, ok := args.String("name"); !ok || got != "deploy" {
		t.Errorf("String(name) = %q, %v", got, ok)
	}
	if _, ok := args.String("count"); ok {
		t.Error("String(count) succeeded on a number")
	}
	if got, ok := args.Int("count"); !ok || got != 3 {
		t.Errorf("Int(count) = %d, %v", got, ok)
	}
	if got, ok := args.Int("whole"); !ok || got != 8 {
		t.Errorf("Int(whole) = %d, %v (whole floats coerce)", got, ok)
	}
	if _, ok := args.Int("partial"); ok {
		t.Error("Int(partial) succeeded on a fractional float")
	}
	if got, ok := args.Float("ratio"); !ok || got != 0.5 {
		t.Errorf("Float(ratio) = %v, %v", got, ok)
	}
	if got, ok := args.Float("count"); !ok || got != 3 {
		t.Errorf("Float(count) = %v, %v (integers coerce)", got, ok)
	}
	if got, ok := args.Bool("enable"); !ok || !got {
		t.Errorf("Bool(enable) = %v, %v", got, ok)
	}
	if got, ok := args.Map("nested"); !ok || got["k"] != "v" {
		t.Errorf("Map(nested) = %v, %v", got, ok)
	}
	if got, ok := args.Slice("items"); !ok || len(got) != 2 {
		t.Errorf("Slice(items) = %v, %v", got, ok)
	}
	if _, ok := args.String("absent"); ok {
		t.Error("String(absent) succeeded on a missing key")
	}
}

func TestAsReshapesIntoStruct(t *testing.T) {
	type deployArgs struct {
		Name   string   `cbor:"name"`
		Count  int      `cbor:"count"`
		DryRun bool     `cbor:"dry_run"`
		Tags   []string `cbor:"tags"`
	}

	args := Args{
		"name":    "deploy",
		"count":   4,
		"dry_run": true,
		"tags":    []any{"canary", "eu"},
	}

	typed, err := As[deployArgs](args)
	if err != nil {
		t.Fatalf("As: %v", err)
	}
	if typed.Name != "deploy" || typed.Count != 4 || !typed.DryRun {
		t.Errorf("typed = %+v", typed)
	}
	if len(typed.Tags) != 2 || typed.Tags[0] != "canary" {
		t.Errorf("Tags = %v", typed.Tags)
	}
}
