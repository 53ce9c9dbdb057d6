// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"maps"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Bundle{
		nil,
		{},
		{"k": "hello"},
		{"a": "1", "b": "2", "c": ""},
		{"MESSAGE_TYPE": "UNI-DIR", "REMOTE_APPID": "com.example.app", "REMOTE_PORT": "p"},
	}

	for _, original := range cases {
		encoded, err := original.Encode()
		if err != nil {
			t.Fatalf("Encode(%v): %v", original, err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		want := original
		if want == nil {
			want = Bundle{}
		}
		if !maps.Equal(map[string]string(decoded), map[string]string(want)) {
			t.Fatalf("round trip mismatch: got %v, want %v", decoded, want)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	b := Bundle{"z": "1", "a": "2", "m": "3"}
	first, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("encoding the same bundle twice produced different bytes")
	}
}

func TestMerge(t *testing.T) {
	base := Bundle{"k": "user-value", "shared": "base"}
	overlay := Bundle{"shared": "overlay", "MESSAGE_TYPE": "UNI-DIR"}

	merged := Merge(base, overlay)

	if merged["k"] != "user-value" {
		t.Errorf("expected base-only key preserved, got %q", merged["k"])
	}
	if merged["shared"] != "overlay" {
		t.Errorf("expected overlay to win on collision, got %q", merged["shared"])
	}
	if merged["MESSAGE_TYPE"] != "UNI-DIR" {
		t.Errorf("expected overlay-only key present, got %q", merged["MESSAGE_TYPE"])
	}

	// Inputs must not be mutated.
	if _, ok := base["MESSAGE_TYPE"]; ok {
		t.Error("Merge mutated base")
	}
}

func TestWithoutKeys(t *testing.T) {
	b := Bundle{"keep": "1", "drop1": "2", "drop2": "3"}
	stripped := b.WithoutKeys("drop1", "drop2", "not-present")

	if len(stripped) != 1 || stripped["keep"] != "1" {
		t.Fatalf("unexpected result: %v", stripped)
	}
	if _, ok := b["drop1"]; !ok {
		t.Error("WithoutKeys mutated the receiver")
	}
}
