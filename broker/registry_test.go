// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import "testing"

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	owner := ClientID(100)
	key := PortKey{AppID: "com.example.a", Name: "chat"}

	if err := r.Register(Untrusted, key, owner); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := r.Lookup(Untrusted, key)
	if !ok || got != owner {
		t.Fatalf("Lookup = %v, %v; want owner %v", got, ok, owner)
	}
}

func TestRegistryReRegisterSameOwnerFails(t *testing.T) {
	r := NewRegistry()
	owner := ClientID(100)
	key := PortKey{AppID: "com.example.a", Name: "chat"}

	if err := r.Register(Trusted, key, owner); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(Trusted, key, owner)
	if err == nil || err.Code != CodeIoError {
		t.Fatalf("re-register by same owner should fail with CodeIoError, got %v", err)
	}
}

func TestRegistryRegisterDifferentOwnerReplaces(t *testing.T) {
	r := NewRegistry()
	key := PortKey{AppID: "com.example.a", Name: "chat"}
	first := ClientID(100)
	second := ClientID(200)

	if err := r.Register(Untrusted, key, first); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(Untrusted, key, second); err != nil {
		t.Fatalf("register by a different owner should silently replace, got error: %v", err)
	}

	got, ok := r.Lookup(Untrusted, key)
	if !ok || got != second {
		t.Fatalf("Lookup = %v, %v; want owner %v", got, ok, second)
	}
}

func TestRegistryNamespacesAreIndependent(t *testing.T) {
	r := NewRegistry()
	owner := ClientID(100)
	key := PortKey{AppID: "com.example.a", Name: "chat"}

	if err := r.Register(Untrusted, key, owner); err != nil {
		t.Fatalf("Register untrusted: %v", err)
	}
	if err := r.Register(Trusted, key, owner); err != nil {
		t.Fatalf("Register trusted: %v", err)
	}

	if !r.IsLocalPortRegistered(Untrusted, "com.example.a", "chat") {
		t.Error("expected untrusted chat port registered")
	}
	if !r.IsLocalPortRegistered(Trusted, "com.example.a", "chat") {
		t.Error("expected trusted chat port registered")
	}
	if r.IsLocalPortRegistered(Untrusted, "com.example.a", "other") {
		t.Error("did not expect unregistered port to report registered")
	}
}

func TestRegistryPurgeOwner(t *testing.T) {
	r := NewRegistry()
	owner := ClientID(100)
	other := ClientID(200)

	keyA := PortKey{AppID: "com.example.a", Name: "p1"}
	keyB := PortKey{AppID: "com.example.a", Name: "p2"}
	keyC := PortKey{AppID: "com.example.b", Name: "p3"}

	r.Register(Untrusted, keyA, owner)
	r.Register(Trusted, keyB, owner)
	r.Register(Untrusted, keyC, other)

	removed := r.PurgeOwner(owner)
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed entries, got %d", len(removed))
	}
	if _, ok := r.Lookup(Untrusted, keyA); ok {
		t.Error("keyA should have been purged")
	}
	if _, ok := r.Lookup(Trusted, keyB); ok {
		t.Error("keyB should have been purged")
	}
	if _, ok := r.Lookup(Untrusted, keyC); !ok {
		t.Error("keyC belongs to a different owner and should survive")
	}
}
