// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import "sync"

// RegisteredPort names one entry removed by PurgeOwner: which
// namespace it lived in and the key within that namespace.
type RegisteredPort struct {
	Namespace Namespace
	Key       PortKey
}

// Registry tracks every port currently registered by any connected
// application, kept as two separate maps so the trusted and untrusted
// namespaces of the same (AppID, Name) pair never collide. All methods
// are safe for concurrent use — the broker runs one goroutine per
// connection, and registration/lookup/purge can all happen
// concurrently across clients (§12 of the expanded specification).
type Registry struct {
	mu        sync.Mutex
	untrusted map[PortKey]ClientID
	trusted   map[PortKey]ClientID
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		untrusted: make(map[PortKey]ClientID),
		trusted:   make(map[PortKey]ClientID),
	}
}

// mapFor returns the namespace's backing map. Callers must hold r.mu.
func (r *Registry) mapFor(ns Namespace) map[PortKey]ClientID {
	if ns == Trusted {
		return r.trusted
	}
	return r.untrusted
}

// Register claims key in namespace ns for owner. If the key is
// already held by owner itself, the call fails with CodeIoError and
// leaves the registry untouched — a port is not reconfigurable by
// re-registering it, a client that wants a fresh callback registers
// under a different name. If the key is held by a different owner,
// the stale entry is evicted and owner silently takes its place: the
// registry does not attempt to adjudicate ownership disputes between
// two applications racing to claim the same name, matching §4.2 of
// the specification.
func (r *Registry) Register(ns Namespace, key PortKey, owner ClientID) *Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.mapFor(ns)
	if existing, ok := m[key]; ok && existing == owner {
		return NewError(CodeIoError, "port %q already registered by this client", key.Name)
	}
	m[key] = owner
	return nil
}

// Lookup reports whether key is registered in namespace ns and, if
// so, its owner.
func (r *Registry) Lookup(ns Namespace, key PortKey) (ClientID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.mapFor(ns)[key]
	return owner, ok
}

// IsLocalPortRegistered reports whether appID has registered name in
// namespace. The original implementation this is modeled on selected
// the map to scan independently of the namespace it was told to
// check, so a port registered in one namespace could shadow a lookup
// in the other; here the namespace argument always picks the map that
// is actually consulted, so there is no selection step left to get
// backwards.
func (r *Registry) IsLocalPortRegistered(ns Namespace, appID, name string) bool {
	_, ok := r.Lookup(ns, PortKey{AppID: appID, Name: name})
	return ok
}

// PurgeOwner removes every port entry owned by owner across both
// namespaces, returning the entries that were removed. Called when a
// client's last channel, request or reverse, has detached.
func (r *Registry) PurgeOwner(owner ClientID) []RegisteredPort {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []RegisteredPort
	for key, o := range r.untrusted {
		if o == owner {
			delete(r.untrusted, key)
			removed = append(removed, RegisteredPort{Namespace: Untrusted, Key: key})
		}
	}
	for key, o := range r.trusted {
		if o == owner {
			delete(r.trusted, key)
			removed = append(removed, RegisteredPort{Namespace: Trusted, Key: key})
		}
	}
	return removed
}

// Count returns the number of currently registered ports across both
// namespaces, for the admin status action.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.untrusted) + len(r.trusted)
}
