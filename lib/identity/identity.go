// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity resolves a connected peer's process identifier to
// its canonical application identifier. The specification (§1, §4.1)
// treats this as an external collaborator — on a real device it is a
// platform service that maps PIDs to installed application IDs via
// /proc and the package manager's process table. This package defines
// the interface the broker depends on and provides two reference
// implementations: a static map for tests and a /proc-backed resolver
// for a real device, driven by configured application-root directory
// prefixes with a PID->appID override table as fallback (the
// installed-application manifest itself is out of scope for this
// system, per §1).
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Resolver maps a peer process ID to its canonical application
// identifier. Resolve returns ok=false when the process cannot be
// identified — the caller (the broker's accept path) closes the
// connection without creating a client record, per §4.1 step 4.
type Resolver interface {
	Resolve(pid int32) (appID string, ok bool)
}

// StaticResolver is a fixed PID->appID table, primarily for tests and
// as the override table behind ProcFSResolver.
type StaticResolver struct {
	mu    sync.RWMutex
	table map[int32]string
}

// NewStaticResolver returns a StaticResolver seeded with the given
// table. A nil table starts empty.
func NewStaticResolver(table map[int32]string) *StaticResolver {
	r := &StaticResolver{table: make(map[int32]string, len(table))}
	for pid, appID := range table {
		r.table[pid] = appID
	}
	return r
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(pid int32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appID, ok := r.table[pid]
	return appID, ok
}

// Set assigns appID as the identity for pid. Overwrites any existing
// assignment. Intended for tests that spin up a real process (or fake
// one) and need to teach the resolver its identity before connecting.
func (r *StaticResolver) Set(pid int32, appID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[pid] = appID
}

// ProcFSResolver resolves a PID to an application identifier by
// reading /proc/<pid>/cmdline and matching the executable path against
// a configured directory-to-appID mapping (each installed application
// runs from a per-app directory on the platforms this daemon targets,
// e.g. /opt/usr/apps/<appID>/bin/...). Falls back to the static
// overrides table for PIDs that don't resolve through /proc (used in
// tests and for locally-run daemon components).
type ProcFSResolver struct {
	// ProcRoot is the mount point of procfs. Defaults to "/proc".
	// Overridable for tests that fabricate a fake procfs layout.
	ProcRoot string

	// AppRoots maps an installation directory prefix to the app ID
	// segment's position convention: the first path component after
	// the prefix is treated as the appID. Order matters — the first
	// matching prefix wins.
	AppRoots []string

	overrides *StaticResolver
}

// NewProcFSResolver constructs a resolver with the given app-root
// prefixes. Use Overrides to seed PIDs that won't be found in procfs.
func NewProcFSResolver(appRoots ...string) *ProcFSResolver {
	return &ProcFSResolver{
		ProcRoot: "/proc",
		AppRoots: appRoots,
		overrides: NewStaticResolver(nil),
	}
}

// Overrides returns the static resolver consulted before procfs
// lookup fails outright, letting callers register identities for
// processes that don't live under a configured app root.
func (r *ProcFSResolver) Overrides() *StaticResolver {
	return r.overrides
}

// Resolve implements Resolver.
func (r *ProcFSResolver) Resolve(pid int32) (string, bool) {
	root := r.ProcRoot
	if root == "" {
		root = "/proc"
	}

	cmdlinePath := filepath.Join(root, fmt.Sprintf("%d", pid), "cmdline")
	data, err := os.ReadFile(cmdlinePath)
	if err == nil {
		// cmdline is NUL-separated; argv[0] is the executable path.
		argv0, _, _ := strings.Cut(string(data), "\x00")
		for _, appRoot := range r.AppRoots {
			if rel, ok := strings.CutPrefix(argv0, strings.TrimSuffix(appRoot, "/")+"/"); ok {
				appID, _, _ := strings.Cut(rel, "/")
				if appID != "" {
					return appID, true
				}
			}
		}
	}

	return r.overrides.Resolve(pid)
}
