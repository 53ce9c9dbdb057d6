// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(map[int32]string{100: "com.example.a"})

	if appID, ok := r.Resolve(100); !ok || appID != "com.example.a" {
		t.Fatalf("Resolve(100) = %q, %v; want com.example.a, true", appID, ok)
	}
	if _, ok := r.Resolve(200); ok {
		t.Fatal("Resolve(200) should not be found")
	}

	r.Set(200, "com.example.b")
	if appID, ok := r.Resolve(200); !ok || appID != "com.example.b" {
		t.Fatalf("Resolve(200) after Set = %q, %v; want com.example.b, true", appID, ok)
	}
}

func TestProcFSResolverMatchesAppRoot(t *testing.T) {
	procRoot := t.TempDir()
	pidDir := filepath.Join(procRoot, "42")
	if err := os.MkdirAll(pidDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cmdline := "/opt/apps/com.example.chat/bin/chat\x00--flag\x00"
	if err := os.WriteFile(filepath.Join(pidDir, "cmdline"), []byte(cmdline), 0644); err != nil {
		t.Fatalf("write cmdline: %v", err)
	}

	r := NewProcFSResolver("/opt/apps")
	r.ProcRoot = procRoot

	appID, ok := r.Resolve(42)
	if !ok || appID != "com.example.chat" {
		t.Fatalf("Resolve(42) = %q, %v; want com.example.chat, true", appID, ok)
	}
}

func TestProcFSResolverFallsBackToOverrides(t *testing.T) {
	r := NewProcFSResolver("/opt/apps")
	r.ProcRoot = t.TempDir() // no such PID directory exists
	r.Overrides().Set(7, "com.example.fallback")

	appID, ok := r.Resolve(7)
	if !ok || appID != "com.example.fallback" {
		t.Fatalf("Resolve(7) = %q, %v; want com.example.fallback, true", appID, ok)
	}

	if _, ok := r.Resolve(8); ok {
		t.Fatal("Resolve(8) should not be found")
	}
}

var _ Resolver = (*StaticResolver)(nil)
var _ Resolver = (*ProcFSResolver)(nil)
