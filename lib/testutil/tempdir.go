// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for messageportd packages.
package testutil

import (
	"os"
	"testing"
)

// SocketDir creates a temporary directory suitable for Unix domain sockets.
//
// Unix domain sockets have a 108-byte path limit (sun_path in
// sockaddr_un). t.TempDir() can produce paths deep enough to exceed
// this, especially under a nested test binary invocation, so broker
// and transport tests use this instead for anything that binds a
// socket.
//
// The directory is automatically removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "messageportd-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}
