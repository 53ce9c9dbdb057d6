// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package peercred

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestFromConnReportsOwnProcess(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "peercred.sock")

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	defer server.Close()

	creds, err := FromConn(server)
	if err != nil {
		t.Fatalf("FromConn: %v", err)
	}
	if creds.PID != int32(os.Getpid()) {
		t.Fatalf("PID = %d, want %d", creds.PID, os.Getpid())
	}
	if creds.UID != uint32(os.Getuid()) {
		t.Fatalf("UID = %d, want %d", creds.UID, os.Getuid())
	}
}

func TestFromConnRejectsNonUnixConn(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	if _, err := FromConn(client); err == nil {
		t.Fatal("expected error for non-Unix connection")
	}
}
