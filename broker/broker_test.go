// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lattice-forge/messageportd/bundle"
	"github.com/lattice-forge/messageportd/lib/identity"
	"github.com/lattice-forge/messageportd/lib/pkgmanager"
	"github.com/lattice-forge/messageportd/lib/testutil"
	"github.com/lattice-forge/messageportd/transport"
	"github.com/lattice-forge/messageportd/wire"
)

// dialAndHello opens a connection to socketPath, sends the hello
// handshake for role, and wraps it in a Channel so the test can reuse
// the same framing the real proxy would.
func dialAndHello(t *testing.T, socketPath string, role wire.HelloRole) *transport.Channel {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write(wire.EncodeHello(role)); err != nil {
		t.Fatalf("hello write: %v", err)
	}
	return transport.NewChannel(conn, role)
}

// TestBrokerDisconnectPurgesBothNamespaces exercises the specification's
// disconnect-cleanup invariant end to end over a real Unix socket: a
// client registers a port in each namespace, disconnects, and both
// namespaces must be empty of its entries afterward.
func TestBrokerDisconnectPurgesBothNamespaces(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "broker.sock")

	resolver := identity.NewStaticResolver(nil)
	trust := pkgmanager.NewStaticOracle(nil)
	b := New(socketPath, 0, 0, resolver, trust, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() { serveDone <- b.Serve(ctx) }()
	waitForSocket(t, socketPath)

	// The listener resolves the kernel-reported peer PID, which for a
	// connection dialed from this test is the test process itself.
	clientPID := int32(os.Getpid())
	resolver.Set(clientPID, "com.example.a")

	conn := dialAndHello(t, socketPath, wire.HelloRequestChannel)

	registerFrame := func(name string, trusted bool) wire.Frame {
		req := bundle.Bundle{
			wire.KeyLocalAppID:   "com.example.a",
			wire.KeyLocalPort:    name,
			wire.KeyTrustedLocal: wire.BoolString(trusted),
		}
		payload, err := req.Encode()
		if err != nil {
			t.Fatalf("encoding register request: %v", err)
		}
		return wire.Frame{Type: wire.FrameRegisterPort, Payload: payload}
	}

	for _, f := range []wire.Frame{registerFrame("p", false), registerFrame("q", true)} {
		if err := conn.WriteFrame(f); err != nil {
			t.Fatalf("writing register frame: %v", err)
		}
		reply, err := conn.ReadFrame()
		if err != nil {
			t.Fatalf("reading reply: %v", err)
		}
		b2, err := bundle.Decode(reply.Payload)
		if err != nil {
			t.Fatalf("decoding reply: %v", err)
		}
		if b2[wire.KeyResultCode] != "0" {
			t.Fatalf("expected successful registration, got RESULT_CODE=%s", b2[wire.KeyResultCode])
		}
	}

	if !b.Registry().IsLocalPortRegistered(Untrusted, "com.example.a", "p") {
		t.Fatal("expected untrusted port p registered before disconnect")
	}
	if !b.Registry().IsLocalPortRegistered(Trusted, "com.example.a", "q") {
		t.Fatal("expected trusted port q registered before disconnect")
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !b.Registry().IsLocalPortRegistered(Untrusted, "com.example.a", "p") &&
			!b.Registry().IsLocalPortRegistered(Trusted, "com.example.a", "q") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected both namespaces to be purged after disconnect")
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s never became available", path)
}
