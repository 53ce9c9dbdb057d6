// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"net"
	"testing"

	"github.com/lattice-forge/messageportd/transport"
	"github.com/lattice-forge/messageportd/wire"
)

func newTestChannel(t *testing.T, role wire.HelloRole) *transport.Channel {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })
	return transport.NewChannel(server, role)
}

func TestClientManagerAttachAndDeliver(t *testing.T) {
	m := NewClientManager(0)
	id := ClientID(100)

	requestChannel := newTestChannel(t, wire.HelloRequestChannel)
	client, created := m.AttachRequestChannel(id, "com.example.a", requestChannel)
	if !created {
		t.Fatal("expected first attach to create a new client")
	}
	if client.HasReverseChannel() {
		t.Fatal("client should have no reverse channel yet")
	}

	if err := client.Deliver(wire.Frame{Type: wire.FrameDeliverMessage, Payload: []byte("x")}); err == nil {
		t.Fatal("expected Deliver to fail with no reverse channel")
	}

	reverseChannel := newTestChannel(t, wire.HelloReverseChannel)
	same, created := m.AttachReverseChannel(id, "com.example.a", reverseChannel)
	if created {
		t.Fatal("expected reverse-channel attach to reuse the existing client")
	}
	if same != client {
		t.Fatal("expected the same Client record across both channel kinds")
	}
	if !client.HasReverseChannel() {
		t.Fatal("client should now report a reverse channel")
	}
}

func TestClientManagerDetachPurgesOnlyWhenEmpty(t *testing.T) {
	m := NewClientManager(0)
	id := ClientID(200)

	requestChannel := newTestChannel(t, wire.HelloRequestChannel)
	reverseChannel := newTestChannel(t, wire.HelloReverseChannel)
	m.AttachRequestChannel(id, "com.example.a", requestChannel)
	m.AttachReverseChannel(id, "com.example.a", reverseChannel)

	if purge := m.DetachRequestChannel(id, requestChannel); purge {
		t.Fatal("client still has a reverse channel, should not be purged")
	}
	if _, ok := m.Get(id); !ok {
		t.Fatal("client record should still exist")
	}

	if purge := m.DetachReverseChannel(id); !purge {
		t.Fatal("client has no channels left, should be purged")
	}
	if _, ok := m.Get(id); ok {
		t.Fatal("client record should have been removed")
	}
}

func TestClientManagerMultipleRequestChannels(t *testing.T) {
	m := NewClientManager(0)
	id := ClientID(300)

	first := newTestChannel(t, wire.HelloRequestChannel)
	second := newTestChannel(t, wire.HelloRequestChannel)
	m.AttachRequestChannel(id, "com.example.a", first)
	m.AttachRequestChannel(id, "com.example.a", second)

	if purge := m.DetachRequestChannel(id, first); purge {
		t.Fatal("one request channel remains, client should survive")
	}
	if purge := m.DetachRequestChannel(id, second); !purge {
		t.Fatal("last channel detached, client should be purged")
	}
}
