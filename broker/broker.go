// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"
	"os"

	"github.com/lattice-forge/messageportd/lib/identity"
	"github.com/lattice-forge/messageportd/lib/metrics"
	"github.com/lattice-forge/messageportd/lib/pkgmanager"
	"github.com/lattice-forge/messageportd/transport"
	"github.com/lattice-forge/messageportd/wire"
)

// Broker wires the transport listener to the registry, client
// manager, and dispatcher, and implements transport.Handler to route
// each accepted connection to the right side of the protocol. This is
// the single routing function the specification's "Re-architecture
// guidance" (§9) asks for in place of the original's per-event
// virtual-dispatch callbacks.
type Broker struct {
	listener   *transport.Listener
	registry   *Registry
	clients    *ClientManager
	dispatcher *Dispatcher
	metrics    *metrics.Counters
	log        *slog.Logger
}

// New constructs a Broker listening on socketPath, resolving peer
// identities via resolver and trust decisions via trust. maxPending
// bounds how many undelivered DeliverMessage frames each client's
// reverse channel queues before further deliveries to it are dropped
// (0 uses the same default as config.Default's MaxPendingPerClient).
// logger may be nil, in which case slog.Default() is used.
func New(socketPath string, socketMode uint32, maxPending int, resolver identity.Resolver, trust pkgmanager.Oracle, logger *slog.Logger) *Broker {
	registry := NewRegistry()
	clients := NewClientManager(maxPending)
	m := &metrics.Counters{}

	b := &Broker{
		registry: registry,
		clients:  clients,
		dispatcher: &Dispatcher{
			Registry: registry,
			Clients:  clients,
			Trust:    trust,
			Metrics:  m,
			Logger:   logger,
		},
		metrics: m,
		log:     logger,
	}
	b.listener = &transport.Listener{
		SocketPath: socketPath,
		SocketMode: modeOrDefault(socketMode),
		Identity:   resolver,
		Logger:     logger,
	}
	return b
}

func modeOrDefault(mode uint32) os.FileMode {
	if mode == 0 {
		return 0666
	}
	return os.FileMode(mode)
}

// SetMACLabel configures the label the listener attaches to its
// socket directory and socket file once Serve starts listening. Must
// be called before Serve.
func (b *Broker) SetMACLabel(label string) {
	b.listener.MACLabel = label
}

// Registry returns the broker's port registry, for the admin status
// action and tests.
func (b *Broker) Registry() *Registry { return b.registry }

// Clients returns the broker's client manager, for the admin status
// action and tests.
func (b *Broker) Clients() *ClientManager { return b.clients }

// Metrics returns the broker's live counters.
func (b *Broker) Metrics() *metrics.Counters { return b.metrics }

// Serve accepts connections until ctx is cancelled. See
// transport.Listener.Serve for shutdown semantics.
func (b *Broker) Serve(ctx context.Context) error {
	return b.listener.Serve(ctx, b)
}

// HandleConnection implements transport.Handler. A request channel is
// read in a loop, each frame dispatched and replied to on the same
// channel, until the connection closes — at which point, if that was
// the client's last channel, its registered ports are purged (§4.1
// "Per-channel read", §3 "Client" lifecycle). A reverse channel never
// carries application frames upstream; HandleConnection just blocks
// on its ReadLoop (which only ever returns on EOF or error) so the
// listener's accept goroutine and WaitGroup track it correctly.
func (b *Broker) HandleConnection(ctx context.Context, peer transport.PeerInfo, channel *transport.Channel) {
	id := ClientID(peer.Credentials.PID)
	defer channel.Close()

	switch peer.Role {
	case wire.HelloReverseChannel:
		_, created := b.clients.AttachReverseChannel(id, peer.AppID, channel)
		b.noteConnected(created)
		defer b.detachReverse(id)

		channel.ReadLoop(func(wire.Frame) error { return nil })

	default:
		client, created := b.clients.AttachRequestChannel(id, peer.AppID, channel)
		b.noteConnected(created)
		defer b.detachRequest(id, channel)

		channel.ReadLoop(func(frame wire.Frame) error {
			reply, err := b.dispatcher.Dispatch(client, frame)
			if err != nil {
				b.logger().Warn("dispatch failed", "app_id", client.AppID, "frame_type", frame.Type, "error", err)
				return nil
			}
			return channel.WriteFrame(reply)
		})
	}
}

func (b *Broker) noteConnected(created bool) {
	if created {
		b.metrics.ClientsConnected.Add(1)
		b.metrics.ClientsActive.Add(1)
	}
}

func (b *Broker) detachRequest(id ClientID, channel *transport.Channel) {
	if b.clients.DetachRequestChannel(id, channel) {
		b.purge(id)
	}
}

func (b *Broker) detachReverse(id ClientID) {
	if b.clients.DetachReverseChannel(id) {
		b.purge(id)
	}
}

func (b *Broker) logger() *slog.Logger {
	if b.log != nil {
		return b.log
	}
	return slog.Default()
}

func (b *Broker) purge(id ClientID) {
	removed := b.registry.PurgeOwner(id)
	b.metrics.ClientsActive.Add(-1)
	if len(removed) > 0 {
		b.logger().Debug("purged registry entries on disconnect", "client_id", id, "count", len(removed))
	}
}
