// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"sync"

	"github.com/lattice-forge/messageportd/transport"
	"github.com/lattice-forge/messageportd/wire"
)

// Client is one connected application: a stable identifier (the peer
// PID from its first accepted connection), its resolved application
// identifier, a set of inbound request channels, and at most one
// outbound reverse channel (§3 "Client"). A client may briefly hold
// more than one request channel — nothing in the protocol forbids a
// proxy from opening a second request connection before closing its
// first — so requests is a set, not a single field.
//
// Deliveries do not write to the reverse channel directly: Deliver
// enqueues onto pending, and a dedicated writer goroutine (started in
// clientLocked, stopped when the client is fully detached) drains it.
// This bounds how far a slow or stalled peer can make SendMessage
// callers on other connections block or pile up work, per
// MaxPendingPerClient (config.Config).
type Client struct {
	ID    ClientID
	AppID string

	mu       sync.Mutex
	requests map[*transport.Channel]struct{}
	reverse  *transport.Channel

	pending chan wire.Frame
	done    chan struct{}
}

// HasReverseChannel reports whether this client's reverse channel has
// connected yet.
func (c *Client) HasReverseChannel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reverse != nil
}

// Deliver enqueues f for delivery on the client's reverse channel.
// Returns an error without enqueuing if the reverse channel has never
// connected, or if the pending queue is already full (the client is
// being treated as unresponsive). Either way, the caller (the
// dispatcher's SendMessage handler) surfaces this as a silent drop,
// never a request error to the sender (§7 "Propagation policy").
func (c *Client) Deliver(f wire.Frame) error {
	c.mu.Lock()
	hasReverse := c.reverse != nil
	c.mu.Unlock()

	if !hasReverse {
		return fmt.Errorf("broker: client %d has no reverse channel connected", c.ID)
	}

	select {
	case c.pending <- f:
		return nil
	default:
		return fmt.Errorf("broker: client %d's pending queue is full, treating as unresponsive", c.ID)
	}
}

// runWriter drains c.pending onto whichever reverse channel is
// currently attached until c.done is closed. A frame arriving while
// no reverse channel is attached (a race between Deliver's check and
// a concurrent disconnect) or while a write fails is dropped rather
// than retried — best-effort, matching Deliver's own contract.
func (c *Client) runWriter() {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.pending:
			c.mu.Lock()
			channel := c.reverse
			c.mu.Unlock()
			if channel == nil {
				continue
			}
			channel.WriteFrame(f)
		}
	}
}

// ClientManager tracks every connected application's Client record,
// keyed by the kernel-verified peer PID established at accept time
// (§3 "Client", §5 "Shared resources": "Per-client state is owned by
// the broker's client map, keyed by process identifier").
type ClientManager struct {
	mu         sync.Mutex
	clients    map[ClientID]*Client
	maxPending int
}

// defaultMaxPending mirrors config.Default's MaxPendingPerClient, for
// callers (mainly tests) that construct a ClientManager directly
// instead of going through lib/config.
const defaultMaxPending = 256

// NewClientManager returns an empty ClientManager whose clients each
// queue up to maxPending undelivered frames before Deliver starts
// rejecting further ones. maxPending <= 0 uses defaultMaxPending.
func NewClientManager(maxPending int) *ClientManager {
	if maxPending <= 0 {
		maxPending = defaultMaxPending
	}
	return &ClientManager{clients: make(map[ClientID]*Client), maxPending: maxPending}
}

// clientLocked returns the Client for id, creating it (and starting
// its writer goroutine) if absent, and reports whether it was just
// created. Callers must hold m.mu.
func (m *ClientManager) clientLocked(id ClientID, appID string) (client *Client, created bool) {
	client, ok := m.clients[id]
	if !ok {
		client = &Client{
			ID:       id,
			AppID:    appID,
			requests: make(map[*transport.Channel]struct{}),
			pending:  make(chan wire.Frame, m.maxPending),
			done:     make(chan struct{}),
		}
		go client.runWriter()
		m.clients[id] = client
		return client, true
	}
	return client, false
}

// AttachRequestChannel adds channel to id's set of request channels,
// creating the Client record if this is its first connection (§4.1
// step 5, "state machine" New -> Connected). created reports whether
// this connection produced a new Client record, for the caller's
// ClientConnected accounting.
func (m *ClientManager) AttachRequestChannel(id ClientID, appID string, channel *transport.Channel) (client *Client, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, created = m.clientLocked(id, appID)
	client.mu.Lock()
	client.requests[channel] = struct{}{}
	client.mu.Unlock()
	return client, created
}

// AttachReverseChannel records channel as id's reverse channel,
// creating the Client record if this is its first connection. A
// second hello with a non-zero role overwrites any previous reverse
// channel, per §4.1 step 6.
func (m *ClientManager) AttachReverseChannel(id ClientID, appID string, channel *transport.Channel) (client *Client, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, created = m.clientLocked(id, appID)
	client.mu.Lock()
	client.reverse = channel
	client.mu.Unlock()
	return client, created
}

// Get returns the Client for id, if one has connected.
func (m *ClientManager) Get(id ClientID) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.clients[id]
	return client, ok
}

// DetachRequestChannel removes channel from id's request-channel set.
// If the client now has no channels of either kind attached, its
// record is removed entirely and true is returned so the caller can
// purge its registered ports (§4.1 "Per-channel read": "if the
// client's channel set becomes empty, ClientDisconnected is emitted").
func (m *ClientManager) DetachRequestChannel(id ClientID, channel *transport.Channel) (purge bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[id]
	if !ok {
		return false
	}

	client.mu.Lock()
	delete(client.requests, channel)
	empty := len(client.requests) == 0 && client.reverse == nil
	client.mu.Unlock()

	if empty {
		delete(m.clients, id)
		close(client.done)
	}
	return empty
}

// DetachReverseChannel clears id's reverse channel. Mirrors
// DetachRequestChannel for the other connection kind.
func (m *ClientManager) DetachReverseChannel(id ClientID) (purge bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[id]
	if !ok {
		return false
	}

	client.mu.Lock()
	client.reverse = nil
	empty := len(client.requests) == 0 && client.reverse == nil
	client.mu.Unlock()

	if empty {
		delete(m.clients, id)
		close(client.done)
	}
	return empty
}

// Count returns the number of clients with at least one channel
// currently attached, for the admin status action.
func (m *ClientManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}
