// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package proxyclient is the in-process client library applications
// link against to talk to the message-port broker: it owns the two
// channels (request, reverse) that make up one client's connection,
// mints local port identifiers, and dispatches inbound DeliverMessage
// frames to registered callbacks (spec.md §4.3).
//
// Grounded on lib/proxyclient/client.go's shape — typed methods over a
// dialed transport handle, one struct per connected peer — generalized
// from that package's HTTP-over-Unix-socket protocol to the framed
// two-channel wire protocol in the wire package.
package proxyclient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/lattice-forge/messageportd/bundle"
	"github.com/lattice-forge/messageportd/lib/pkgmanager"
	"github.com/lattice-forge/messageportd/transport"
	"github.com/lattice-forge/messageportd/wire"
)

// maxUserPayload is the encoded-size ceiling the proxy enforces before
// ever touching the socket (§4.1, §6 of the specification).
const maxUserPayload = 8192

// MessageCallback receives one delivered message. id is the local
// port identifier the message was delivered to. For a bidirectional
// delivery, localAppID and localPort name the sender's own advertised
// return address and trustedLocal reports whether it was registered
// trusted; for a unidirectional delivery those three are the zero
// value. payload is the user payload with every system key already
// stripped.
type MessageCallback func(id int32, localAppID, localPort string, trustedLocal bool, payload bundle.Bundle)

// Proxy is one application's connection to the broker: a request
// channel for outbound calls, a reverse channel for inbound delivery,
// and the local port tables for each trust namespace. Not a
// process-wide singleton on its own — see lib/singleton for the
// lazy-construct-once wrapper spec.md §4.3 and the corresponding
// REDESIGN FLAG ask for in place of the original's static globals.
type Proxy struct {
	appID string
	trust pkgmanager.Oracle

	nextID int32 // sync/atomic counter, minted under nextIdentifier

	// callMu serializes the request channel's call/reply transactions.
	// wire.Frame carries no correlation ID (§11), so two concurrent
	// calls could otherwise interleave their write with each other's
	// read and hand one goroutine another's reply; holding callMu for
	// the full write-then-read round trip keeps at most one request in
	// flight on the channel at a time.
	callMu sync.Mutex

	request *transport.Channel
	reverse *transport.Channel

	untrusted portTable
	trusted   portTable
}

// portTable is one trust namespace's local bookkeeping: the callback
// and minted identifier for every port this process has registered
// under that namespace.
type portTable struct {
	mu       sync.RWMutex
	byName   map[string]MessageCallback
	idByName map[string]int32
	nameByID map[int32]string
}

func newPortTable() portTable {
	return portTable{
		byName:   make(map[string]MessageCallback),
		idByName: make(map[string]int32),
		nameByID: make(map[int32]string),
	}
}

// Open dials socketPath twice — once for the request channel, once for
// the reverse channel — sends the corresponding hello on each, and
// starts the reverse-channel dispatch loop in the background. appID is
// this process's own application identifier, used to fill LOCAL_APPID
// on outgoing requests (the broker does not trust it, but the wire
// protocol still carries it — see §9 of the specification).
func Open(ctx context.Context, socketPath, appID string, trust pkgmanager.Oracle) (*Proxy, error) {
	request, err := dial(ctx, socketPath, wire.HelloRequestChannel)
	if err != nil {
		return nil, fmt.Errorf("proxyclient: opening request channel: %w", err)
	}
	reverse, err := dial(ctx, socketPath, wire.HelloReverseChannel)
	if err != nil {
		request.Close()
		return nil, fmt.Errorf("proxyclient: opening reverse channel: %w", err)
	}

	p := &Proxy{
		appID:     appID,
		trust:     trust,
		request:   request,
		reverse:   reverse,
		untrusted: newPortTable(),
		trusted:   newPortTable(),
	}
	go p.dispatchInbound()
	return p, nil
}

func dial(ctx context.Context, socketPath string, role wire.HelloRole) (*transport.Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(wire.EncodeHello(role)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending hello: %w", err)
	}
	return transport.NewChannel(conn, role), nil
}

// Close closes both of the proxy's channels. The reverse-channel
// dispatch loop exits once its ReadLoop observes the closed
// connection.
func (p *Proxy) Close() error {
	reverseErr := p.reverse.Close()
	requestErr := p.request.Close()
	if requestErr != nil {
		return requestErr
	}
	return reverseErr
}

func (p *Proxy) namespace(trusted bool) *portTable {
	if trusted {
		return &p.trusted
	}
	return &p.untrusted
}

func (p *Proxy) call(frameType wire.FrameType, req bundle.Bundle) (wire.Code, error) {
	payload, err := req.Encode()
	if err != nil {
		return wire.CodeIoError, fmt.Errorf("proxyclient: encoding request: %w", err)
	}

	p.callMu.Lock()
	defer p.callMu.Unlock()

	if err := p.request.WriteFrame(wire.Frame{Type: frameType, Payload: payload}); err != nil {
		return wire.CodeIoError, fmt.Errorf("proxyclient: writing %s: %w", frameType, err)
	}
	reply, err := p.request.ReadFrame()
	if err != nil {
		return wire.CodeIoError, fmt.Errorf("proxyclient: reading %s reply: %w", frameType, err)
	}
	respBundle, err := bundle.Decode(reply.Payload)
	if err != nil {
		return wire.CodeIoError, fmt.Errorf("proxyclient: decoding %s reply: %w", frameType, err)
	}
	return parseCode(respBundle[wire.KeyResultCode]), nil
}

func parseCode(s string) wire.Code {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return wire.CodeIoError
	}
	return wire.Code(n)
}

// codeError turns a non-success Code into an error, or returns nil for
// CodeNone.
func codeError(code wire.Code) error {
	if code == wire.CodeNone {
		return nil
	}
	return fmt.Errorf("proxyclient: %s", code)
}

// nextIdentifier mints the next process-local port identifier. The
// only lock spec.md §5 keeps in an otherwise single-threaded design,
// since registration may be called from any goroutine.
func (p *Proxy) nextIdentifier() int32 {
	return atomic.AddInt32(&p.nextID, 1)
}
