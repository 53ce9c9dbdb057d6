// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package proxyclient

import (
	"github.com/lattice-forge/messageportd/bundle"
	"github.com/lattice-forge/messageportd/wire"
)

// dispatchInbound runs for the lifetime of the proxy's reverse
// channel, invoking the registered callback for each DeliverMessage
// frame (§4.3 "Inbound delivery"). Returns when the channel closes.
func (p *Proxy) dispatchInbound() {
	p.reverse.ReadLoop(func(f wire.Frame) error {
		if f.Type != wire.FrameDeliverMessage {
			return nil
		}
		p.deliver(f.Payload)
		return nil
	})
}

func (p *Proxy) deliver(payload []byte) {
	envelope, err := bundle.Decode(payload)
	if err != nil {
		return
	}

	port := envelope[wire.KeyRemotePort]
	trustedMessage := wire.ParseBool(envelope[wire.KeyTrustedMessage])

	table := p.namespace(trustedMessage)
	table.mu.RLock()
	id, hasID := table.idByName[port]
	callback, hasCallback := table.byName[port]
	table.mu.RUnlock()
	if !hasID || !hasCallback {
		return
	}

	stripped := envelope.WithoutKeys(
		wire.KeyRemoteAppID, wire.KeyRemotePort, wire.KeyTrustedMessage, wire.KeyMessageType,
	)

	if envelope[wire.KeyMessageType] != wire.MessageTypeBidirectional {
		callback(id, "", "", false, stripped)
		return
	}

	localAppID := stripped[wire.KeyLocalAppID]
	localPort := stripped[wire.KeyLocalPort]
	trustedLocal := wire.ParseBool(stripped[wire.KeyTrustedLocal])
	stripped = stripped.WithoutKeys(wire.KeyLocalAppID, wire.KeyLocalPort, wire.KeyTrustedLocal)

	callback(id, localAppID, localPort, trustedLocal, stripped)
}
