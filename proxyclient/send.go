// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package proxyclient

import (
	"fmt"

	"github.com/lattice-forge/messageportd/bundle"
	"github.com/lattice-forge/messageportd/wire"
)

// SendMessage sends payload to (dstApp, dstPort) unidirectionally: the
// destination has no way to reply to this specific message since no
// local port or appID is attached (§4.3 "Send").
func (p *Proxy) SendMessage(dstApp, dstPort string, trustedMessage bool, payload bundle.Bundle) error {
	return p.send(dstApp, dstPort, trustedMessage, nil, payload)
}

// returnAddress names the local port a bidirectional send attaches so
// the destination can reply.
type returnAddress struct {
	port    string
	trusted bool
}

// SendMessageBidirectional sends payload to (dstApp, dstPort),
// additionally attaching this application's own (localPort,
// trustedLocal) as a return address the destination's callback
// receives.
func (p *Proxy) SendMessageBidirectional(localPort string, trustedLocal bool, dstApp, dstPort string, trustedMessage bool, payload bundle.Bundle) error {
	return p.send(dstApp, dstPort, trustedMessage, &returnAddress{port: localPort, trusted: trustedLocal}, payload)
}

func (p *Proxy) send(dstApp, dstPort string, trustedMessage bool, local *returnAddress, payload bundle.Bundle) error {
	if trustedMessage {
		if err := p.trustPreCheck(dstApp); err != nil {
			return err
		}
	}

	req := payload.Clone()
	if local != nil {
		req[wire.KeyMessageType] = wire.MessageTypeBidirectional
		req[wire.KeyLocalAppID] = p.appID
		req[wire.KeyLocalPort] = local.port
		req[wire.KeyTrustedLocal] = wire.BoolString(local.trusted)
	} else {
		req[wire.KeyMessageType] = wire.MessageTypeUnidirectional
	}
	req[wire.KeyRemoteAppID] = dstApp
	req[wire.KeyRemotePort] = dstPort
	req[wire.KeyTrustedMessage] = wire.BoolString(trustedMessage)

	encoded, err := req.Encode()
	if err != nil {
		return fmt.Errorf("proxyclient: encoding message: %w", err)
	}
	if len(encoded) > maxUserPayload {
		return codeError(wire.CodeMaxExceeded)
	}

	code, err := p.call(wire.FrameSendMessage, req)
	if err != nil {
		return err
	}
	return codeError(code)
}

// trustPreCheck implements the client-side trust pre-check from §4.3
// step 1: if the remote is not known to be preloaded, compare
// certificates locally and short-circuit on mismatch before ever
// touching the socket. The broker re-checks authoritatively regardless
// — this is purely an optimization to avoid a round trip for a message
// that is certain to be rejected.
func (p *Proxy) trustPreCheck(remoteApp string) error {
	if p.trust == nil {
		return nil
	}
	if p.trust.IsPreloaded(remoteApp) {
		return nil
	}
	local, err := p.trust.CertificateFingerprint(p.appID)
	if err != nil {
		return codeError(wire.CodeIoError)
	}
	remote, err := p.trust.CertificateFingerprint(remoteApp)
	if err != nil {
		return codeError(wire.CodeIoError)
	}
	if local != remote {
		return codeError(wire.CodeCertificateNotMatch)
	}
	return nil
}
