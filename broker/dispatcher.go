// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lattice-forge/messageportd/bundle"
	"github.com/lattice-forge/messageportd/lib/metrics"
	"github.com/lattice-forge/messageportd/lib/pkgmanager"
	"github.com/lattice-forge/messageportd/wire"
)

// Dispatcher routes inbound request-channel frames to their handler
// (§4.2 "Request dispatch"): RegisterPort, CheckRemotePort, and
// SendMessage. Every handler enforces the same invariant before doing
// anything else — a client's LOCAL_APPID is always the identity
// resolved from its peer credentials at hello time, never whatever a
// bundle claims (§9).
type Dispatcher struct {
	Registry *Registry
	Clients  *ClientManager
	Trust    pkgmanager.Oracle
	Metrics  *metrics.Counters
	Logger   *slog.Logger
}

// Dispatch handles one inbound frame from client and returns the
// frame to write back on the same request channel. RegisterPort,
// CheckRemotePort, and SendMessage all reply with a frame of their
// own type carrying a RESULT_CODE bundle: the "out int" return value
// in §6's frame table has no dedicated wire shape, so it rides back
// as an ordinary system key on the same connection the request
// arrived on. DeliverMessage only ever travels broker -> proxy; one
// arriving here is a protocol violation.
func (d *Dispatcher) Dispatch(client *Client, frame wire.Frame) (wire.Frame, error) {
	switch frame.Type {
	case wire.FrameRegisterPort:
		return d.reply(frame.Type, d.handleRegisterPort(client, frame.Payload))
	case wire.FrameCheckRemotePort:
		return d.reply(frame.Type, d.handleCheckRemotePort(client, frame.Payload))
	case wire.FrameSendMessage:
		return d.reply(frame.Type, d.handleSendMessage(client, frame.Payload))
	default:
		return wire.Frame{}, fmt.Errorf("broker: frame type %s is not valid on a request channel", frame.Type)
	}
}

func (d *Dispatcher) reply(t wire.FrameType, code Code) (wire.Frame, error) {
	out := bundle.Bundle{wire.KeyResultCode: strconv.Itoa(int(code))}
	encoded, err := out.Encode()
	if err != nil {
		return wire.Frame{}, fmt.Errorf("broker: encoding reply for %s: %w", t, err)
	}
	return wire.Frame{Type: t, Payload: encoded}, nil
}

func (d *Dispatcher) handleRegisterPort(client *Client, payload []byte) Code {
	b, err := bundle.Decode(payload)
	if err != nil {
		d.logger().Warn("register_port: malformed bundle", "error", err)
		return CodeIoError
	}

	name := b[wire.KeyLocalPort]
	ns := namespaceFor(wire.ParseBool(b[wire.KeyTrustedLocal]))

	if regErr := d.Registry.Register(ns, PortKey{AppID: client.AppID, Name: name}, client.ID); regErr != nil {
		return regErr.Code
	}
	d.countPortsRegistered()
	return CodeNone
}

func (d *Dispatcher) handleCheckRemotePort(client *Client, payload []byte) Code {
	b, err := bundle.Decode(payload)
	if err != nil {
		d.logger().Warn("check_remote_port: malformed bundle", "error", err)
		return CodeIoError
	}

	remoteAppID := b[wire.KeyRemoteAppID]
	port := b[wire.KeyRemotePort]
	trustedRemote := wire.ParseBool(b[wire.KeyTrustedRemote])
	ns := namespaceFor(trustedRemote)

	if _, ok := d.Registry.Lookup(ns, PortKey{AppID: remoteAppID, Name: port}); !ok {
		return CodeMessagePortNotFound
	}
	if trustedRemote {
		return d.trustCheck(client.AppID, remoteAppID)
	}
	return CodeNone
}

// handleSendMessage looks up the destination the same way
// handleCheckRemotePort does, then forwards the (already merged, per
// §4.3 step 2) request bundle to the destination's reverse channel as
// a DeliverMessage frame.
func (d *Dispatcher) handleSendMessage(client *Client, payload []byte) Code {
	b, err := bundle.Decode(payload)
	if err != nil {
		d.logger().Warn("send_message: malformed bundle", "error", err)
		return CodeIoError
	}

	// A bidirectional send carries LOCAL_APPID so the receiver knows
	// who to reply to. That value is client-supplied and untrusted;
	// overwrite it with the identity resolved at accept time before
	// it goes anywhere near the destination (§9, invariant in §8).
	if _, ok := b[wire.KeyLocalAppID]; ok {
		b[wire.KeyLocalAppID] = client.AppID
	}

	remoteAppID := b[wire.KeyRemoteAppID]
	port := b[wire.KeyRemotePort]
	trustedMessage := wire.ParseBool(b[wire.KeyTrustedMessage])
	ns := namespaceFor(trustedMessage)

	ownerID, ok := d.Registry.Lookup(ns, PortKey{AppID: remoteAppID, Name: port})
	if !ok {
		return CodeMessagePortNotFound
	}
	if trustedMessage {
		if code := d.trustCheck(client.AppID, remoteAppID); code != CodeNone {
			return code
		}
	}

	owner, ok := d.Clients.Get(ownerID)
	if !ok {
		// The destination's client record is already gone. Per §7
		// "Propagation policy" this is a silent drop, not an error
		// returned to the sender.
		return CodeNone
	}

	encoded, err := b.Encode()
	if err != nil {
		d.logger().Error("send_message: re-encoding envelope failed", "error", err)
		return CodeIoError
	}

	if err := owner.Deliver(wire.Frame{Type: wire.FrameDeliverMessage, Payload: encoded}); err != nil {
		d.logger().Debug("send_message: delivery dropped, destination has no reverse channel",
			"remote_app_id", remoteAppID, "error", err)
		return CodeNone
	}
	d.countMessageDelivered()
	return CodeNone
}

// trustCheck implements §4.2 "Trust check" between sender S and
// receiver R.
func (d *Dispatcher) trustCheck(sender, receiver string) Code {
	if d.Trust.IsPreloaded(sender) && d.Trust.IsPreloaded(receiver) {
		return CodeNone
	}

	senderFingerprint, err := d.Trust.CertificateFingerprint(sender)
	if err != nil {
		d.countTrustDenial()
		return CodeIoError
	}
	receiverFingerprint, err := d.Trust.CertificateFingerprint(receiver)
	if err != nil {
		d.countTrustDenial()
		return CodeIoError
	}
	if senderFingerprint == "" || senderFingerprint != receiverFingerprint {
		d.countTrustDenial()
		return CodeCertificateNotMatch
	}
	return CodeNone
}

func namespaceFor(trusted bool) Namespace {
	if trusted {
		return Trusted
	}
	return Untrusted
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Dispatcher) countPortsRegistered() {
	if d.Metrics != nil {
		d.Metrics.PortsRegistered.Add(1)
	}
}

func (d *Dispatcher) countMessageDelivered() {
	if d.Metrics != nil {
		d.Metrics.MessagesSent.Add(1)
		d.Metrics.MessagesDelivered.Add(1)
	}
}

func (d *Dispatcher) countTrustDenial() {
	if d.Metrics != nil {
		d.Metrics.TrustDenials.Add(1)
	}
}
