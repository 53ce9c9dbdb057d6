// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker implements the message-port registry and dispatch
// logic: two trust namespaces per application, port registration,
// the trust check between sender and receiver, and delivery of
// SendMessage frames to the destination's reverse channel.
package broker

import (
	"fmt"

	"github.com/lattice-forge/messageportd/wire"
)

// Namespace is one of an application's two disjoint port namespaces.
// A port registered as trusted is invisible to untrusted lookups from
// the same application, and vice versa (§2 of the specification).
type Namespace int

const (
	// Untrusted is the namespace for ports any application, preloaded
	// or not, can address without a trust check on the sender.
	Untrusted Namespace = iota

	// Trusted is the namespace for ports whose lookup and delivery
	// require sender and receiver to pass the trust check.
	Trusted
)

func (n Namespace) String() string {
	switch n {
	case Untrusted:
		return "untrusted"
	case Trusted:
		return "trusted"
	default:
		return fmt.Sprintf("Namespace(%d)", int(n))
	}
}

// PortKey identifies one registered port within a namespace: the
// owning application and the port name. The two namespaces are kept
// in separate maps, so the same (AppID, Name) pair may be registered
// once trusted and once untrusted without conflict.
type PortKey struct {
	AppID string
	Name  string
}

// ClientID identifies one connected proxy client by the peer PID the
// kernel reported when its request channel was accepted (§3, §9).
// Never derived from anything the client claims about itself.
type ClientID int32

// Code enumerates the broker's error taxonomy, mirroring the result
// codes the original message-port service returns to callers (§13 of
// the expanded specification). Defined once in wire.Code so the
// broker and proxyclient agree on the numeric encoding carried in
// RESULT_CODE without importing each other.
type Code = wire.Code

const (
	CodeNone                = wire.CodeNone
	CodeIoError             = wire.CodeIoError
	CodeOutOfMemory         = wire.CodeOutOfMemory
	CodeInvalidParameter    = wire.CodeInvalidParameter
	CodeMessagePortNotFound = wire.CodeMessagePortNotFound
	CodeCertificateNotMatch = wire.CodeCertificateNotMatch
	CodeMaxExceeded         = wire.CodeMaxExceeded
)

// Error is a broker-level failure carrying one of the Code values, so
// callers across the wire boundary can distinguish failure kinds
// without parsing message text.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError constructs an *Error with the given code and message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
