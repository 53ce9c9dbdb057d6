// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// System bundle keys, carried alongside user data in RegisterPort,
// CheckRemotePort, SendMessage, and DeliverMessage bundles. Literal
// strings per §6 of the specification — the broker and proxy must
// agree on these exact names since bundles are unordered string maps
// with no schema of their own.
const (
	KeyMessageType   = "MESSAGE_TYPE"
	KeyLocalAppID    = "LOCAL_APPID"
	KeyLocalPort     = "LOCAL_PORT"
	KeyTrustedLocal  = "TRUSTED_LOCAL"
	KeyRemoteAppID   = "REMOTE_APPID"
	KeyRemotePort    = "REMOTE_PORT"
	KeyTrustedRemote = "TRUSTED_REMOTE"
	KeyTrustedMessage = "TRUSTED_MESSAGE"

	// KeyResultCode carries the broker's numeric result code in the
	// reply frame the broker writes back on the request channel for
	// RegisterPort, CheckRemotePort, and SendMessage — the "out int"
	// parameter of §6's frame table has no dedicated wire shape of its
	// own, so it travels as an ordinary system key in a bundle of the
	// same frame type, echoed back on the same connection.
	KeyResultCode = "RESULT_CODE"
)

// MessageType values for the MESSAGE_TYPE system key.
const (
	MessageTypeUnidirectional = "UNI-DIR"
	MessageTypeBidirectional  = "BI-DIR"
)

// Boolean encodings used for every TRUSTED_* system key. Bundles are
// string->string maps with no native boolean type.
const (
	True  = "TRUE"
	False = "FALSE"
)

// BoolString renders a Go bool in the bundle's TRUE/FALSE convention.
func BoolString(b bool) string {
	if b {
		return True
	}
	return False
}

// ParseBool parses the bundle's TRUE/FALSE convention. Any value other
// than the literal string TRUE is treated as false, matching the
// original implementation's tolerance of absent or malformed trust
// flags (missing metadata is not itself a wire error).
func ParseBool(s string) bool {
	return s == True
}
