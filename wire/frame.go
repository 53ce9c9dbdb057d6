// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the on-socket protocol between the message-port
// broker and its client proxies: the frame header format, the four
// concrete frame types, the hello handshake, and the system bundle
// keys the broker and proxy exchange under the covers of a user
// payload.
package wire

import (
	"encoding/binary"
	"fmt"
)

// FrameType discriminates the four frame kinds carried over the
// request and reverse channels.
type FrameType uint8

const (
	// FrameRegisterPort is sent proxy -> broker to claim a port name in
	// one of the two trust namespaces.
	FrameRegisterPort FrameType = iota + 1

	// FrameCheckRemotePort is sent proxy -> broker to test whether a
	// remote port exists and, for trusted lookups, whether the trust
	// check between the two applications passes.
	FrameCheckRemotePort

	// FrameSendMessage is sent proxy -> broker carrying a user payload
	// bundle addressed to a remote application's port.
	FrameSendMessage

	// FrameDeliverMessage is sent broker -> proxy on the destination
	// client's reverse channel, carrying the merged envelope for
	// delivery to a registered callback.
	FrameDeliverMessage
)

func (t FrameType) String() string {
	switch t {
	case FrameRegisterPort:
		return "RegisterPort"
	case FrameCheckRemotePort:
		return "CheckRemotePort"
	case FrameSendMessage:
		return "SendMessage"
	case FrameDeliverMessage:
		return "DeliverMessage"
	default:
		return fmt.Sprintf("FrameType(%d)", uint8(t))
	}
}

// headerLength is the fixed size of a frame header: 1 byte type + 4
// bytes big-endian payload length. Mirrors the observation protocol's
// header shape (see the teacher's observe/protocol.go), generalized
// from one message type to four.
const headerLength = 5

// MaxWireFrameLength bounds the payload length the transport will
// accept before treating the connection as malformed. This is
// intentionally far above the 8 KiB ceiling the proxy applies to an
// encoded SendMessage bundle (§4.1 of the specification): the
// transport otherwise processes any frame it can fully receive, and
// 1 MiB only keeps a malformed peer from exhausting memory.
const MaxWireFrameLength = 1024 * 1024

// Frame is a single wire message: a type discriminant and an opaque
// payload. The transport never interprets payload contents — only the
// broker and proxy know how to decode a Frame's Payload for a given
// Type.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// Encode appends the wire representation of f to dst and returns the
// result.
func Encode(dst []byte, f Frame) []byte {
	var header [headerLength]byte
	header[0] = byte(f.Type)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(f.Payload)))
	dst = append(dst, header[:]...)
	dst = append(dst, f.Payload...)
	return dst
}

// FindNextFrame scans buf for one complete frame starting at offset 0.
// It returns the byte offset immediately past the end of that frame
// and true, or (0, false) if buf does not yet contain a complete
// frame. The transport is stateless with respect to framing: it never
// buffers a partial header interpretation across calls, callers retain
// the unconsumed tail and re-scan after the next read.
//
// Returns an error only when the header declares a payload length
// larger than MaxWireFrameLength — this is the one point at which the
// transport enforces a size ceiling of its own, distinct from the
// proxy-side 8 KiB SendMessage ceiling in §4.1 of the specification.
func FindNextFrame(buf []byte) (end int, ok bool, err error) {
	if len(buf) < headerLength {
		return 0, false, nil
	}
	length := binary.BigEndian.Uint32(buf[1:5])
	if length > MaxWireFrameLength {
		return 0, false, fmt.Errorf("wire: frame payload length %d exceeds maximum %d", length, MaxWireFrameLength)
	}
	total := headerLength + int(length)
	if len(buf) < total {
		return 0, false, nil
	}
	return total, true, nil
}

// Decode parses one complete frame from buf, which must be exactly the
// span returned by a successful FindNextFrame call (or any buffer
// beginning with a complete frame — trailing bytes are ignored).
func Decode(buf []byte) (Frame, error) {
	if len(buf) < headerLength {
		return Frame{}, fmt.Errorf("wire: buffer too short for frame header: %d bytes", len(buf))
	}
	length := binary.BigEndian.Uint32(buf[1:5])
	total := headerLength + int(length)
	if len(buf) < total {
		return Frame{}, fmt.Errorf("wire: buffer too short for declared payload: need %d, have %d", total, len(buf))
	}
	payload := make([]byte, length)
	copy(payload, buf[headerLength:total])
	return Frame{Type: FrameType(buf[0]), Payload: payload}, nil
}

// HelloRole identifies which of a client's two connections a freshly
// accepted socket represents.
type HelloRole uint32

const (
	// HelloRequestChannel carries inbound framed requests.
	HelloRequestChannel HelloRole = 0

	// HelloReverseChannel carries outbound DeliverMessage frames.
	HelloReverseChannel HelloRole = 1
)

// helloLength is the fixed size of the hello handshake: one
// little-endian uint32. Per §11 of the expanded specification, the
// wire format and endianness were left unpinned by the original design
// and are fixed here to little-endian to match the host's natural
// integer representation on every platform this daemon targets.
const helloLength = 4

// EncodeHello returns the 4-byte hello message for the given role.
func EncodeHello(role HelloRole) []byte {
	buf := make([]byte, helloLength)
	binary.LittleEndian.PutUint32(buf, uint32(role))
	return buf
}

// DecodeHello parses a 4-byte hello message. Any non-zero value is
// treated as HelloReverseChannel, per §4.1 of the specification
// ("zero for request channel, non-zero for reverse channel").
func DecodeHello(buf []byte) (HelloRole, error) {
	if len(buf) != helloLength {
		return 0, fmt.Errorf("wire: hello message must be %d bytes, got %d", helloLength, len(buf))
	}
	if binary.LittleEndian.Uint32(buf) == 0 {
		return HelloRequestChannel, nil
	}
	return HelloReverseChannel, nil
}

// HelloLength returns the fixed length of a hello message, for callers
// that need to size a read buffer without importing the constant name.
func HelloLength() int { return helloLength }
