// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle implements the message-port system's bundle: an
// unordered string-to-string mapping used both as the user payload and
// as the system envelope (§3 of the specification). The specification
// treats the bundle serialization library as an external collaborator;
// this package is the concrete, in-repo implementation the broker and
// proxy both link against.
//
// Encoding uses CBOR Core Deterministic Encoding (RFC 8949 §4.2),
// mirroring the teacher's lib/codec package: the same logical bundle
// always produces identical bytes, which keeps MaxExceeded size
// checks stable and makes wire captures diffable.
package bundle

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	encOptions := cbor.CoreDetEncOptions()
	mode, err := encOptions.EncMode()
	if err != nil {
		panic("bundle: CBOR encoder initialization failed: " + err.Error())
	}
	encMode = mode

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]string(nil)),
	}.DecMode()
	if err != nil {
		panic("bundle: CBOR decoder initialization failed: " + err.Error())
	}
	decMode = dm
}

// Bundle is an unordered string->string mapping. The zero value is an
// empty bundle ready for use.
type Bundle map[string]string

// New returns an empty bundle.
func New() Bundle {
	return make(Bundle)
}

// Encode serializes the bundle to its byte-blob wire representation.
func (b Bundle) Encode() ([]byte, error) {
	if b == nil {
		b = Bundle{}
	}
	return encMode.Marshal(map[string]string(b))
}

// Decode reconstructs a bundle from its byte-blob wire representation.
func Decode(data []byte) (Bundle, error) {
	var raw map[string]string
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]string{}
	}
	return Bundle(raw), nil
}

// Clone returns a shallow copy of the bundle. Bundle values are
// strings, so a shallow copy is a full copy.
func (b Bundle) Clone() Bundle {
	clone := make(Bundle, len(b))
	for k, v := range b {
		clone[k] = v
	}
	return clone
}

// Merge returns a new bundle containing every key from base,
// overwritten by every key from overlay where the two collide.
// Neither input is modified.
func Merge(base, overlay Bundle) Bundle {
	merged := base.Clone()
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// WithoutKeys returns a new bundle with the given keys removed. Used
// to strip system keys from a delivered bundle before it reaches a
// user callback (§4.3 "Inbound delivery").
func (b Bundle) WithoutKeys(keys ...string) Bundle {
	stripped := b.Clone()
	for _, k := range keys {
		delete(stripped, k)
	}
	return stripped
}
