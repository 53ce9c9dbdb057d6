// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport implements the Unix domain socket layer the
// broker and its client proxies communicate over: framed reads and
// writes on an individual connection ([Channel]), and the accept loop
// that turns a raw accepted connection into an identified, role-
// tagged Channel ([Listener]).
//
// A connection's role — request channel or reverse channel — is
// declared by a 4-byte hello sent immediately after connect, and its
// owning application is established from kernel-verified peer
// credentials rather than anything the client claims about itself.
// [Listener] performs both steps before a connection ever reaches
// application code; broker package code always sees a [PeerInfo] and
// an already-classified [Channel].
package transport
