// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for messageportd
// packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets, since sockaddr_un's 108-byte path limit makes
// t.TempDir() unsuitable once test binaries nest deep temp paths.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation — port names, application IDs — instead of
// time.Now().
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no messageportd-internal dependencies.
package testutil
