// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now() when
// tests need unique identifiers for port names or application IDs
// that must be distinguishable within a single test binary run.
//
//	portName := testutil.UniqueID("port")  // "port-1", "port-2", ...
//	appID := testutil.UniqueID("app")      // "app-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
