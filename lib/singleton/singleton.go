// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package singleton provides a generic once-initialized holder for the
// process-wide objects a messageportd component needs exactly one
// of, such as the probe CLI's proxyclient connection to the daemon.
// It replaces a package-level var plus sync.Once per call site with
// one small type.
package singleton

import "sync"

// Once lazily constructs and caches a single value of type T. The
// constructor runs at most once per Once, even under concurrent
// first access, mirroring the sync.Once-guarded lazy-load fields used
// elsewhere in this codebase.
type Once[T any] struct {
	once  sync.Once
	value T
	err   error
}

// Get returns the cached value, calling construct on the first call
// only. If construct returns an error, that error is cached too and
// returned again on every subsequent call without re-invoking
// construct — a singleton that failed to build once is not retried.
func (o *Once[T]) Get(construct func() (T, error)) (T, error) {
	o.once.Do(func() {
		o.value, o.err = construct()
	})
	return o.value, o.err
}
