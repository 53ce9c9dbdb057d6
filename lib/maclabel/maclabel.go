// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package maclabel attaches the mandatory-access-control label to the
// broker's listening socket directory, so the platform's MAC policy
// (SMACK, SELinux) mediates connect() the same way it would for any
// other IPC endpoint on the device. This is best-effort: a device
// without a MAC subsystem enabled, or a build for a platform without
// one, must still run the daemon.
package maclabel

// Attach sets label on the filesystem object at path. Implementations
// that have no MAC subsystem to talk to (the non-Linux build, or a
// Linux system with no MAC hooks compiled in) return nil without
// doing anything, and the daemon continues unlabeled.
func Attach(path, label string) error {
	return attach(path, label)
}
