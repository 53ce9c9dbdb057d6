// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package peercred extracts the SO_PEERCRED credentials (process ID,
// user ID, group ID) of the process on the other end of a Unix domain
// socket. The broker uses this to obtain a stable per-connection
// client identifier without trusting anything the peer says about
// itself (§4.1, §9 of the specification: "do not trust LOCAL_APPID
// from the client bundle for authorization").
package peercred

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Credentials is the peer identity obtained from the kernel at accept
// time.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

// FromConn extracts peer credentials from an accepted Unix domain
// socket connection. Returns an error if conn is not a *net.UnixConn
// or the underlying getsockopt call fails.
func FromConn(conn net.Conn) (Credentials, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return Credentials{}, fmt.Errorf("peercred: connection is not a Unix domain socket (%T)", conn)
	}

	syscallConn, err := unixConn.SyscallConn()
	if err != nil {
		return Credentials{}, fmt.Errorf("peercred: obtaining raw connection: %w", err)
	}

	var creds Credentials
	var controlErr error
	err = syscallConn.Control(func(fd uintptr) {
		ucred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			controlErr = fmt.Errorf("getsockopt SO_PEERCRED: %w", err)
			return
		}
		creds = Credentials{PID: ucred.Pid, UID: ucred.Uid, GID: ucred.Gid}
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("peercred: control: %w", err)
	}
	if controlErr != nil {
		return Credentials{}, controlErr
	}
	return creds, nil
}
