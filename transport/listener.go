// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lattice-forge/messageportd/lib/identity"
	"github.com/lattice-forge/messageportd/lib/maclabel"
	"github.com/lattice-forge/messageportd/lib/peercred"
	"github.com/lattice-forge/messageportd/wire"
)

// helloTimeout bounds how long a newly accepted connection has to
// send its 4-byte hello before the listener gives up on it. A
// well-behaved client sends hello immediately after connect (§4.1).
const helloTimeout = 5 * time.Second

// PeerInfo is everything the listener learns about a connection
// before handing it to a Handler: its declared channel role, the
// kernel-verified credentials of the process on the other end, and
// that process's application identifier. A connection whose PID the
// identity resolver cannot place is closed by the listener and never
// reaches a Handler (§4.1 step 4), so AppID is always the resolved
// identity.
type PeerInfo struct {
	Role        wire.HelloRole
	Credentials peercred.Credentials
	AppID       string
}

// Handler is notified of each connection the listener finishes
// accepting (hello read, peer credentials extracted, identity
// resolved). HandleConnection owns the connection for its lifetime —
// it is responsible for running Channel.ReadLoop (for request
// channels) or otherwise keeping the reverse channel open, and for
// closing the channel before returning.
type Handler interface {
	HandleConnection(ctx context.Context, peer PeerInfo, channel *Channel)
}

// Listener accepts connections on a Unix domain socket, performs the
// hello handshake and peer-credential/identity resolution common to
// every connection, and dispatches each one to a Handler.
type Listener struct {
	SocketPath string
	SocketMode os.FileMode
	Identity   identity.Resolver
	Logger     *slog.Logger

	// MACLabel, if non-empty, is attached to the socket's parent
	// directory and the socket file itself via lib/maclabel once
	// listening begins. Best-effort: a platform with no MAC subsystem
	// leaves the daemon running unlabeled.
	MACLabel string

	active sync.WaitGroup
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits for in-flight handlers to return. Any existing
// socket file at SocketPath is removed before listening, and removed
// again on return.
func (l *Listener) Serve(ctx context.Context, handler Handler) error {
	if err := os.Remove(l.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("transport: removing stale socket %s: %w", l.SocketPath, err)
	}

	rawListener, err := net.Listen("unix", l.SocketPath)
	if err != nil {
		return fmt.Errorf("transport: listening on %s: %w", l.SocketPath, err)
	}
	defer func() {
		rawListener.Close()
		os.Remove(l.SocketPath)
	}()

	mode := l.SocketMode
	if mode == 0 {
		mode = 0666
	}
	if err := os.Chmod(l.SocketPath, mode); err != nil {
		return fmt.Errorf("transport: chmod %s: %w", l.SocketPath, err)
	}

	if l.MACLabel != "" {
		if err := maclabel.Attach(filepath.Dir(l.SocketPath), l.MACLabel); err != nil {
			l.logger().Warn("attaching MAC label to socket directory failed", "error", err)
		}
		if err := maclabel.Attach(l.SocketPath, l.MACLabel); err != nil {
			l.logger().Warn("attaching MAC label to socket failed", "error", err)
		}
	}

	go func() {
		<-ctx.Done()
		rawListener.Close()
	}()

	l.logger().Info("listening", "path", l.SocketPath)

	for {
		conn, err := rawListener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			l.logger().Error("accept failed", "error", err)
			continue
		}

		l.active.Add(1)
		go func() {
			defer l.active.Done()
			l.handleAccepted(ctx, conn, handler)
		}()
	}

	l.active.Wait()
	return nil
}

// handleAccepted performs the hello handshake and identity resolution
// for one freshly accepted connection, then hands it to handler. A
// connection that fails handshake or cannot be identified is closed
// without ever reaching the handler.
func (l *Listener) handleAccepted(ctx context.Context, conn net.Conn, handler Handler) {
	conn.SetReadDeadline(time.Now().Add(helloTimeout))

	helloBuf := make([]byte, wire.HelloLength())
	if _, err := io.ReadFull(conn, helloBuf); err != nil {
		l.logger().Debug("hello read failed", "error", err)
		conn.Close()
		return
	}
	role, err := wire.DecodeHello(helloBuf)
	if err != nil {
		l.logger().Debug("hello decode failed", "error", err)
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	creds, err := peercred.FromConn(conn)
	if err != nil {
		l.logger().Debug("peer credential lookup failed", "error", err)
		conn.Close()
		return
	}

	appID, ok := l.Identity.Resolve(creds.PID)
	if !ok {
		l.logger().Debug("identity resolution failed, refusing connection", "pid", creds.PID)
		conn.Close()
		return
	}

	channel := NewChannel(conn, role)
	handler.HandleConnection(ctx, PeerInfo{Role: role, Credentials: creds, AppID: appID}, channel)
}

func (l *Listener) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
