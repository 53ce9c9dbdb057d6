// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/lattice-forge/messageportd/lib/metrics"
	"github.com/lattice-forge/messageportd/lib/peercred"
)

// historyCapacity is how many recorded snapshot generations the admin
// socket keeps around for GET /v1/status's "recent" trend.
const historyCapacity = 12

// historyInterval is how often the admin server records a new
// snapshot generation while it is serving.
const historyInterval = 10 * time.Second

// AdminServer exposes the broker's registry and client counts over a
// second Unix socket, restricted to peers running as the daemon's own
// UID. It never carries application traffic — no RegisterPort or
// SendMessage reaches it — so it can use net/http rather than the
// wire protocol.
type AdminServer struct {
	SocketPath string
	SocketMode os.FileMode

	broker  *Broker
	server  *http.Server
	history *metrics.History
	stop    chan struct{}
}

// NewAdminServer returns an AdminServer reporting on b.
func NewAdminServer(socketPath string, mode os.FileMode, b *Broker) *AdminServer {
	mux := http.NewServeMux()
	a := &AdminServer{
		SocketPath: socketPath,
		SocketMode: mode,
		broker:     b,
		history:    metrics.NewHistory(historyCapacity),
		stop:       make(chan struct{}),
	}
	mux.HandleFunc("GET /v1/status", a.handleStatus)
	a.server = &http.Server{Handler: mux}
	return a
}

// StatusResponse is the JSON body of GET /v1/status.
type StatusResponse struct {
	Registered        int             `json:"registered_ports"`
	ClientsActive     int             `json:"clients_active"`
	ClientsConnected  int64           `json:"clients_connected_total"`
	PortsRegistered   int64           `json:"ports_registered_total"`
	MessagesSent      int64           `json:"messages_sent_total"`
	MessagesDelivered int64           `json:"messages_delivered_total"`
	TrustDenials      int64           `json:"trust_denials_total"`
	Recent            []metrics.Snapshot `json:"recent,omitempty"`
}

// Serve listens on SocketPath and blocks, connection-gating every
// accepted peer against the daemon's own UID before net/http ever
// sees it. Returns when the listener is closed.
func (a *AdminServer) Serve() error {
	if err := os.Remove(a.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("broker: removing stale admin socket: %w", err)
	}

	listener, err := net.Listen("unix", a.SocketPath)
	if err != nil {
		return fmt.Errorf("broker: listening on admin socket: %w", err)
	}
	if err := os.Chmod(a.SocketPath, a.SocketMode); err != nil {
		listener.Close()
		return fmt.Errorf("broker: chmod admin socket: %w", err)
	}

	go a.recordHistory()

	err = a.server.Serve(&peerFilteredListener{Listener: listener, allowedUID: uint32(os.Getuid())})
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// recordHistory records one snapshot generation every historyInterval
// until Close stops it, giving GET /v1/status a short trend to report
// without touching the live counters on every request.
func (a *AdminServer) recordHistory() {
	ticker := time.NewTicker(historyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			if err := a.history.Record(a.broker.Metrics().Snapshot()); err != nil {
				a.broker.logger().Warn("admin: recording metrics history", "error", err)
			}
		}
	}
}

// Close shuts down the admin server and removes its socket.
func (a *AdminServer) Close() error {
	close(a.stop)
	err := a.server.Close()
	os.Remove(a.SocketPath)
	return err
}

func (a *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := a.broker.Metrics().Snapshot()
	recent, err := a.history.Recent(historyCapacity)
	if err != nil {
		a.broker.logger().Warn("admin: reading metrics history", "error", err)
	}
	resp := StatusResponse{
		Registered:        a.broker.Registry().Count(),
		ClientsActive:     a.broker.Clients().Count(),
		ClientsConnected:  snap.ClientsConnected,
		PortsRegistered:   snap.PortsRegistered,
		MessagesSent:      snap.MessagesSent,
		MessagesDelivered: snap.MessagesDelivered,
		TrustDenials:      snap.TrustDenials,
		Recent:            recent,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		a.broker.logger().Warn("admin: writing status response", "error", err)
	}
}

// peerFilteredListener rejects every accepted connection whose
// SO_PEERCRED UID does not match allowedUID, before net/http reads a
// single byte from it. This is the admin socket's entire access
// control — there is no token, no TLS, just "same user as the
// daemon" (§10 of the expanded specification).
type peerFilteredListener struct {
	net.Listener
	allowedUID uint32
}

func (l *peerFilteredListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		creds, err := peercred.FromConn(conn)
		if err != nil || creds.UID != l.allowedUID {
			conn.Close()
			continue
		}
		return conn, nil
	}
}
