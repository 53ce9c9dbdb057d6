// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the broker's runtime counters and the
// periodic snapshot machinery the admin status action serves. Every
// counter is a plain atomic; the daemon periodically flattens them
// into a Snapshot, encodes it, and keeps a zstd-compressed copy of
// the last few generations for the admin socket to serve without
// touching the live counters again.
package metrics

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
)

// Counters holds the broker's live counters. All fields are safe for
// concurrent use.
type Counters struct {
	PortsRegistered   atomic.Int64
	MessagesSent      atomic.Int64
	MessagesDelivered atomic.Int64
	TrustDenials      atomic.Int64
	ClientsConnected  atomic.Int64
	ClientsActive     atomic.Int64
}

// Snapshot is a point-in-time copy of Counters, suitable for
// serialization.
type Snapshot struct {
	PortsRegistered   int64 `json:"ports_registered"`
	MessagesSent      int64 `json:"messages_sent"`
	MessagesDelivered int64 `json:"messages_delivered"`
	TrustDenials      int64 `json:"trust_denials"`
	ClientsConnected  int64 `json:"clients_connected"`
	ClientsActive     int64 `json:"clients_active"`
}

// Snapshot reads the current counter values without resetting them.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		PortsRegistered:   c.PortsRegistered.Load(),
		MessagesSent:      c.MessagesSent.Load(),
		MessagesDelivered: c.MessagesDelivered.Load(),
		TrustDenials:      c.TrustDenials.Load(),
		ClientsConnected:  c.ClientsConnected.Load(),
		ClientsActive:     c.ClientsActive.Load(),
	}
}

// zstdEncoder is reused across calls; zstd.Encoder is safe for
// concurrent use once constructed.
var zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
})

// History retains a bounded number of compressed Snapshot
// generations, letting the admin status action report a short trend
// (rate of messages delivered over the last few polling intervals)
// without holding every historical snapshot uncompressed in memory.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  [][]byte
}

// NewHistory returns a History retaining up to capacity generations.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{capacity: capacity}
}

// Record compresses and appends a snapshot, evicting the oldest entry
// once capacity is exceeded.
func (h *History) Record(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("metrics: marshaling snapshot: %w", err)
	}

	encoder, err := zstdEncoder()
	if err != nil {
		return fmt.Errorf("metrics: zstd encoder: %w", err)
	}
	compressed := encoder.EncodeAll(data, nil)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, compressed)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
	return nil
}

// Recent decompresses and returns up to n of the most recent
// snapshots, oldest first.
func (h *History) Recent(n int) ([]Snapshot, error) {
	h.mu.Lock()
	entries := make([][]byte, len(h.entries))
	copy(entries, h.entries)
	h.mu.Unlock()

	if n > 0 && n < len(entries) {
		entries = entries[len(entries)-n:]
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("metrics: zstd decoder: %w", err)
	}
	defer decoder.Close()

	result := make([]Snapshot, 0, len(entries))
	for _, compressed := range entries {
		data, err := decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("metrics: decompressing snapshot: %w", err)
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("metrics: unmarshaling snapshot: %w", err)
		}
		result = append(result, snap)
	}
	return result, nil
}
