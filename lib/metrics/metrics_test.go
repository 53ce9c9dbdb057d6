// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import "testing"

func TestCountersSnapshot(t *testing.T) {
	var c Counters
	c.PortsRegistered.Add(3)
	c.MessagesSent.Add(10)
	c.MessagesDelivered.Add(9)
	c.TrustDenials.Add(1)

	snap := c.Snapshot()
	if snap.PortsRegistered != 3 || snap.MessagesSent != 10 ||
		snap.MessagesDelivered != 9 || snap.TrustDenials != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestHistoryRecordAndRecent(t *testing.T) {
	h := NewHistory(2)

	for i := int64(1); i <= 3; i++ {
		if err := h.Record(Snapshot{MessagesSent: i}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := h.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected capacity-bounded history of 2, got %d", len(recent))
	}
	if recent[0].MessagesSent != 2 || recent[1].MessagesSent != 3 {
		t.Fatalf("expected oldest-evicted history [2,3], got %+v", recent)
	}
}
