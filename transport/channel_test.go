// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/lattice-forge/messageportd/lib/testutil"
	"github.com/lattice-forge/messageportd/wire"
)

var errStop = errors.New("stop")

func TestChannelReadLoopRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	channel := NewChannel(server, wire.HelloRequestChannel)

	received := make(chan wire.Frame, 4)
	done := make(chan error, 1)
	go func() {
		done <- channel.ReadLoop(func(f wire.Frame) error {
			received <- f
			return nil
		})
	}()

	frames := []wire.Frame{
		{Type: wire.FrameRegisterPort, Payload: []byte("first")},
		{Type: wire.FrameSendMessage, Payload: []byte("second")},
	}

	go func() {
		for _, f := range frames {
			client.Write(wire.Encode(nil, f))
		}
	}()

	for _, want := range frames {
		got := testutil.RequireReceive(t, received, 2*time.Second, "waiting for frame")
		if got.Type != want.Type || string(got.Payload) != string(want.Payload) {
			t.Fatalf("got %v %q, want %v %q", got.Type, got.Payload, want.Type, want.Payload)
		}
	}

	client.Close()
	server.Close()
	<-done
}

// TestChannelReadLoopFragmentedFrames exercises the scenario in the
// specification's testable properties: two concatenated frames
// delivered across three reads, one split mid-header and one split
// mid-payload. Channel must reassemble both without losing bytes or
// misparsing the boundary.
func TestChannelReadLoopFragmentedFrames(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	channel := NewChannel(server, wire.HelloRequestChannel)

	frameA := wire.Frame{Type: wire.FrameSendMessage, Payload: []byte("hello-a")}
	frameB := wire.Frame{Type: wire.FrameSendMessage, Payload: []byte("hello-longer-b")}
	encoded := wire.Encode(wire.Encode(nil, frameA), frameB)

	// Split points: mid-header of frameA, and mid-payload of frameB.
	splitA := 2
	splitB := len(wire.Encode(nil, frameA)) + 5 + 3

	chunks := [][]byte{
		encoded[:splitA],
		encoded[splitA:splitB],
		encoded[splitB:],
	}

	received := make(chan wire.Frame, 4)
	done := make(chan error, 1)
	go func() {
		done <- channel.ReadLoop(func(f wire.Frame) error {
			received <- f
			return nil
		})
	}()

	go func() {
		for _, chunk := range chunks {
			client.Write(chunk)
			time.Sleep(5 * time.Millisecond)
		}
	}()

	for _, want := range []wire.Frame{frameA, frameB} {
		got := testutil.RequireReceive(t, received, 2*time.Second, "waiting for reassembled frame")
		if got.Type != want.Type || string(got.Payload) != string(want.Payload) {
			t.Fatalf("got %v %q, want %v %q", got.Type, got.Payload, want.Type, want.Payload)
		}
	}

	client.Close()
	server.Close()
	<-done
}

// TestChannelReadFrameSynchronousCallReply exercises the proxy's
// call/reply usage: write one frame, read exactly one frame back,
// with a second frame already queued behind it in the same read.
func TestChannelReadFrameSynchronousCallReply(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	channel := NewChannel(server, wire.HelloRequestChannel)

	frameA := wire.Frame{Type: wire.FrameRegisterPort, Payload: []byte("a")}
	frameB := wire.Frame{Type: wire.FrameCheckRemotePort, Payload: []byte("b")}
	go func() {
		client.Write(wire.Encode(wire.Encode(nil, frameA), frameB))
	}()

	got, err := channel.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Type != frameA.Type || string(got.Payload) != string(frameA.Payload) {
		t.Fatalf("got %v %q, want %v %q", got.Type, got.Payload, frameA.Type, frameA.Payload)
	}

	got, err = channel.ReadFrame()
	if err != nil {
		t.Fatalf("second ReadFrame: %v", err)
	}
	if got.Type != frameB.Type || string(got.Payload) != string(frameB.Payload) {
		t.Fatalf("got %v %q, want %v %q", got.Type, got.Payload, frameB.Type, frameB.Payload)
	}
}

func TestChannelWriteFrameConcurrent(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	channel := NewChannel(server, wire.HelloReverseChannel)

	readDone := make(chan struct{})
	count := 0
	go func() {
		defer close(readDone)
		channel2 := NewChannel(client, wire.HelloReverseChannel)
		channel2.ReadLoop(func(f wire.Frame) error {
			count++
			if count == 20 {
				return errStop
			}
			return nil
		})
	}()

	const writers = 4
	const perWriter = 5
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			for j := 0; j < perWriter; j++ {
				errs <- channel.WriteFrame(wire.Frame{Type: wire.FrameDeliverMessage, Payload: []byte("x")})
			}
		}()
	}
	for i := 0; i < writers*perWriter; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reader to observe all frames")
	}
}
