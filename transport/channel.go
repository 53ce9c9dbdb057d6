// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/lattice-forge/messageportd/wire"
)

// scratchSize bounds each individual read from the socket, per §4.1
// of the specification ("Reads into a bounded scratch buffer (<=1
// KiB)"). Bounding the read size keeps one slow or malicious peer
// from monopolizing a large buffer while its frame trickles in.
const scratchSize = 1024

// Channel is a single accepted stream connection: either a request
// channel carrying inbound framed messages, or a reverse channel
// carrying outbound deliveries. The role is fixed at construction,
// decided by the hello handshake the listener already consumed.
type Channel struct {
	conn net.Conn
	role wire.HelloRole

	// pending holds the tail of the last read that did not contain a
	// complete frame. Invariant (§3): always a proper prefix of some
	// frame.
	pending []byte

	// writeMu serializes writers. The specification's single-
	// threaded event loop makes this unnecessary in the original
	// design (§5: "no write interleaving is possible"); this
	// implementation uses one goroutine per connection, so concurrent
	// SendMessage deliveries targeting the same client's reverse
	// channel need explicit serialization to preserve that property.
	writeMu sync.Mutex
}

// NewChannel wraps an accepted connection with the given role. The
// hello handshake must already have been read from conn.
func NewChannel(conn net.Conn, role wire.HelloRole) *Channel {
	return &Channel{conn: conn, role: role}
}

// Role reports whether this is a request or reverse channel.
func (c *Channel) Role() wire.HelloRole { return c.role }

// Conn returns the underlying connection, for callers that need the
// raw fd (peer-credential extraction) or need to close it.
func (c *Channel) Conn() net.Conn { return c.conn }

// Close closes the underlying connection.
func (c *Channel) Close() error { return c.conn.Close() }

// ReadLoop reads frames from the channel until the connection is
// closed or a read/framing error occurs, invoking handle for each
// complete frame in the order they were sent. Frames from one channel
// are always dispatched in send order (§5 "Ordering").
//
// ReadLoop returns when the connection ends. It never tears down the
// channel itself — per §4.1's cancellation rule, destroying a
// connection's read source must happen only after the loop that
// dispatched into it returns, never from inside a callback. The
// caller (the connection's Handler) performs cleanup once ReadLoop
// returns.
func (c *Channel) ReadLoop(handle func(wire.Frame) error) error {
	scratch := make([]byte, scratchSize)
	for {
		n, err := c.conn.Read(scratch)
		if n > 0 {
			c.pending = append(c.pending, scratch[:n]...)
			if drainErr := c.drainFrames(handle); drainErr != nil {
				return drainErr
			}
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// drainFrames scans the pending buffer for every complete frame it
// currently holds, dispatching each in turn and retaining only the
// trailing incomplete bytes.
func (c *Channel) drainFrames(handle func(wire.Frame) error) error {
	for {
		frame, ok, err := c.extractFrame()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := handle(frame); err != nil {
			return err
		}
	}
}

// extractFrame removes and returns one complete frame from the front
// of the pending buffer, if one is present.
func (c *Channel) extractFrame() (wire.Frame, bool, error) {
	end, ok, err := wire.FindNextFrame(c.pending)
	if err != nil {
		return wire.Frame{}, false, fmt.Errorf("transport: framing error: %w", err)
	}
	if !ok {
		return wire.Frame{}, false, nil
	}
	frame, err := wire.Decode(c.pending[:end])
	if err != nil {
		return wire.Frame{}, false, fmt.Errorf("transport: decode error: %w", err)
	}
	remaining := len(c.pending) - end
	if remaining > 0 {
		copy(c.pending, c.pending[end:])
	}
	c.pending = c.pending[:remaining]
	return frame, true, nil
}

// ReadFrame blocks until exactly one complete frame is available and
// returns it, buffering any surplus bytes for the next call. Used by
// the client proxy's synchronous call/reply pattern on the request
// channel, where a write and its reply alternate one-for-one and a
// continuous ReadLoop dispatch would be the wrong shape.
func (c *Channel) ReadFrame() (wire.Frame, error) {
	if frame, ok, err := c.extractFrame(); err != nil {
		return wire.Frame{}, err
	} else if ok {
		return frame, nil
	}

	scratch := make([]byte, scratchSize)
	for {
		n, err := c.conn.Read(scratch)
		if n > 0 {
			c.pending = append(c.pending, scratch[:n]...)
			if frame, ok, extractErr := c.extractFrame(); extractErr != nil {
				return wire.Frame{}, extractErr
			} else if ok {
				return frame, nil
			}
		}
		if err != nil {
			return wire.Frame{}, err
		}
	}
}

// WriteFrame writes a complete frame to the channel, retrying on
// partial writes until the frame is fully drained or an unrecoverable
// write error occurs (§4.1 "Writes"). Safe for concurrent use — see
// the writeMu doc comment above.
func (c *Channel) WriteFrame(f wire.Frame) error {
	encoded := wire.Encode(nil, f)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for len(encoded) > 0 {
		n, err := c.conn.Write(encoded)
		if err != nil {
			return fmt.Errorf("transport: write frame: %w", err)
		}
		encoded = encoded[n:]
	}
	return nil
}
