// Package transport implements the board worker's TCP socket I/O: a
// bounded-timeout dial, deadline-bound send/recv loops that block until the
// requested length has arrived or the deadline fires, and a chunked writer
// that never stages more than 1 MiB of an upload at a time (spec.md §4.2,
// §4.5).
//
// Adapted from the teacher's services/bridge/bridge.go Transport
// interface/backoff-retry loop (runLink, backoffSeq) — generalized from a
// pluggable UART bridge transport to a concrete TCP dialer — and from
// bus.go's careful select+timer idiom for the partial-read loop style.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// ChunkSize bounds every OUT_WRITE payload send to this many bytes at a
// time (spec.md §4.2), so a multi-hundred-MiB upload never requires
// buffering more than 1 MiB in memory.
const ChunkSize = 1 << 20

// Default timeout classes (spec.md §4.2).
const (
	DefaultCommandTimeout = 1000 * time.Millisecond
	DefaultDialTimeout    = 2 * time.Second
	// DefaultUploadACKTimeout is the larger timeout class reserved for the
	// post-payload OUT_WRITE completion ACK: a several-hundred-MiB upload
	// can take tens of seconds (spec.md §4.5).
	DefaultUploadACKTimeout = 30 * time.Second
)

// Conn wraps a single board TCP connection with deadline-bound send/recv.
type Conn struct {
	nc net.Conn
}

// Dial opens a non-blocking TCP connect to addr, bounded by timeout.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Conn, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var d net.Dialer
	nc, err := d.DialContext(dctx, "tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Conn{nc: nc}, nil
}

// Close closes the underlying socket.
func (c *Conn) Close() error { return c.nc.Close() }

// RemoteAddr returns the peer address string.
func (c *Conn) RemoteAddr() string { return c.nc.RemoteAddr().String() }

// Send writes all of b before timeout elapses.
func (c *Conn) Send(b []byte, timeout time.Duration) error {
	if err := c.nc.SetWriteDeadline(deadline(timeout)); err != nil {
		return err
	}
	_, err := c.nc.Write(b)
	if err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Recv reads exactly len(b) bytes, looping over partial reads until the
// buffer is full or timeout elapses (spec.md §4.1: "partial receives are
// legal ... the worker must loop until the full fixed length ... has
// arrived or the timeout elapses").
func (c *Conn) Recv(b []byte, timeout time.Duration) error {
	if err := c.nc.SetReadDeadline(deadline(timeout)); err != nil {
		return err
	}
	_, err := io.ReadFull(c.nc, b)
	if err != nil {
		return fmt.Errorf("transport: recv: %w", err)
	}
	return nil
}

// SendChunked streams all of payload in ChunkSize-bounded writes, each
// bounded by perChunkTimeout. Use for OUT_WRITE's raw sample-byte stream.
func (c *Conn) SendChunked(payload []byte, perChunkTimeout time.Duration) error {
	for off := 0; off < len(payload); {
		end := off + ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		if err := c.Send(payload[off:end], perChunkTimeout); err != nil {
			return err
		}
		off = end
	}
	return nil
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		// A zero/negative timeout means "no deadline" to net.Conn.
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
