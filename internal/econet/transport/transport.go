// Package transport owns one stream connection to the ecoNET module
// and turns the raw byte stream back into frames. It knows nothing
// about register semantics.
package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/boilerlink/econetd/internal/econet/frame"
)

const (
	// readChunk caps a single read from the socket. The device sends
	// short frames; larger reads just buffer noise.
	readChunk = 1024

	// pollSlice bounds each blocking read so the overall receive
	// deadline is honored even on a silent connection.
	pollSlice = 500 * time.Millisecond
)

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrTimeout      = errors.New("transport: receive timeout")
)

// Conn is a framed connection over a single stream socket. Not safe
// for concurrent use; callers serialize transactions.
type Conn struct {
	conn net.Conn
	buf  []byte
	log  zerolog.Logger
}

// Dial opens a TCP connection to the device module.
func Dial(addr string, timeout time.Duration, log zerolog.Logger) (*Conn, error) {
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return New(nc, log), nil
}

// New wraps an established stream connection.
func New(nc net.Conn, log zerolog.Logger) *Conn {
	return &Conn{conn: nc, log: log}
}

// Close releases the socket. Safe to call on a partially constructed
// or already closed connection.
func (c *Conn) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.buf = nil
	return err
}

// Send serializes and writes one frame. The reassembly buffer is
// cleared first: stale bytes from an aborted exchange would misalign
// the next read, and losing an unrelated in-flight frame is the
// cheaper failure.
func (c *Conn) Send(f frame.Frame, timeout time.Duration) error {
	if c == nil || c.conn == nil {
		return ErrNotConnected
	}
	raw, err := frame.Encode(f)
	if err != nil {
		return err
	}
	c.buf = c.buf[:0]

	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if _, err := c.conn.Write(raw); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Receive accumulates bytes until a structurally valid frame appears
// or timeout elapses. A CRC mismatch discards a single byte and
// scanning resumes; noise on the line never forces a redial.
func (c *Conn) Receive(timeout time.Duration) (frame.Frame, error) {
	if c == nil || c.conn == nil {
		return frame.Frame{}, ErrNotConnected
	}
	deadline := time.Now().Add(timeout)

	for {
		if f, ok := c.extractFrame(); ok {
			return f, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return frame.Frame{}, ErrTimeout
		}
		slice := remaining
		if slice > pollSlice {
			slice = pollSlice
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(slice)); err != nil {
			return frame.Frame{}, fmt.Errorf("transport: set read deadline: %w", err)
		}

		chunk := make([]byte, readChunk)
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
		}
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return frame.Frame{}, fmt.Errorf("transport: read: %w", err)
		}
	}
}

// extractFrame tries to parse one frame out of the reassembly buffer,
// discarding noise and corrupted frames as it goes.
func (c *Conn) extractFrame() (frame.Frame, bool) {
	for {
		idx := frame.Scan(c.buf)
		if idx < 0 {
			c.buf = c.buf[:0]
			return frame.Frame{}, false
		}
		if idx > 0 {
			c.log.Debug().Int("bytes", idx).Msg("discarding leading noise")
			c.buf = c.buf[idx:]
		}

		f, n, err := frame.Decode(c.buf)
		switch {
		case err == nil:
			c.buf = c.buf[n:]
			return f, true
		case errors.Is(err, frame.ErrNeedMoreData):
			return frame.Frame{}, false
		default:
			// Corrupted frame: drop the start byte and rescan.
			c.log.Debug().Err(err).Msg("discarding corrupted frame byte")
			c.buf = c.buf[1:]
		}
	}
}
