// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/busrelay/api"
)

// Dialer connects to Host:Port, retrying failed attempts.
type Dialer struct {
	Host        string
	Port        int
	Retries     int           // extra attempts after the first
	RetryDelay  time.Duration // pause between attempts
	DialTimeout time.Duration // per attempt
	Log         zerolog.Logger
}

// Addr returns the host:port the dialer connects to.
func (d Dialer) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Dial connects, trying up to Retries+1 times.
func (d Dialer) Dial(ctx context.Context) (*Conn, error) {
	if d.Host == "" || d.Port <= 0 || d.Port > 65535 {
		return nil, fmt.Errorf("tcp dial %q: %w", d.Addr(), api.ErrInvalidArgument)
	}
	nd := net.Dialer{Timeout: d.DialTimeout}
	var lastErr error
	for attempt := 0; attempt <= d.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.RetryDelay):
			}
		}
		c, err := nd.DialContext(ctx, "tcp", d.Addr())
		if err == nil {
			return newConn(c.(*net.TCPConn))
		}
		lastErr = err
		d.Log.Debug().Err(err).Int("attempt", attempt+1).Str("addr", d.Addr()).Msg("tcp connect failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("tcp dial %s: %w", d.Addr(), lastErr)
}

// StreamDialer adapts Dial to api.StreamDialer.
func (d Dialer) StreamDialer() api.StreamDialer {
	return func(ctx context.Context) (api.StreamConn, error) {
		return d.Dial(ctx)
	}
}

// Conn is a connected TCP stream.
type Conn struct {
	conn   *net.TCPConn
	fd     int
	closed atomic.Bool
}

var _ api.StreamConn = (*Conn)(nil)

func newConn(c *net.TCPConn) (*Conn, error) {
	_ = c.SetNoDelay(true)
	rc, err := c.SyscallConn()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("tcp raw conn: %w", err)
	}
	fd := -1
	if err := rc.Control(func(f uintptr) { fd = int(f) }); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("tcp raw conn: %w", err)
	}
	return &Conn{conn: c, fd: fd}, nil
}

// Fd returns the socket descriptor.
func (c *Conn) Fd() int { return c.fd }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Send writes b, giving up after timeout.
func (c *Conn) Send(b []byte, timeout time.Duration) (int, error) {
	if c.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	if err := c.conn.SetWriteDeadline(deadline(timeout)); err != nil {
		return 0, fmt.Errorf("tcp send: %w", err)
	}
	n, err := c.conn.Write(b)
	if err != nil {
		return n, fmt.Errorf("tcp send: %w", err)
	}
	return n, nil
}

// Recv performs one read into buf, giving up after timeout. A closed
// peer yields 0, io.EOF.
func (c *Conn) Recv(buf []byte, timeout time.Duration) (int, error) {
	if c.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	if err := c.conn.SetReadDeadline(deadline(timeout)); err != nil {
		return 0, fmt.Errorf("tcp recv: %w", err)
	}
	n, err := c.conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, io.EOF
		}
		return n, fmt.Errorf("tcp recv: %w", err)
	}
	return n, nil
}

// Close releases the socket. Safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
