// File: bus/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/momentics/busrelay/api"
	"github.com/momentics/busrelay/internal/codec"
)

const (
	readChunk    = 4096
	readTimeout  = 10 * time.Millisecond
	writeTimeout = time.Second
)

// Conn is a client connection to a Broker. Subscribe, Publish and
// Dispatch are meant for one goroutine (the reactor); handlers run
// inside Dispatch.
type Conn struct {
	conn *net.UnixConn
	fd   int

	mu       sync.Mutex
	handlers map[string][]api.BusHandler

	pending []byte
	chunk   []byte
	closed  atomic.Bool
}

var _ api.BusConn = (*Conn)(nil)

// Dial connects to the broker listening on path.
func Dial(ctx context.Context, path string) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("bus dial %s: %w", path, err)
	}
	uc := c.(*net.UnixConn)
	fd, err := rawFD(uc)
	if err != nil {
		_ = uc.Close()
		return nil, fmt.Errorf("bus dial %s: %w", path, err)
	}
	return &Conn{
		conn:     uc,
		fd:       fd,
		handlers: make(map[string][]api.BusHandler),
		chunk:    make([]byte, readChunk),
	}, nil
}

// Dialer returns an api.BusDialer for path.
func Dialer(path string) api.BusDialer {
	return func(ctx context.Context) (api.BusConn, error) {
		return Dial(ctx, path)
	}
}

func rawFD(c syscall.Conn) (int, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := rc.Control(func(f uintptr) { fd = int(f) }); err != nil {
		return -1, err
	}
	return fd, nil
}

// Fd returns the socket descriptor.
func (c *Conn) Fd() int { return c.fd }

// Subscribe registers h for channel and asks the broker to forward it.
func (c *Conn) Subscribe(channel string, h api.BusHandler) error {
	if channel == "" || h == nil {
		return api.ErrInvalidArgument
	}
	c.mu.Lock()
	first := len(c.handlers[channel]) == 0
	c.handlers[channel] = append(c.handlers[channel], h)
	c.mu.Unlock()
	if !first {
		return nil
	}
	return c.write(Frame{Op: OpSubscribe, Channel: channel})
}

// Publish sends body on channel.
func (c *Conn) Publish(channel string, body []byte) error {
	if channel == "" {
		return api.ErrInvalidArgument
	}
	return c.write(Frame{Op: OpPublish, Channel: channel, Body: body})
}

func (c *Conn) write(f Frame) error {
	if c.closed.Load() {
		return api.ErrTransportClosed
	}
	data, err := codec.Marshal(f)
	if err != nil {
		return fmt.Errorf("bus encode: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("bus write: %w", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("bus write: %w", err)
	}
	return nil
}

// Dispatch reads what the socket has buffered and delivers every
// complete event to its handlers. A read that finds nothing is not an
// error. EOF or a corrupt stream yields api.ErrTransportClosed.
func (c *Conn) Dispatch() error {
	if c.closed.Load() {
		return api.ErrTransportClosed
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return fmt.Errorf("%w: %v", api.ErrTransportClosed, err)
	}
	n, err := c.conn.Read(c.chunk)
	if n > 0 {
		c.pending = append(c.pending, c.chunk[:n]...)
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			err = nil
		} else if errors.Is(err, io.EOF) {
			return api.ErrTransportClosed
		} else {
			return fmt.Errorf("%w: %v", api.ErrTransportClosed, err)
		}
	}
	return c.deliver()
}

func (c *Conn) deliver() error {
	for len(c.pending) > 0 {
		var f Frame
		rest, err := codec.UnmarshalFirst(c.pending, &f)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			c.pending = nil
			return fmt.Errorf("%w: corrupt frame: %v", api.ErrTransportClosed, err)
		}
		if len(rest) == 0 {
			c.pending = c.pending[:0]
		} else {
			c.pending = rest
		}
		if f.Op != OpEvent {
			continue
		}
		c.mu.Lock()
		hs := append([]api.BusHandler(nil), c.handlers[f.Channel]...)
		c.mu.Unlock()
		for _, h := range hs {
			h(f.Channel, f.Body)
		}
	}
	return nil
}

// Close releases the connection. Safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
