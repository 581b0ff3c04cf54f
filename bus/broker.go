// File: bus/broker.go
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
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/busrelay/internal/codec"
)

// Broker accepts bus clients and forwards publications to subscribers.
type Broker struct {
	ln  *net.UnixListener
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type client struct {
	conn net.Conn
	wmu  sync.Mutex
	subs map[string]bool // guarded by Broker.mu
}

// Listen binds a broker to the unix socket at path, replacing a stale
// socket file left by a previous run.
func Listen(path string, log zerolog.Logger) (*Broker, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("bus listen %s: %w", path, err)
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("bus listen %s: %w", path, err)
	}
	ln.SetUnlinkOnClose(true)
	return &Broker{
		ln:      ln,
		log:     log,
		clients: make(map[*client]struct{}),
	}, nil
}

// Addr returns the socket path.
func (b *Broker) Addr() string { return b.ln.Addr().String() }

// Serve accepts clients until ctx ends or Close is called.
func (b *Broker) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = b.Close() })
	defer stop()
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			if b.isClosed() {
				return nil
			}
			return fmt.Errorf("bus accept: %w", err)
		}
		c := &client{conn: conn, subs: make(map[string]bool)}
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		b.clients[c] = struct{}{}
		b.wg.Add(1)
		b.mu.Unlock()
		go b.serveClient(c)
	}
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Broker) serveClient(c *client) {
	defer b.wg.Done()
	defer b.drop(c)

	dec := codec.NewDecoder(c.conn)
	for {
		var f Frame
		if err := dec.Decode(&f); err != nil {
			if !errors.Is(err, io.EOF) && !b.isClosed() {
				b.log.Debug().Err(err).Msg("bus client read failed")
			}
			return
		}
		switch f.Op {
		case OpSubscribe:
			b.mu.Lock()
			c.subs[f.Channel] = true
			b.mu.Unlock()
			b.log.Debug().Str("channel", f.Channel).Msg("bus subscribe")
		case OpPublish:
			b.publish(f.Channel, f.Body)
		default:
			b.log.Debug().Str("op", f.Op).Msg("bus frame ignored")
		}
	}
}

func (b *Broker) publish(channel string, body []byte) {
	data, err := codec.Marshal(Frame{Op: OpEvent, Channel: channel, Body: body})
	if err != nil {
		b.log.Warn().Err(err).Msg("bus encode event")
		return
	}
	b.mu.Lock()
	targets := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		if c.subs[channel] {
			targets = append(targets, c)
		}
	}
	b.mu.Unlock()

	for _, c := range targets {
		c.wmu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, err := c.conn.Write(data)
		c.wmu.Unlock()
		if err != nil {
			b.log.Debug().Err(err).Str("channel", channel).Msg("bus deliver failed, dropping client")
			_ = c.conn.Close()
		}
	}
}

func (b *Broker) drop(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
	_ = c.conn.Close()
}

// Subscribers returns how many clients receive channel.
func (b *Broker) Subscribers(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for c := range b.clients {
		if c.subs[channel] {
			n++
		}
	}
	return n
}

// Close stops accepting, disconnects every client and waits for their
// goroutines to exit.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	err := b.ln.Close()
	for _, c := range clients {
		_ = c.conn.Close()
	}
	b.wg.Wait()
	return err
}
