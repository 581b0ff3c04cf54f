// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the relay collaborators.

package fake

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/momentics/busrelay/api"
)

// Stream is a fake api.StreamConn backed by in-memory chunks.
type Stream struct {
	mu        sync.Mutex
	fd        int
	inbound   [][]byte
	sent      [][]byte
	closed    bool
	closes    int
	sendError error
	recvError error
	zeroSend  bool
}

// NewStream creates a connected fake stream reporting fd.
func NewStream(fd int) *Stream {
	return &Stream{fd: fd}
}

func (s *Stream) Fd() int { return s.fd }

// Feed queues p to be returned by a later Recv.
func (s *Stream) Feed(p []byte) {
	s.mu.Lock()
	s.inbound = append(s.inbound, append([]byte(nil), p...))
	s.mu.Unlock()
}

// FailSend makes subsequent Send calls return err.
func (s *Stream) FailSend(err error) {
	s.mu.Lock()
	s.sendError = err
	s.mu.Unlock()
}

// FailRecv makes subsequent Recv calls return err.
func (s *Stream) FailRecv(err error) {
	s.mu.Lock()
	s.recvError = err
	s.mu.Unlock()
}

// ShortSend makes subsequent Send calls report zero bytes written.
func (s *Stream) ShortSend() {
	s.mu.Lock()
	s.zeroSend = true
	s.mu.Unlock()
}

func (s *Stream) Send(b []byte, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, api.ErrTransportClosed
	}
	if s.sendError != nil {
		return 0, s.sendError
	}
	if s.zeroSend {
		return 0, nil
	}
	s.sent = append(s.sent, append([]byte(nil), b...))
	return len(b), nil
}

// Recv returns the next fed chunk; with nothing fed it reports EOF,
// which is how a peer close looks.
func (s *Stream) Recv(buf []byte, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, api.ErrTransportClosed
	}
	if s.recvError != nil {
		return 0, s.recvError
	}
	if len(s.inbound) == 0 {
		return 0, io.EOF
	}
	chunk := s.inbound[0]
	n := copy(buf, chunk)
	if n < len(chunk) {
		s.inbound[0] = chunk[n:]
	} else {
		s.inbound = s.inbound[1:]
	}
	return n, nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.closes++
	s.mu.Unlock()
	return nil
}

// Sent returns copies of every successful Send.
func (s *Stream) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// StreamDialer hands out the given streams in order, then fails with
// the configured error.
type StreamDialer struct {
	mu      sync.Mutex
	streams []*Stream
	Err     error
	dials   int
}

// NewStreamDialer returns a dialer that yields streams in order.
func NewStreamDialer(streams ...*Stream) *StreamDialer {
	return &StreamDialer{streams: streams, Err: api.ErrNotConnected}
}

// Dial implements api.StreamDialer.
func (d *StreamDialer) Dial(context.Context) (api.StreamConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.streams) == 0 {
		return nil, d.Err
	}
	s := d.streams[0]
	d.streams = d.streams[1:]
	return s, nil
}

// Dials returns the number of Dial calls.
func (d *StreamDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Message is one bus publication.
type Message struct {
	Channel string
	Body    []byte
}

// Bus is a fake api.BusConn. Deliver queues inbound events that are
// handed to subscribers on the next Dispatch.
type Bus struct {
	mu           sync.Mutex
	fd           int
	handlers     map[string][]api.BusHandler
	pending      []Message
	published    []Message
	closed       bool
	publishError error
	lost         bool
}

// NewBus creates a connected fake bus reporting fd.
func NewBus(fd int) *Bus {
	return &Bus{fd: fd, handlers: make(map[string][]api.BusHandler)}
}

func (b *Bus) Fd() int { return b.fd }

func (b *Bus) Subscribe(channel string, h api.BusHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return api.ErrTransportClosed
	}
	b.handlers[channel] = append(b.handlers[channel], h)
	return nil
}

// Subscribed reports whether any handler listens on channel.
func (b *Bus) Subscribed(channel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[channel]) > 0
}

func (b *Bus) Publish(channel string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return api.ErrTransportClosed
	}
	if b.publishError != nil {
		return b.publishError
	}
	b.published = append(b.published, Message{Channel: channel, Body: append([]byte(nil), body...)})
	return nil
}

// FailPublish makes subsequent Publish calls return err.
func (b *Bus) FailPublish(err error) {
	b.mu.Lock()
	b.publishError = err
	b.mu.Unlock()
}

// Published returns every successful publication.
func (b *Bus) Published() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.published...)
}

// Deliver queues an inbound event for the next Dispatch.
func (b *Bus) Deliver(channel string, body []byte) {
	b.mu.Lock()
	b.pending = append(b.pending, Message{Channel: channel, Body: append([]byte(nil), body...)})
	b.mu.Unlock()
}

// Lose makes the next Dispatch report the bus as gone.
func (b *Bus) Lose() {
	b.mu.Lock()
	b.lost = true
	b.mu.Unlock()
}

func (b *Bus) Dispatch() error {
	b.mu.Lock()
	if b.closed || b.lost {
		b.mu.Unlock()
		return api.ErrTransportClosed
	}
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, m := range pending {
		b.mu.Lock()
		hs := append([]api.BusHandler(nil), b.handlers[m.Channel]...)
		b.mu.Unlock()
		for _, h := range hs {
			h(m.Channel, m.Body)
		}
	}
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// BusDialer hands out the given buses in order.
type BusDialer struct {
	mu    sync.Mutex
	buses []*Bus
	Err   error
	dials int
}

// NewBusDialer returns a dialer that yields buses in order.
func NewBusDialer(buses ...*Bus) *BusDialer {
	return &BusDialer{buses: buses, Err: api.ErrNotConnected}
}

// Dial implements api.BusDialer.
func (d *BusDialer) Dial(context.Context) (api.BusConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.buses) == 0 {
		return nil, d.Err
	}
	b := d.buses[0]
	d.buses = d.buses[1:]
	return b, nil
}

// Dials returns the number of Dial calls.
func (d *BusDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
