// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Collaborator contracts for the two transports the relay bridges:
// the local publish/subscribe bus and the remote TCP stream.

package api

import (
	"context"
	"time"
)

// BusHandler receives one bus event. channel is the event name and body
// its encoded structured payload.
type BusHandler func(channel string, body []byte)

// BusConn is a connection to the local bus.
type BusConn interface {
	// Fd returns the descriptor to watch for readability.
	Fd() int

	// Subscribe registers h for events published on channel.
	Subscribe(channel string, h BusHandler) error

	// Publish sends body on channel. Delivery is fire-and-forget.
	Publish(channel string, body []byte) error

	// Dispatch pumps buffered inbound messages to their handlers without
	// blocking. It returns ErrTransportClosed once the bus has gone away.
	Dispatch() error

	// Close releases the connection.
	Close() error
}

// BusDialer opens a bus connection.
type BusDialer func(ctx context.Context) (BusConn, error)

// StreamConn is a connected byte stream to the remote peer.
type StreamConn interface {
	// Fd returns the descriptor to watch for readability.
	Fd() int

	// Send writes b within timeout and reports the bytes written.
	Send(b []byte, timeout time.Duration) (int, error)

	// Recv performs one bounded read into buf.
	Recv(buf []byte, timeout time.Duration) (int, error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// StreamDialer opens the stream to the remote peer, retrying as configured.
type StreamDialer func(ctx context.Context) (StreamConn, error)
