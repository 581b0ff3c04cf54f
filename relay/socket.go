// File: relay/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket side of the bridge: newline-framed reads become records for
// the bus relay; records from the bus relay are written to the peer.

package relay

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/busrelay/api"
	"github.com/momentics/busrelay/internal/concurrency"
	"github.com/momentics/busrelay/reactor"
)

const (
	DefaultReadBufferSize = 1024
	DefaultIOTimeout      = 8 * time.Second
)

// SocketConfig configures a SocketRelay.
type SocketConfig struct {
	ReadBufferSize int
	IOTimeout      time.Duration // bound on each send and recv
	StepInterval   time.Duration // drain debounce
	WriteDelimiter string        // appended to every outgoing payload
	SendTerminator bool          // write the stored NUL terminator too
	Reconnect      bool
	DialTimeout    time.Duration // bound on one reconnect attempt
	Backoff        *concurrency.Backoff
}

// SocketRelay owns the TCP connection.
type SocketRelay struct {
	cfg    SocketConfig
	dial   api.StreamDialer
	deps   Deps
	log    zerolog.Logger
	pump   *pump
	redial *redialer
	peer   Sink
	buf    []byte

	ctx       context.Context
	conn      api.StreamConn
	connected atomic.Bool
}

var _ Sink = (*SocketRelay)(nil)

// NewSocketRelay creates an unconnected relay.
func NewSocketRelay(cfg SocketConfig, dial api.StreamDialer, deps Deps) *SocketRelay {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	deps = deps.withDefaults()
	r := &SocketRelay{
		cfg:  cfg,
		dial: dial,
		deps: deps,
		log:  deps.Log.With().Str("component", "socket").Logger(),
		buf:  make([]byte, cfg.ReadBufferSize),
	}
	r.pump = newPump(deps.Scheduler, cfg.StepInterval, r.drain)
	r.redial = newRedialer(cfg.Reconnect, cfg.DialTimeout, cfg.Backoff, deps.Scheduler, r.onRedial)
	deps.Probes.RegisterProbe("socket.queue_depth", func() any { return r.pump.queue.Len() })
	deps.Probes.RegisterProbe("socket.connected", func() any { return r.connected.Load() })
	return r
}

// SetPeer sets the relay that receives socket frames.
func (r *SocketRelay) SetPeer(s Sink) { r.peer = s }

// Connected reports whether the TCP connection is live.
func (r *SocketRelay) Connected() bool { return r.connected.Load() }

// QueueLen returns the number of records waiting to be written.
func (r *SocketRelay) QueueLen() int { return r.pump.queue.Len() }

// Start connects to the peer and registers with the poller. A failure
// here is fatal to startup.
func (r *SocketRelay) Start(ctx context.Context) error {
	r.ctx = ctx
	if err := r.connect(ctx); err != nil {
		return api.Wrap(api.ErrCodeStartup, "socket relay start", err)
	}
	return nil
}

// Reconnect re-establishes a torn-down connection immediately. It is a
// no-op while connected.
func (r *SocketRelay) Reconnect(ctx context.Context) error {
	if r.conn != nil {
		return nil
	}
	if err := r.connect(ctx); err != nil {
		return err
	}
	r.redial.reset()
	r.deps.Metrics.Add("socket.reconnects", 1)
	return nil
}

func (r *SocketRelay) connect(ctx context.Context) error {
	conn, err := r.dial(ctx)
	if err != nil {
		return err
	}
	if err := r.deps.Poller.Register(conn.Fd(), r.onReadable); err != nil {
		_ = conn.Close()
		return fmt.Errorf("register socket: %w", err)
	}
	r.conn = conn
	r.connected.Store(true)
	r.log.Info().Int("fd", conn.Fd()).Msg("socket connected")
	return nil
}

// Enqueue hands a record to this relay for writing.
func (r *SocketRelay) Enqueue(ev api.Event) {
	r.pump.push(ev)
}

// onReadable performs one bounded read and forwards the frame.
func (r *SocketRelay) onReadable(int) {
	if r.conn == nil {
		return
	}
	n, err := r.conn.Recv(r.buf, r.cfg.IOTimeout)
	if n <= 0 {
		if err == nil {
			err = api.ErrTransportClosed
		}
		r.teardown("recv", err)
		return
	}
	frame := r.buf[:n]
	r.log.Debug().Hex("recv", frame).Msg("socket frame")
	frame = bytes.TrimSuffix(frame, []byte{'\n'})
	r.deps.Metrics.Add("socket.received", 1)

	if r.peer == nil {
		r.log.Warn().Msg("socket frame with no peer relay")
		return
	}
	r.peer.Enqueue(api.NewData(frame))
}

// drain writes at most one queued record per firing.
func (r *SocketRelay) drain(*reactor.Timer) {
	ev, ok := r.pump.queue.TryPop()
	if !ok {
		return
	}
	switch e := ev.(type) {
	case api.Data:
		r.send(e)
	default:
		r.log.Warn().Stringer("kind", ev.Kind()).Msg("unsupported event dropped")
	}
	r.pump.stepTimer()
}

func (r *SocketRelay) send(d api.Data) {
	r.log.Debug().Str("data", d.String()).Msg("socket msg")
	if r.conn == nil {
		r.deps.Metrics.Add("socket.dropped", 1)
		r.log.Debug().Msg("socket down, record dropped")
		return
	}
	out := d.Payload()
	if r.cfg.SendTerminator {
		out = d.Raw()
	}
	if r.cfg.WriteDelimiter != "" {
		out = append(append(make([]byte, 0, len(out)+len(r.cfg.WriteDelimiter)), out...), r.cfg.WriteDelimiter...)
	}
	n, err := r.conn.Send(out, r.cfg.IOTimeout)
	if err != nil || n <= 0 {
		if err == nil {
			err = api.ErrTransportClosed
		}
		r.teardown("send", err)
		return
	}
	r.deps.Metrics.Add("socket.sent", 1)
}

// teardown drops the connection; later reads and sends see it as gone.
func (r *SocketRelay) teardown(op string, cause error) {
	if r.conn == nil {
		return
	}
	fd := r.conn.Fd()
	if err := r.deps.Poller.Unregister(fd); err != nil {
		r.log.Debug().Err(err).Int("fd", fd).Msg("socket unregister")
	}
	_ = r.conn.Close()
	r.conn = nil
	r.connected.Store(false)
	r.deps.Metrics.Add("socket.teardowns", 1)

	ev := r.log.Warn().Err(cause).Str("op", op).Int("fd", fd)
	if d, ok := r.redial.arm(); ok {
		ev.Dur("retry_in", d).Msg("socket error, closed")
		return
	}
	ev.Msg("socket error, closed; relay inert")
}

func (r *SocketRelay) onRedial(*reactor.Timer) {
	if r.conn != nil {
		return
	}
	ctx, cancel := r.redial.dialContext(r.ctx)
	err := r.connect(ctx)
	cancel()
	if err != nil {
		if r.ctx != nil && r.ctx.Err() != nil {
			return
		}
		d, _ := r.redial.arm()
		r.log.Debug().Err(err).Dur("retry_in", d).Msg("socket reconnect failed")
		return
	}
	r.redial.reset()
	r.deps.Metrics.Add("socket.reconnects", 1)
}

// Shutdown releases the connection and drops whatever is still queued.
func (r *SocketRelay) Shutdown() error {
	r.redial.reset()
	lost := r.pump.stop()
	if len(lost) > 0 {
		r.log.Warn().Int("records", len(lost)).Msg("socket relay stopped with queued records")
	}
	if r.conn == nil {
		return nil
	}
	_ = r.deps.Poller.Unregister(r.conn.Fd())
	err := r.conn.Close()
	r.conn = nil
	r.connected.Store(false)
	return err
}
