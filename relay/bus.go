// File: relay/bus.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bus side of the bridge: bus events become records for the socket
// relay; records from the socket relay are published on the bus.

package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/busrelay/api"
	"github.com/momentics/busrelay/internal/concurrency"
	"github.com/momentics/busrelay/payload"
	"github.com/momentics/busrelay/reactor"
)

// BusConfig configures a BusRelay.
type BusConfig struct {
	SubscribeChannel string        // events relayed to the socket
	PublishChannel   string        // channel records are published on
	PayloadField     string        // field carrying the relayed text
	StepInterval     time.Duration // drain debounce
	Reconnect        bool
	DialTimeout      time.Duration // bound on one reconnect attempt
	Backoff          *concurrency.Backoff
}

// BusRelay owns the bus connection.
type BusRelay struct {
	cfg    BusConfig
	dial   api.BusDialer
	deps   Deps
	log    zerolog.Logger
	pump   *pump
	redial *redialer
	peer   Sink

	ctx       context.Context
	conn      api.BusConn
	connected atomic.Bool
}

var _ Sink = (*BusRelay)(nil)

// NewBusRelay creates an unconnected relay.
func NewBusRelay(cfg BusConfig, dial api.BusDialer, deps Deps) *BusRelay {
	if cfg.PayloadField == "" {
		cfg.PayloadField = payload.DefaultField
	}
	deps = deps.withDefaults()
	r := &BusRelay{
		cfg:  cfg,
		dial: dial,
		deps: deps,
		log:  deps.Log.With().Str("component", "bus").Logger(),
	}
	r.pump = newPump(deps.Scheduler, cfg.StepInterval, r.drain)
	r.redial = newRedialer(cfg.Reconnect, cfg.DialTimeout, cfg.Backoff, deps.Scheduler, r.onRedial)
	deps.Probes.RegisterProbe("bus.queue_depth", func() any { return r.pump.queue.Len() })
	deps.Probes.RegisterProbe("bus.connected", func() any { return r.connected.Load() })
	return r
}

// SetPeer sets the relay that receives bus events.
func (r *BusRelay) SetPeer(s Sink) { r.peer = s }

// Connected reports whether the bus connection is live.
func (r *BusRelay) Connected() bool { return r.connected.Load() }

// QueueLen returns the number of records waiting to be published.
func (r *BusRelay) QueueLen() int { return r.pump.queue.Len() }

// Start connects, subscribes and registers with the poller.
func (r *BusRelay) Start(ctx context.Context) error {
	r.ctx = ctx
	if err := r.connect(ctx); err != nil {
		return api.Wrap(api.ErrCodeStartup, "bus relay start", err)
	}
	return nil
}

func (r *BusRelay) connect(ctx context.Context) error {
	conn, err := r.dial(ctx)
	if err != nil {
		return err
	}
	if err := conn.Subscribe(r.cfg.SubscribeChannel, r.onEvent); err != nil {
		_ = conn.Close()
		return err
	}
	if err := r.deps.Poller.Register(conn.Fd(), r.onReadable); err != nil {
		_ = conn.Close()
		return err
	}
	r.conn = conn
	r.connected.Store(true)
	r.log.Info().
		Int("fd", conn.Fd()).
		Str("subscribe", r.cfg.SubscribeChannel).
		Str("publish", r.cfg.PublishChannel).
		Msg("bus connected")
	return nil
}

// Enqueue hands a record to this relay for publishing.
func (r *BusRelay) Enqueue(ev api.Event) {
	r.pump.push(ev)
}

func (r *BusRelay) onReadable(int) {
	if r.conn == nil {
		return
	}
	if err := r.conn.Dispatch(); err != nil {
		if errors.Is(err, api.ErrTransportClosed) {
			r.teardown(err)
			return
		}
		r.log.Warn().Err(err).Msg("bus dispatch failed")
	}
}

func (r *BusRelay) onEvent(channel string, body []byte) {
	value, text, err := payload.Extract(body, r.cfg.PayloadField)
	if err != nil {
		r.deps.Metrics.Add("bus.dropped", 1)
		r.log.Debug().Err(err).Str("channel", channel).Msg("bus event discarded")
		return
	}
	r.deps.Metrics.Add("bus.received", 1)
	r.log.Debug().Str("channel", channel).RawJSON("msg", text).Msg("bus event")
	if r.peer == nil {
		r.log.Warn().Msg("bus event with no peer relay")
		return
	}
	r.peer.Enqueue(api.NewDataString(value))
}

// drain publishes at most one queued record per firing.
func (r *BusRelay) drain(*reactor.Timer) {
	ev, ok := r.pump.queue.TryPop()
	if !ok {
		return
	}
	switch e := ev.(type) {
	case api.Data:
		r.publish(e)
	default:
		r.log.Warn().Stringer("kind", ev.Kind()).Msg("unsupported event dropped")
	}
	r.pump.stepTimer()
}

func (r *BusRelay) publish(d api.Data) {
	if r.conn == nil {
		r.deps.Metrics.Add("bus.dropped", 1)
		r.log.Debug().Str("data", d.String()).Msg("bus down, record dropped")
		return
	}
	body, err := payload.Encode(map[string]string{r.cfg.PayloadField: d.String()})
	if err != nil {
		r.deps.Metrics.Add("bus.publish_errors", 1)
		r.log.Warn().Err(err).Msg("bus encode failed")
		return
	}
	if err := r.conn.Publish(r.cfg.PublishChannel, body); err != nil {
		r.deps.Metrics.Add("bus.publish_errors", 1)
		r.log.Warn().Err(err).Msg("bus publish failed")
		if errors.Is(err, api.ErrTransportClosed) {
			r.teardown(err)
		}
		return
	}
	r.deps.Metrics.Add("bus.published", 1)
	r.log.Debug().Str("data", d.String()).Msg("bus send")
}

func (r *BusRelay) teardown(cause error) {
	if r.conn == nil {
		return
	}
	fd := r.conn.Fd()
	if err := r.deps.Poller.Unregister(fd); err != nil {
		r.log.Debug().Err(err).Int("fd", fd).Msg("bus unregister")
	}
	_ = r.conn.Close()
	r.conn = nil
	r.connected.Store(false)
	r.deps.Metrics.Add("bus.teardowns", 1)

	ev := r.log.Warn().Err(cause).Int("fd", fd)
	if d, ok := r.redial.arm(); ok {
		ev.Dur("retry_in", d).Msg("bus connection lost")
		return
	}
	ev.Msg("bus connection lost, relay inert")
}

func (r *BusRelay) onRedial(*reactor.Timer) {
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
		r.log.Debug().Err(err).Dur("retry_in", d).Msg("bus reconnect failed")
		return
	}
	r.redial.reset()
	r.deps.Metrics.Add("bus.reconnects", 1)
}

// Shutdown releases the connection and drops whatever is still queued.
func (r *BusRelay) Shutdown() error {
	r.redial.reset()
	lost := r.pump.stop()
	if len(lost) > 0 {
		r.log.Warn().Int("records", len(lost)).Msg("bus relay stopped with queued records")
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
