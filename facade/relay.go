// File: facade/relay.go
// Unified facade for the bus relay process.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Relay aggregates the reactor (poller, timers, loop), both relays and
// the control layer behind one type built from an immutable config. The
// caller starts it, runs the loop on one goroutine, and shuts it down
// after the loop returns.

package facade

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/busrelay/affinity"
	"github.com/momentics/busrelay/api"
	"github.com/momentics/busrelay/bus"
	"github.com/momentics/busrelay/config"
	"github.com/momentics/busrelay/control"
	"github.com/momentics/busrelay/reactor"
	"github.com/momentics/busrelay/relay"
	"github.com/momentics/busrelay/transport/tcp"
)

// Options replace collaborators; zero values select the real ones.
type Options struct {
	Log          zerolog.Logger
	Poller       api.Poller
	Clock        reactor.Clock
	BusDialer    api.BusDialer
	StreamDialer api.StreamDialer
}

// Relay is the main facade type.
type Relay struct {
	cfg *config.Config
	log zerolog.Logger

	poller   api.Poller
	timers   *reactor.Timers
	loop     *reactor.Loop
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	settings *control.ConfigStore

	bus       *relay.BusRelay
	socket    *relay.SocketRelay
	heartbeat *reactor.Timer

	mu      sync.Mutex
	started bool
	closed  bool
}

var _ api.GracefulShutdown = (*Relay)(nil)

// New builds every component from cfg. Nothing connects until Start.
func New(cfg *config.Config, opts Options) (*Relay, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, api.Wrap(api.ErrCodeStartup, "invalid config", err)
	}

	r := &Relay{
		cfg:      cfg,
		log:      opts.Log,
		metrics:  control.NewMetricsRegistry(),
		probes:   control.NewDebugProbes(),
		settings: control.NewConfigStore(),
	}

	r.poller = opts.Poller
	if r.poller == nil {
		p, err := reactor.NewPoller(r.log.With().Str("component", "poller").Logger())
		if err != nil {
			return nil, api.Wrap(api.ErrCodePoller, "poller init", err)
		}
		r.poller = p
	}
	clock := opts.Clock
	if clock == nil {
		clock = reactor.SystemClock()
	}
	r.timers = reactor.NewTimers(clock)
	r.loop = reactor.NewLoop(r.timers, r.poller, r.log.With().Str("component", "reactor").Logger())

	busDial := opts.BusDialer
	if busDial == nil {
		busDial = bus.Dialer(cfg.Bus.Socket)
	}
	streamDial := opts.StreamDialer
	if streamDial == nil {
		streamDial = tcp.Dialer{
			Host:        cfg.Socket.Host,
			Port:        cfg.Socket.Port,
			Retries:     cfg.Socket.Retries,
			RetryDelay:  cfg.Socket.RetryDelay.Std(),
			DialTimeout: cfg.Socket.DialTimeout.Std(),
			Log:         r.log.With().Str("component", "tcp").Logger(),
		}.StreamDialer()
	}

	deps := relay.Deps{
		Scheduler: r.timers,
		Poller:    r.poller,
		Log:       r.log,
		Metrics:   r.metrics,
		Probes:    r.probes,
	}
	r.bus = relay.NewBusRelay(relay.BusConfig{
		SubscribeChannel: cfg.Bus.Subscribe,
		PublishChannel:   cfg.Bus.Publish,
		PayloadField:     cfg.Bus.PayloadField,
		StepInterval:     cfg.Bus.StepInterval.Std(),
		Reconnect:        cfg.Bus.Reconnect,
		DialTimeout:      cfg.Bus.DialTimeout.Std(),
		Backoff:          cfg.Bus.Backoff.New(),
	}, busDial, deps)
	r.socket = relay.NewSocketRelay(relay.SocketConfig{
		ReadBufferSize: cfg.Socket.ReadBufferSize,
		IOTimeout:      cfg.Socket.IOTimeout.Std(),
		StepInterval:   cfg.Socket.StepInterval.Std(),
		WriteDelimiter: cfg.Socket.WriteDelimiter,
		SendTerminator: cfg.Socket.SendTerminator,
		Reconnect:      cfg.Socket.Reconnect,
		DialTimeout:    cfg.Socket.DialTimeout.Std(),
		Backoff:        cfg.Socket.Backoff.New(),
	}, streamDial, deps)
	r.bus.SetPeer(r.socket)
	r.socket.SetPeer(r.bus)

	r.heartbeat = reactor.NewTimer(r.onHeartbeat)
	r.probes.RegisterProbe("reactor.timers", func() any { return r.timers.Len() })
	r.probes.RegisterProbe("reactor.iterations", func() any { return r.loop.Iterations() })
	control.RegisterPlatformProbes(r.probes)

	r.settings.SetConfig(map[string]any{
		"bus.socket":           cfg.Bus.Socket,
		"bus.subscribe":        cfg.Bus.Subscribe,
		"bus.publish":          cfg.Bus.Publish,
		"bus.payload_field":    cfg.Bus.PayloadField,
		"bus.reconnect":        cfg.Bus.Reconnect,
		"socket.addr":          cfg.Socket.Addr(),
		"socket.reconnect":     cfg.Socket.Reconnect,
		"socket.io_timeout":    cfg.Socket.IOTimeout.Std().String(),
		"socket.step_interval": cfg.Socket.StepInterval.Std().String(),
		"heartbeat":            cfg.Heartbeat.Std().String(),
		"reactor.cpu":          cfg.Reactor.CPU,
	})
	return r, nil
}

// Start connects both relays and arms the heartbeat. It must run before
// Run, or on the loop goroutine. If the socket relay cannot connect the
// bus relay is released again, so Start may be retried.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return api.ErrTransportClosed
	}
	if r.started {
		return api.ErrAlreadyStarted
	}
	if err := r.bus.Start(ctx); err != nil {
		return err
	}
	if err := r.socket.Start(ctx); err != nil {
		if serr := r.bus.Shutdown(); serr != nil {
			r.log.Debug().Err(serr).Msg("bus release after failed start")
		}
		return err
	}
	if hb := r.cfg.Heartbeat.Std(); hb > 0 {
		r.timers.Schedule(r.heartbeat, hb)
	}
	r.started = true

	fields := r.log.Info()
	for _, k := range r.settings.Keys() {
		v, _ := r.settings.Get(k)
		fields = fields.Interface(k, v)
	}
	fields.Msg("relay started")
	return nil
}

// Run drives the reactor until ctx is canceled. With reactor.cpu set the
// loop runs on its own OS thread pinned to that CPU.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return fmt.Errorf("run: %w", api.ErrNotConnected)
	}
	cpu := r.cfg.Reactor.CPU
	if cpu < 0 {
		return r.loop.Run(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		// never unlocked: the pinned thread exits with this goroutine
		runtime.LockOSThread()
		if err := affinity.SetAffinity(cpu); err != nil {
			r.log.Warn().Err(err).Int("cpu", cpu).Msg("reactor not pinned")
		} else {
			r.log.Info().Int("cpu", cpu).Msg("reactor pinned")
		}
		errc <- r.loop.Run(ctx)
	}()
	return <-errc
}

func (r *Relay) onHeartbeat(t *reactor.Timer) {
	r.log.Info().
		Interface("metrics", r.metrics.GetSnapshot()).
		Interface("state", r.probes.DumpState()).
		Msg("heartbeat")
	r.timers.Schedule(t, r.cfg.Heartbeat.Std())
}

// Shutdown releases both relays and the poller. Call it after Run has
// returned. Records still queued are dropped.
func (r *Relay) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.started = false
	r.timers.Cancel(r.heartbeat)

	errs := []error{r.socket.Shutdown(), r.bus.Shutdown(), r.poller.Close()}
	r.log.Info().Interface("metrics", r.metrics.GetSnapshot()).Msg("relay stopped")
	return errors.Join(errs...)
}

// Metrics returns the runtime counters.
func (r *Relay) Metrics() *control.MetricsRegistry { return r.metrics }

// Probes returns the debug probes.
func (r *Relay) Probes() *control.DebugProbes { return r.probes }

// Settings returns the effective configuration.
func (r *Relay) Settings() *control.ConfigStore { return r.settings }

// Loop returns the reactor loop.
func (r *Relay) Loop() *reactor.Loop { return r.loop }

// BusRelay returns the bus side.
func (r *Relay) BusRelay() *relay.BusRelay { return r.bus }

// SocketRelay returns the socket side.
func (r *Relay) SocketRelay() *relay.SocketRelay { return r.socket }
