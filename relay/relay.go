// File: relay/relay.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/busrelay/api"
	"github.com/momentics/busrelay/control"
	"github.com/momentics/busrelay/internal/concurrency"
	"github.com/momentics/busrelay/reactor"
)

// DefaultStepInterval is the debounce delay between drain firings.
const DefaultStepInterval = 10 * time.Millisecond

// Scheduler is the part of reactor.Timers the relays use.
type Scheduler interface {
	Schedule(t *reactor.Timer, delay time.Duration)
	Cancel(t *reactor.Timer)
}

// Sink accepts records produced by the opposite relay.
type Sink interface {
	Enqueue(ev api.Event)
}

// Deps are the collaborators shared by both relays.
type Deps struct {
	Scheduler Scheduler
	Poller    api.Poller
	Log       zerolog.Logger
	Metrics   *control.MetricsRegistry
	Probes    *control.DebugProbes
}

func (d Deps) withDefaults() Deps {
	if d.Metrics == nil {
		d.Metrics = control.NewMetricsRegistry()
	}
	if d.Probes == nil {
		d.Probes = control.NewDebugProbes()
	}
	return d
}

// pump is the queue plus self-rescheduling drain timer each relay owns.
type pump struct {
	queue *concurrency.TransferQueue[api.Event]
	timer *reactor.Timer
	sched Scheduler
	step  time.Duration
}

func newPump(sched Scheduler, step time.Duration, drain func(*reactor.Timer)) *pump {
	if step <= 0 {
		step = DefaultStepInterval
	}
	return &pump{
		queue: concurrency.NewTransferQueue[api.Event](),
		timer: reactor.NewTimer(drain),
		sched: sched,
		step:  step,
	}
}

func (p *pump) push(ev api.Event) {
	p.queue.Push(ev)
	p.stepTimer()
}

// stepTimer cancels any pending drain and arms a fresh one.
func (p *pump) stepTimer() {
	p.sched.Cancel(p.timer)
	p.sched.Schedule(p.timer, p.step)
}

func (p *pump) stop() []api.Event {
	p.sched.Cancel(p.timer)
	return p.queue.Drain()
}

// redialer re-establishes a lost transport from a reactor timer.
type redialer struct {
	enabled bool
	timeout time.Duration
	backoff *concurrency.Backoff
	timer   *reactor.Timer
	sched   Scheduler
}

func newRedialer(enabled bool, timeout time.Duration, backoff *concurrency.Backoff, sched Scheduler, attempt func(*reactor.Timer)) *redialer {
	if backoff == nil {
		backoff = concurrency.NewBackoff(time.Second, time.Minute, 2.0, 0.1)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &redialer{
		enabled: enabled,
		timeout: timeout,
		backoff: backoff,
		timer:   reactor.NewTimer(attempt),
		sched:   sched,
	}
}

// arm schedules the next attempt and returns its delay, or false when
// reconnection is disabled.
func (r *redialer) arm() (time.Duration, bool) {
	if !r.enabled {
		return 0, false
	}
	d := r.backoff.Next()
	r.sched.Schedule(r.timer, d)
	return d, true
}

func (r *redialer) reset() {
	r.sched.Cancel(r.timer)
	r.backoff.Reset()
}

func (r *redialer) dialContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, r.timeout)
}
