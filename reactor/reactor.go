// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Reactor loop: advance timers, then poll descriptors until the next
// deadline. Every timer and readiness callback runs on the Run goroutine.

package reactor

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/busrelay/api"
)

// Loop ties a Timers registry to a Poller.
type Loop struct {
	timers *Timers
	poller api.Poller
	log    zerolog.Logger

	running    atomic.Bool
	iterations atomic.Uint64
}

// NewLoop creates a loop over timers and poller.
func NewLoop(timers *Timers, poller api.Poller, log zerolog.Logger) *Loop {
	return &Loop{timers: timers, poller: poller, log: log}
}

// Timers returns the loop's timer registry.
func (l *Loop) Timers() *Timers { return l.timers }

// Poller returns the loop's readiness poller.
func (l *Loop) Poller() api.Poller { return l.poller }

// Iterations returns the number of completed loop turns.
func (l *Loop) Iterations() uint64 { return l.iterations.Load() }

// Run drives the loop until ctx is canceled. Poll failures are logged
// and the loop keeps going.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return api.ErrAlreadyStarted
	}
	defer l.running.Store(false)

	stop := context.AfterFunc(ctx, func() {
		if err := l.poller.Wakeup(); err != nil {
			l.log.Warn().Err(err).Msg("reactor wakeup failed")
		}
	})
	defer stop()

	l.log.Debug().Msg("reactor loop started")
	for ctx.Err() == nil {
		l.RunOnce(-1)
	}
	l.log.Debug().Msg("reactor loop stopped")
	return nil
}

// RunOnce performs a single turn. maxWaitMs >= 0 caps the poll timeout.
func (l *Loop) RunOnce(maxWaitMs int) {
	wait := l.timers.Advance()
	if maxWaitMs >= 0 && (wait < 0 || wait > maxWaitMs) {
		wait = maxWaitMs
	}
	if err := l.poller.Poll(wait); err != nil {
		l.log.Warn().Err(err).Int("timeout_ms", wait).Msg("poll error")
	}
	l.iterations.Add(1)
}
