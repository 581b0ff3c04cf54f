// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sort"
	"sync"
	"time"

	"github.com/momentics/busrelay/api"
)

// Poller is a scripted api.Poller. Descriptors become ready only when a
// test calls SetReady; Poll then invokes their callbacks in fd order.
type Poller struct {
	mu        sync.Mutex
	callbacks map[int]api.FDCallback
	ready     map[int]bool
	timeouts  []int
	wakeups   int
	closed    bool

	// PollErr, when set, is returned by every Poll without dispatching.
	PollErr error
}

// NewPoller creates an empty fake poller.
func NewPoller() *Poller {
	return &Poller{
		callbacks: make(map[int]api.FDCallback),
		ready:     make(map[int]bool),
	}
}

func (p *Poller) Register(fd int, cb api.FDCallback) error {
	if fd < 0 || cb == nil {
		return api.ErrInvalidArgument
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks[fd] = cb
	return nil
}

func (p *Poller) Unregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.callbacks, fd)
	delete(p.ready, fd)
	return nil
}

// Registered reports whether fd currently has a callback.
func (p *Poller) Registered(fd int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.callbacks[fd]
	return ok
}

// SetReady marks fd readable for the next Poll.
func (p *Poller) SetReady(fd int) {
	p.mu.Lock()
	p.ready[fd] = true
	p.mu.Unlock()
}

// Fire invokes fd's callback immediately. It returns false when fd is
// not registered.
func (p *Poller) Fire(fd int) bool {
	p.mu.Lock()
	cb, ok := p.callbacks[fd]
	p.mu.Unlock()
	if ok {
		cb(fd)
	}
	return ok
}

func (p *Poller) Poll(timeoutMs int) error {
	p.mu.Lock()
	p.timeouts = append(p.timeouts, timeoutMs)
	if p.PollErr != nil {
		err := p.PollErr
		p.mu.Unlock()
		return err
	}
	fds := make([]int, 0, len(p.ready))
	for fd := range p.ready {
		fds = append(fds, fd)
	}
	p.ready = make(map[int]bool)
	p.mu.Unlock()

	sort.Ints(fds)
	for _, fd := range fds {
		p.Fire(fd)
	}
	return nil
}

// Timeouts returns the timeout passed to every Poll so far.
func (p *Poller) Timeouts() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.timeouts...)
}

func (p *Poller) Wakeup() error {
	p.mu.Lock()
	p.wakeups++
	p.mu.Unlock()
	return nil
}

// Wakeups returns how many times Wakeup was called.
func (p *Poller) Wakeups() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wakeups
}

func (p *Poller) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Clock is a manually advanced clock for timer tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Unix(1_700_000_000, 0)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
