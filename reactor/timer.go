// File: reactor/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One-shot timer registry ordered by deadline, then insertion.

package reactor

import (
	"container/heap"
	"time"
)

// NoTimers is returned by Advance when nothing is pending.
const NoTimers = -1

// Timer is a one-shot callback. After it fires it is no longer pending;
// the callback may schedule it again.
type Timer struct {
	deadline time.Time
	callback func(*Timer)
	owner    *Timers
	index    int // position in owner heap, -1 when idle
	seq      uint64
}

// NewTimer returns an idle timer that calls cb when it fires.
func NewTimer(cb func(*Timer)) *Timer {
	return &Timer{callback: cb, index: -1}
}

// Pending reports whether the timer is scheduled.
func (t *Timer) Pending() bool { return t.index >= 0 }

// Deadline returns the time the timer is (or was last) due.
func (t *Timer) Deadline() time.Time { return t.deadline }

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Timers is the registry of pending timers. It is not safe for
// concurrent use; only the reactor goroutine touches it.
type Timers struct {
	clock Clock
	queue timerHeap
	seq   uint64
}

// NewTimers creates an empty registry. A nil clock means SystemClock.
func NewTimers(clock Clock) *Timers {
	if clock == nil {
		clock = SystemClock()
	}
	return &Timers{clock: clock}
}

// Len returns the number of pending timers.
func (ts *Timers) Len() int { return len(ts.queue) }

// Schedule arms t to fire delay from now. A pending timer is moved to
// the new deadline rather than added twice.
func (ts *Timers) Schedule(t *Timer, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	if t.owner != nil && t.owner != ts {
		t.owner.Cancel(t)
	}
	ts.seq++
	t.seq = ts.seq
	t.deadline = ts.clock.Now().Add(delay)
	t.owner = ts
	if t.index >= 0 {
		heap.Fix(&ts.queue, t.index)
		return
	}
	heap.Push(&ts.queue, t)
}

// Cancel removes t if it is pending here.
func (ts *Timers) Cancel(t *Timer) {
	if t.owner != ts || t.index < 0 {
		return
	}
	heap.Remove(&ts.queue, t.index)
	t.owner = nil
}

// Advance fires every timer whose deadline has passed, earliest first,
// and returns the milliseconds until the next deadline (rounded up) or
// NoTimers. Each timer leaves the registry before its callback runs.
// Timers scheduled by a callback wait for the next Advance even if they
// are already due.
func (ts *Timers) Advance() int {
	now := ts.clock.Now()
	limit := ts.seq
	for len(ts.queue) > 0 {
		t := ts.queue[0]
		if t.deadline.After(now) || t.seq > limit {
			break
		}
		heap.Pop(&ts.queue)
		t.owner = nil
		if t.callback != nil {
			t.callback(t)
		}
	}
	return ts.next()
}

func (ts *Timers) next() int {
	if len(ts.queue) == 0 {
		return NoTimers
	}
	d := ts.queue[0].deadline.Sub(ts.clock.Now())
	if d <= 0 {
		return 0
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
