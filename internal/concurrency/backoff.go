// File: internal/concurrency/backoff.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff implements an exponential backoff strategy with jitter.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	factor  float64
	jitter  float64

	mu       sync.Mutex
	current  time.Duration
	attempts int
	rnd      *rand.Rand
}

// NewBackoff creates a backoff. Out-of-range arguments fall back to
// 1s initial, 5m max, factor 2 and 10% jitter.
func NewBackoff(initial, max time.Duration, factor, jitter float64) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = 5 * time.Minute
	}
	if max < initial {
		max = initial
	}
	if factor <= 1 {
		factor = 2.0
	}
	if jitter < 0 || jitter > 1 {
		jitter = 0.1
	}
	return &Backoff{
		initial: initial,
		max:     max,
		factor:  factor,
		jitter:  jitter,
		current: initial,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next wait and advances the progression.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.current
	if b.jitter > 0 {
		span := float64(d) * b.jitter
		d = time.Duration(float64(d) + (b.rnd.Float64()*2-1)*span)
	}

	b.attempts++
	b.current = time.Duration(float64(b.current) * b.factor)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset returns the backoff to its initial state.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.current = b.initial
	b.attempts = 0
	b.mu.Unlock()
}

// Attempts returns the number of Next calls since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
