// File: internal/concurrency/backoff_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		b := NewBackoff(0, 0, 0, -1)
		assert.Equal(t, time.Second, b.initial)
		assert.Equal(t, 5*time.Minute, b.max)
		assert.Equal(t, 2.0, b.factor)
		assert.Equal(t, 0.1, b.jitter)
	})

	t.Run("ExponentialProgression", func(t *testing.T) {
		b := NewBackoff(100*time.Millisecond, time.Second, 2.0, 0)
		want := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			800 * time.Millisecond,
			time.Second,
			time.Second,
		}
		for i, w := range want {
			assert.Equal(t, w, b.Next(), "attempt %d", i+1)
		}
		assert.Equal(t, len(want), b.Attempts())
	})

	t.Run("JitterBounds", func(t *testing.T) {
		b := NewBackoff(time.Second, 5*time.Second, 2.0, 0.5)
		for i := 0; i < 20; i++ {
			b.Reset()
			d := b.Next()
			assert.GreaterOrEqual(t, d, 500*time.Millisecond)
			assert.LessOrEqual(t, d, 1500*time.Millisecond)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff(100*time.Millisecond, time.Second, 2.0, 0)
		b.Next()
		b.Next()
		b.Reset()
		assert.Equal(t, 0, b.Attempts())
		assert.Equal(t, 100*time.Millisecond, b.Next())
	})
}
