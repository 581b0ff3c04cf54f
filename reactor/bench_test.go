// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for the timer registry.

package reactor

import (
	"testing"
	"time"
)

// BenchmarkTimersStep measures the cancel+schedule pair every enqueue performs.
func BenchmarkTimersStep(b *testing.B) {
	ts := NewTimers(SystemClock())
	t := NewTimer(nil)
	for i := 0; i < b.N; i++ {
		ts.Cancel(t)
		ts.Schedule(t, 10*time.Millisecond)
	}
}

// BenchmarkTimersAdvance measures firing a batch of due timers.
func BenchmarkTimersAdvance(b *testing.B) {
	ts := NewTimers(SystemClock())
	timers := make([]*Timer, 64)
	for i := range timers {
		timers[i] = NewTimer(func(*Timer) {})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, t := range timers {
			ts.Schedule(t, 0)
		}
		ts.Advance()
	}
}
