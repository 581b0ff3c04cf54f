// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for relay handoff.

package relay

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/momentics/busrelay/api"
	"github.com/momentics/busrelay/fake"
	"github.com/momentics/busrelay/reactor"
)

// BenchmarkSocketRelayEnqueueDrain measures one record through the
// socket relay's queue, drain timer and send.
func BenchmarkSocketRelayEnqueueDrain(b *testing.B) {
	clock := fake.NewClock()
	timers := reactor.NewTimers(clock)
	streams := []*fake.Stream{fake.NewStream(3)}
	r := NewSocketRelay(SocketConfig{}, fake.NewStreamDialer(streams...).Dial, Deps{
		Scheduler: timers,
		Poller:    fake.NewPoller(),
		Log:       zerolog.Nop(),
	})
	if err := r.Start(context.Background()); err != nil {
		b.Fatal(err)
	}
	ev := api.NewDataString("bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Enqueue(ev)
		clock.Advance(DefaultStepInterval)
		timers.Advance()
	}
}
