package control

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistry_Counters(t *testing.T) {
	mr := NewMetricsRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mr.Add("socket.sent", 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1000), mr.Counter("socket.sent"))
	assert.Equal(t, int64(0), mr.Counter("missing"))
	assert.False(t, mr.Updated().IsZero())
}

func TestMetricsRegistry_SnapshotIsCopy(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set("state", "up")
	snap := mr.GetSnapshot()
	snap["state"] = "changed"
	assert.Equal(t, "up", mr.GetSnapshot()["state"])
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	depth := 3
	dp.RegisterProbe("queue", func() any { return depth })
	dp.RegisterProbe("gone", func() any { return nil })
	dp.UnregisterProbe("gone")

	assert.Equal(t, map[string]any{"queue": 3}, dp.DumpState())
	depth = 5
	assert.Equal(t, 5, dp.DumpState()["queue"])
}

func TestConfigStore(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{"socket.addr": "10.0.0.1:19000", "bus.subscribe": "DS.GREENPOWER"})
	cs.SetConfig(map[string]any{"socket.addr": "10.0.0.2:19000"})

	v, ok := cs.Get("socket.addr")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.2:19000", v)
	assert.Equal(t, []string{"bus.subscribe", "socket.addr"}, cs.Keys())

	snap := cs.GetSnapshot()
	snap["bus.subscribe"] = "x"
	v, _ = cs.Get("bus.subscribe")
	assert.Equal(t, "DS.GREENPOWER", v)
}

func TestRegisterPlatformProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	state := dp.DumpState()
	assert.Contains(t, state, "process.pid")
	assert.Greater(t, state["process.goroutines"], 0)
	assert.Greater(t, state["platform.cpus"], 0)
}
