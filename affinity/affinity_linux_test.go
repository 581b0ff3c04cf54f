//go:build linux

package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/busrelay/api"
)

func TestSetAffinity_PinsThread(t *testing.T) {
	var allowed unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &allowed))
	cpu := -1
	for i := 0; i < 1024; i++ {
		if allowed.IsSet(i) {
			cpu = i
			break
		}
	}
	require.GreaterOrEqual(t, cpu, 0)

	done := make(chan unix.CPUSet, 1)
	go func() {
		// left locked so the pinned thread exits with the goroutine
		runtime.LockOSThread()
		var got unix.CPUSet
		if err := SetAffinity(cpu); err == nil {
			_ = unix.SchedGetaffinity(0, &got)
		}
		done <- got
	}()
	got := <-done
	assert.Equal(t, 1, got.Count())
	assert.True(t, got.IsSet(cpu))
}

func TestSetAffinity_Negative(t *testing.T) {
	assert.ErrorIs(t, SetAffinity(-1), api.ErrInvalidArgument)
}
