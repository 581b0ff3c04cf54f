// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Process-level debug probes.

package control

import (
	"os"
	"runtime"
)

// RegisterPlatformProbes adds process probes to dp.
func RegisterPlatformProbes(dp *DebugProbes) {
	pid := os.Getpid()
	dp.RegisterProbe("process.pid", func() any { return pid })
	dp.RegisterProbe("process.goroutines", func() any { return runtime.NumGoroutine() })
	dp.RegisterProbe("platform.cpus", func() any { return runtime.NumCPU() })
}
