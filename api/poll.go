// Package api
// Author: momentics
//
// Readiness poller contract used by the reactor loop.

package api

// FDCallback is invoked on the reactor goroutine when fd becomes readable.
// Hang-up and error conditions are reported as readable so the owner can
// observe EOF on its next read.
type FDCallback func(fd int)

// Poller waits for registered descriptors to become readable.
type Poller interface {
	// Register associates cb with fd. Registering an fd twice replaces its callback.
	Register(fd int, cb FDCallback) error

	// Unregister removes fd. Unknown descriptors are ignored.
	Unregister(fd int) error

	// Poll blocks until a registered descriptor is readable or timeoutMs
	// elapses, then invokes callbacks for every ready descriptor.
	// A negative timeout blocks until readiness or Wakeup.
	Poll(timeoutMs int) error

	// Wakeup interrupts a blocked Poll. Safe to call from any goroutine.
	Wakeup() error

	// Close releases the polling primitive.
	Close() error
}
