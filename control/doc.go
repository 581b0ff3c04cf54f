// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for the relay.
//
// Provides concurrent-safe state handling primitives including:
//   - Counters and gauges updated by the relays
//   - Debug probes reporting queue depth and connection state
//
// Both are snapshotted by the periodic heartbeat.
package control
