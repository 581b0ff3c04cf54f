// Package relay holds the two halves of the bus <-> TCP bridge.
//
// Each relay owns one transport, one transfer queue and one drain timer.
// A relay's inbound callback never writes to its own transport: it wraps
// what it read in an api.Event and hands it to the opposite relay's
// Enqueue. The drain timer then pops at most one record per firing and
// reschedules itself while work remains, so a burst is spread across
// reactor turns instead of being processed recursively.
//
// All methods except Enqueue's queue push run on the reactor goroutine.
package relay
