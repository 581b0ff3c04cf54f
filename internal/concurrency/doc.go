// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives shared by the relays: the multi-producer,
// single-consumer transfer queue that hands event records from one
// relay to the other, and the exponential backoff used when a transport
// has to be redialed.
package concurrency
