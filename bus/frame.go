// File: bus/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bus

// Frame operations.
const (
	OpSubscribe = "sub"
	OpPublish   = "pub"
	OpEvent     = "evt"
)

// DefaultSocket is where busd listens unless told otherwise.
const DefaultSocket = "/var/run/busd.sock"

// Frame is one message on the bus wire.
type Frame struct {
	Op      string `cbor:"op"`
	Channel string `cbor:"ch"`
	Body    []byte `cbor:"body,omitempty"`
}
