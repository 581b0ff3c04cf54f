// Package bus is a small local publish/subscribe bus over a unix domain
// socket. Conn is the client side used by the relay; Broker is the hub
// every client connects to.
//
// The wire is a stream of CBOR-encoded Frame values. A client sends
// "sub" to start receiving a channel and "pub" to publish; the broker
// forwards each publication to subscribers as an "evt" frame.
package bus
