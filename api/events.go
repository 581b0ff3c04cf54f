// File: api/events.go
// Package api defines the event records carried between relays.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventKind tags the variant of an Event.
type EventKind int

const (
	// KindData carries an opaque text payload.
	KindData EventKind = iota
)

func (k EventKind) String() string {
	switch k {
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Event is a record handed from one relay to the other through a
// transfer queue. The set of variants is closed; consumers switch on the
// concrete type.
type Event interface {
	Kind() EventKind
	sealed()
}

// Data is the payload variant. The stored form is NUL-terminated so the
// record length matches what C-side peers of the bus expect.
type Data struct {
	raw []byte
}

// NewData copies p into a new NUL-terminated record.
func NewData(p []byte) Data {
	raw := make([]byte, len(p)+1)
	copy(raw, p)
	return Data{raw: raw}
}

// NewDataString is NewData for text payloads.
func NewDataString(s string) Data {
	return NewData([]byte(s))
}

func (Data) Kind() EventKind { return KindData }
func (Data) sealed()         {}

// Payload returns the bytes without the terminator. The slice must not
// be modified.
func (d Data) Payload() []byte {
	if len(d.raw) == 0 {
		return nil
	}
	return d.raw[:len(d.raw)-1]
}

// String returns the payload as text.
func (d Data) String() string { return string(d.Payload()) }

// Raw returns the stored, NUL-terminated bytes.
func (d Data) Raw() []byte { return d.raw }

// Len reports the stored length, terminator included.
func (d Data) Len() int { return len(d.raw) }
