// File: payload/payload.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Structured payloads carried on the bus. Bodies are CBOR maps; the
// relay renders them as JSON text for logging and field extraction.

package payload

import (
	"encoding/json"
	"fmt"

	"github.com/momentics/busrelay/api"
	"github.com/momentics/busrelay/internal/codec"
)

// DefaultField is the field that carries the relayed text.
const DefaultField = "PKT"

// Encode builds a bus body from named text fields.
func Encode(fields map[string]string) ([]byte, error) {
	body, err := codec.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return body, nil
}

// ToJSON renders a CBOR map body as JSON text.
func ToJSON(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", api.ErrMalformedPayload)
	}
	var fields map[string]any
	if err := codec.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrMalformedPayload, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body is not a map", api.ErrMalformedPayload)
	}
	text, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrMalformedPayload, err)
	}
	return text, nil
}

// Field decodes JSON object text and returns the string stored under key.
func Field(text []byte, key string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(text, &fields); err != nil {
		return "", fmt.Errorf("%w: %v", api.ErrMalformedPayload, err)
	}
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", api.ErrFieldNotFound, key)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", api.ErrFieldNotFound, key)
	}
	return value, nil
}

// Extract is ToJSON followed by Field. It also returns the JSON text so
// callers can log what they received.
func Extract(body []byte, key string) (value string, text []byte, err error) {
	text, err = ToJSON(body)
	if err != nil {
		return "", nil, err
	}
	value, err = Field(text, key)
	return value, text, err
}
