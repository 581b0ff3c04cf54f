//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/momentics/busrelay/api"
)

// NewPoller returns an error for unsupported platforms.
func NewPoller(zerolog.Logger) (api.Poller, error) {
	return nil, fmt.Errorf("reactor: poller: %w", api.ErrNotSupported)
}
