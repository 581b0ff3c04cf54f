package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/momentics/busrelay/api"
)

func TestTransportInterfaceCompliance(t *testing.T) {
	var _ api.StreamConn = (*mockStream)(nil)
	var _ api.BusConn = (*mockBus)(nil)
	var _ api.StreamDialer = func(context.Context) (api.StreamConn, error) { return &mockStream{}, nil }
	var _ api.BusDialer = func(context.Context) (api.BusConn, error) { return &mockBus{}, nil }
}

func TestPollerInterfaceCompliance(t *testing.T) {
	var _ api.Poller = (*mockPoller)(nil)
}

// mockStream implements api.StreamConn for the compliance check.
type mockStream struct{}

func (*mockStream) Fd() int                                     { return 3 }
func (*mockStream) Send(b []byte, _ time.Duration) (int, error) { return len(b), nil }
func (*mockStream) Recv([]byte, time.Duration) (int, error)     { return 0, nil }
func (*mockStream) Close() error                                { return nil }

type mockBus struct{}

func (*mockBus) Fd() int                                { return 4 }
func (*mockBus) Subscribe(string, api.BusHandler) error { return nil }
func (*mockBus) Publish(string, []byte) error           { return nil }
func (*mockBus) Dispatch() error                        { return nil }
func (*mockBus) Close() error                           { return nil }

type mockPoller struct{}

func (*mockPoller) Register(int, api.FDCallback) error { return nil }
func (*mockPoller) Unregister(int) error               { return nil }
func (*mockPoller) Poll(int) error                     { return nil }
func (*mockPoller) Wakeup() error                      { return nil }
func (*mockPoller) Close() error                       { return nil }
