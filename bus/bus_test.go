// File: bus/bus_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/busrelay/api"
)

func startBroker(t *testing.T) *Broker {
	t.Helper()
	b, err := Listen(filepath.Join(t.TempDir(), "bus.sock"), zerolog.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return b
}

func dial(t *testing.T, b *Broker) *Conn {
	t.Helper()
	c, err := Dial(context.Background(), b.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type received struct {
	channel string
	body    string
}

func TestBroker_FanOut(t *testing.T) {
	b := startBroker(t)
	pub := dial(t, b)
	subA := dial(t, b)
	subB := dial(t, b)

	var gotA, gotB []received
	require.NoError(t, subA.Subscribe("DS.GATEWAY", func(ch string, body []byte) {
		gotA = append(gotA, received{ch, string(body)})
	}))
	require.NoError(t, subB.Subscribe("DS.GATEWAY", func(ch string, body []byte) {
		gotB = append(gotB, received{ch, string(body)})
	}))
	require.Eventually(t, func() bool { return b.Subscribers("DS.GATEWAY") == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, pub.Publish("DS.GATEWAY", []byte("one")))
	require.NoError(t, pub.Publish("OTHER", []byte("ignored")))
	require.NoError(t, pub.Publish("DS.GATEWAY", []byte("two")))

	want := []received{{"DS.GATEWAY", "one"}, {"DS.GATEWAY", "two"}}
	require.Eventually(t, func() bool {
		_ = subA.Dispatch()
		_ = subB.Dispatch()
		return len(gotA) == 2 && len(gotB) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, gotA)
	assert.Equal(t, want, gotB)
}

func TestConn_DispatchWithoutDataIsQuiet(t *testing.T) {
	b := startBroker(t)
	c := dial(t, b)
	assert.NoError(t, c.Dispatch())
	assert.GreaterOrEqual(t, c.Fd(), 0)
}

func TestConn_BrokerGoneIsTransportClosed(t *testing.T) {
	b := startBroker(t)
	c := dial(t, b)
	require.NoError(t, c.Subscribe("X", func(string, []byte) {}))
	require.Eventually(t, func() bool { return b.Subscribers("X") == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, b.Close())

	require.Eventually(t, func() bool {
		return c.Dispatch() != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Dispatch(), api.ErrTransportClosed)
}

func TestConn_ClosedRejectsWrites(t *testing.T) {
	b := startBroker(t)
	c := dial(t, b)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Publish("X", nil), api.ErrTransportClosed)
	assert.ErrorIs(t, c.Dispatch(), api.ErrTransportClosed)
}

func TestConn_InvalidArguments(t *testing.T) {
	b := startBroker(t)
	c := dial(t, b)
	assert.ErrorIs(t, c.Subscribe("", func(string, []byte) {}), api.ErrInvalidArgument)
	assert.ErrorIs(t, c.Subscribe("X", nil), api.ErrInvalidArgument)
	assert.ErrorIs(t, c.Publish("", nil), api.ErrInvalidArgument)
}

func TestDial_NoBroker(t *testing.T) {
	_, err := Dial(context.Background(), filepath.Join(t.TempDir(), "missing.sock"))
	assert.Error(t, err)
}
