// File: internal/concurrency/transfer_queue_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferQueue_FIFO(t *testing.T) {
	q := NewTransferQueue[int]()
	_, ok := q.TryPop()
	assert.False(t, ok)

	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	assert.Equal(t, 100, q.Len())
	for i := 0; i < 100; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestTransferQueue_ConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 500
	type item struct{ producer, seq int }
	q := NewTransferQueue[item]()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(item{p, i})
			}
		}(p)
	}
	wg.Wait()

	next := make([]int, producers)
	total := 0
	for {
		it, ok := q.TryPop()
		if !ok {
			break
		}
		// per-producer push order is preserved
		assert.Equal(t, next[it.producer], it.seq)
		next[it.producer]++
		total++
	}
	assert.Equal(t, producers*perProducer, total)
}

func TestTransferQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewTransferQueue[string]()
	got := make(chan string, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push("ping")
	select {
	case v := <-got:
		assert.Equal(t, "ping", v)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop was not woken by Push")
	}
}

func TestTransferQueue_PopHonorsContext(t *testing.T) {
	q := NewTransferQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransferQueue_Drain(t *testing.T) {
	q := NewTransferQueue[int]()
	q.Push(1)
	q.Push(2)
	assert.Equal(t, []int{1, 2}, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}
