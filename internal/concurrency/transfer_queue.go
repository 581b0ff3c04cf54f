// File: internal/concurrency/transfer_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unbounded FIFO guarded by a mutex, with a condition variable for
// blocking consumers.

package concurrency

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// TransferQueue is an unbounded FIFO safe for any number of producers
// and one consumer. Relays only use TryPop; Pop exists for consumers
// that own a goroutine.
type TransferQueue[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    *queue.Queue
}

// NewTransferQueue creates an empty queue.
func NewTransferQueue[T any]() *TransferQueue[T] {
	q := &TransferQueue[T]{items: queue.New()}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends item and wakes a blocked consumer.
func (q *TransferQueue[T]) Push(item T) {
	q.mu.Lock()
	q.items.Add(item)
	q.mu.Unlock()
	q.nonEmpty.Signal()
}

// TryPop removes the oldest item without blocking.
func (q *TransferQueue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop removes the oldest item, waiting until one is pushed or ctx ends.
func (q *TransferQueue[T]) Pop(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.nonEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Length() == 0 {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		q.nonEmpty.Wait()
	}
	item, _ := q.popLocked()
	return item, nil
}

// Len returns the number of queued items.
func (q *TransferQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Drain removes and returns everything queued, oldest first.
func (q *TransferQueue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, q.items.Length())
	for {
		item, ok := q.popLocked()
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

func (q *TransferQueue[T]) popLocked() (T, bool) {
	if q.items.Length() == 0 {
		var zero T
		return zero, false
	}
	return q.items.Remove().(T), true
}
