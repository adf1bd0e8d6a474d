// Package queue buffers submitted attempts between the API and the workers.
package queue

import (
	"context"
	"sync"

	"github.com/fununcle/perfectcircle/internal/domain/model"
	"github.com/fununcle/perfectcircle/pkg/metrics"
)

const defaultCapacity = 10000

// Attempt is the payload flowing through the queue.
type Attempt = model.Attempt

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an attempt without blocking. It returns ErrFull when the
	// queue is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, a Attempt) error

	// Dequeue returns a channel that yields attempts until the queue is closed.
	Dequeue(ctx context.Context) <-chan Attempt

	// Len returns the current number of queued attempts.
	Len(ctx context.Context) int

	// Close stops accepting attempts; queued ones are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	attempts chan Attempt
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.attempts = make(chan Attempt, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds an attempt to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, a Attempt) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordEnqueueError("context_cancelled")
		return err
	}

	select {
	case q.attempts <- a:
		metrics.UpdateQueueSize(len(q.attempts))
		return nil
	default:
		metrics.RecordEnqueueError("queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Attempt {
	return q.attempts
}

// Len returns the current number of queued attempts.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.attempts)
	metrics.UpdateQueueSize(size)
	return size
}

// Capacity returns the maximum number of queued attempts.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.attempts)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
