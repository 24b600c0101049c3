// Package queue carries change notices from the lesson store to the snapshot
// dispatcher. Enqueue never blocks a writer: when the queue is full the notice
// is dropped, which is safe because any notice already queued triggers a full
// reload after the write that was dropped.
package queue

import (
	"context"
	"sync"

	"github.com/okian/rinkside/internal/domain/model"
	"github.com/okian/rinkside/pkg/metrics"
)

// Default queue configuration constants.
const defaultQueueCapacity = 1024

// Change is the payload flowing through the queue.
type Change = model.Change

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a notice. Returns false if it was not enqueued.
	Enqueue(ctx context.Context, c Change) bool

	// Dequeue returns the receive side. It is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Change

	// Len returns the current number of queued notices.
	Len(ctx context.Context) int

	// Close stops accepting notices and closes the dequeue channel.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	changes  chan Change
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.changes = make(chan Change, q.capacity)

	metrics.UpdateChangeQueueCapacity(q.capacity)
	metrics.UpdateChangeQueueSize(0)
	return q
}

// Enqueue adds a notice without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Change) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		return false
	}

	select {
	case q.changes <- c:
		metrics.UpdateChangeQueueSize(len(q.changes))
		return true
	default:
		metrics.RecordChangeCoalesced()
		return false
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Change {
	return q.changes
}

// Len returns the current number of queued notices.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.changes)
	metrics.UpdateChangeQueueSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.changes)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
