// Package dedupe tracks idempotency keys of add submissions so a double
// click or a client retry does not create the same lesson twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen idempotency keys and the lesson ID each produced.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// For a seen key it returns the recorded result, which is empty while the
	// first submission is still in flight.
	SeenAndRecord(ctx context.Context, key string) (result string, seen bool)

	// Complete stores the result for a recorded key.
	Complete(ctx context.Context, key, result string)

	// Unrecord forgets key so a failed submission can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key    string
	result string
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest when
// bounded (maxSize > 0). maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10_000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		return el.Value.(*entry).result, true
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushBack(&entry{key: key})
	d.size.Add(1)
	return "", false
}

func (d *inMemoryDeduper) Complete(_ context.Context, key, result string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		el.Value.(*entry).result = result
	}
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.seen, front.Value.(*entry).key)
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
