// Package worker runs the snapshot dispatcher: a single goroutine that turns
// change notices into full, normalized lesson snapshots.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/rinkside/internal/adapters/mq/broadcast"
	"github.com/okian/rinkside/internal/adapters/mq/queue"
	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/pkg/logger"
	"github.com/okian/rinkside/pkg/metrics"
)

// Change abstracts what the dispatcher reads off the queue.
type Change = queue.Change

// Lister reads the full lessons collection.
type Lister interface {
	List(ctx context.Context) ([]lesson.Document, error)
}

// Publisher receives each new snapshot.
type Publisher interface {
	Publish(lessons []lesson.Lesson) broadcast.Snapshot
}

// Queue defines how the dispatcher receives notices.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Change
	Len(ctx context.Context) int
}

// Worker is a long-running consumer.
type Worker interface {
	// Run starts the loop until ctx is canceled or the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the loop and waits for it to finish.
	Shutdown(ctx context.Context) error
}

// Dispatcher reloads and publishes the lesson set after every burst of changes.
type Dispatcher struct {
	queue     Queue
	lister    Lister
	publisher Publisher
	defaults  lesson.Defaults
	now       func() time.Time
	name      string

	// serializes reload+publish so snapshots follow commit order
	mu sync.Mutex

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher with configuration options.
func NewDispatcher(q Queue, lister Lister, publisher Publisher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:     q,
		lister:    lister,
		publisher: publisher,
		defaults:  lesson.StandardDefaults,
		now:       time.Now,
		name:      "dispatcher",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named(d.name)
	return d
}

// Run consumes notices. Pending notices are drained first so a burst of
// writes costs one reload.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	changes := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			coalesced := d.drain(changes)
			if err := d.Refresh(ctx); err != nil {
				d.logger.Error(ctx, "snapshot reload failed",
					logger.String("op", string(change.Op)),
					logger.String("lessonID", change.LessonID),
					logger.Int("coalesced", coalesced),
					logger.Error(err),
				)
			}
		}
	}
}

// drain takes whatever is already queued without blocking.
func (d *Dispatcher) drain(changes <-chan Change) int {
	n := 0
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Refresh reloads the collection and publishes it.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	docs, err := d.lister.List(ctx)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}
	lessons := lesson.NormalizeAll(docs, d.now(), d.defaults)
	snap := d.publisher.Publish(lessons)

	metrics.UpdateLessonCount(len(lessons))
	metrics.RecordDispatchLatency(float64(time.Since(start).Milliseconds()))
	d.logger.Debug(ctx, "snapshot published",
		logger.Int("lessons", len(lessons)),
		logger.Any("version", snap.Version),
	)
	return nil
}

// Shutdown stops the loop and waits for it, bounded by ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.shutdownOnce.Do(func() { close(d.shutdown) })

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
