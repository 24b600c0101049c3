// Package broadcast fans full lesson snapshots out to subscribers. Each
// subscriber holds at most one pending snapshot; a newer one replaces it, so a
// slow reader skips intermediate states but always ends on the latest.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/pkg/logger"
	"github.com/okian/rinkside/pkg/metrics"
)

// ErrClosed is returned when subscribing to a closed hub.
var ErrClosed = errors.New("broadcast hub closed")

// Snapshot is the complete lesson set at one point in time. Lessons is shared
// between subscribers and must not be modified.
type Snapshot struct {
	Version uint64
	At      time.Time
	Lessons []lesson.Lesson
}

// Hub keeps the latest snapshot and the live subscriptions.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	current Snapshot
	primed  bool
	closed  bool
	now     func() time.Time
	logger  logger.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock overrides time.Now for snapshot stamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[uint64]*Subscription),
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish stores lessons as the new current snapshot and offers it to every
// subscriber. Calls are serialized so subscribers see versions in order.
func (h *Hub) Publish(lessons []lesson.Lesson) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = Snapshot{Version: h.current.Version + 1, At: h.now(), Lessons: lessons}
	h.primed = true
	if h.closed {
		return h.current
	}
	for _, s := range h.subs {
		s.offer(h.current)
	}
	return h.current
}

// Current returns the latest snapshot, if any has been published.
func (h *Hub) Current() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.primed
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Subscribe registers a subscription. The current snapshot, if any, is
// waiting on C immediately. Cancelling ctx unsubscribes.
func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.nextID++
	ch := make(chan Snapshot, 1)
	s := &Subscription{
		C:    ch,
		ch:   ch,
		id:   h.nextID,
		hub:  h,
		done: make(chan struct{}),
	}
	h.subs[s.id] = s
	if h.primed {
		s.offer(h.current)
	}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.UpdateSubscriberCount(n)
	h.logger.Debug(ctx, "subscriber added", logger.Int("subscribers", n))

	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
		case <-s.done:
		}
	}()
	return s, nil
}

// Close ends every subscription and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	n := len(h.subs)
	h.mu.Unlock()
	metrics.UpdateSubscriberCount(n)
}

// Subscription receives snapshots on C until it is unsubscribed, at which
// point C is closed.
type Subscription struct {
	C <-chan Snapshot

	ch   chan Snapshot
	id   uint64
	hub  *Hub
	once sync.Once
	done chan struct{}
}

// offer runs with the hub lock held; it is the only sender on ch.
func (s *Subscription) offer(snap Snapshot) {
	select {
	case s.ch <- snap:
		metrics.RecordSnapshotDelivered()
		return
	default:
	}
	select {
	case <-s.ch:
		metrics.RecordSnapshotSuperseded()
	default:
	}
	select {
	case s.ch <- snap:
		metrics.RecordSnapshotDelivered()
	default:
	}
}

// Unsubscribe stops deliveries and closes C. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.done)
		close(s.ch)
	})
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} { return s.done }
