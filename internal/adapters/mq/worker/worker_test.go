package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/rinkside/internal/adapters/mq/broadcast"
	queue "github.com/okian/rinkside/internal/adapters/mq/queue"
	worker "github.com/okian/rinkside/internal/adapters/mq/worker"
	"github.com/okian/rinkside/internal/domain/lesson"
	model "github.com/okian/rinkside/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockLister struct {
	mu    sync.Mutex
	docs  []lesson.Document
	err   error
	calls int
}

func (m *mockLister) List(context.Context) ([]lesson.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]lesson.Document(nil), m.docs...), nil
}

func (m *mockLister) set(docs ...lesson.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = docs
}

func (m *mockLister) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var fixedNow = time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)

func rinkDoc(id, rink string) lesson.Document {
	return lesson.Document{ID: id, Data: map[string]any{"student": "Amy", "rink": rink}}
}

func TestDispatcherRefresh(t *testing.T) {
	convey.Convey("Given a dispatcher over a lister and a hub", t, func() {
		lister := &mockLister{}
		lister.set(rinkDoc("a", "The Den"))
		hub := broadcast.NewHub()
		d := worker.NewDispatcher(queue.NewInMemoryQueue(), lister, hub, worker.WithClock(func() time.Time { return fixedNow }))

		convey.Convey("When refreshed", func() {
			err := d.Refresh(context.Background())

			convey.Convey("Then a normalized snapshot is published", func() {
				convey.So(err, convey.ShouldBeNil)
				snap, ok := hub.Current()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(snap.Lessons, convey.ShouldHaveLength, 1)
				convey.So(snap.Lessons[0].Rink, convey.ShouldEqual, lesson.RinkDen)
				convey.So(snap.Lessons[0].Start, convey.ShouldEqual, fixedNow)
			})
		})

		convey.Convey("When the lister fails", func() {
			lister.err = errors.New("db down")
			err := d.Refresh(context.Background())

			convey.Convey("Then nothing is published", func() {
				convey.So(err, convey.ShouldNotBeNil)
				_, ok := hub.Current()
				convey.So(ok, convey.ShouldBeFalse)
			})
		})
	})
}

func TestDispatcherRun(t *testing.T) {
	convey.Convey("Given a running dispatcher", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		lister := &mockLister{}
		hub := broadcast.NewHub()
		d := worker.NewDispatcher(q, lister, hub, worker.WithName("test-dispatcher"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub, err := hub.Subscribe(ctx)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When a change is enqueued", func() {
			lister.set(rinkDoc("a", "Den"), rinkDoc("b", "Stadium"))
			go d.Run(ctx)
			q.Enqueue(ctx, model.Change{Op: model.OpCreate, LessonID: "b"})

			convey.Convey("Then subscribers receive the reloaded set", func() {
				select {
				case snap := <-sub.C:
					convey.So(snap.Lessons, convey.ShouldHaveLength, 2)
				case <-time.After(2 * time.Second):
					t.Fatal("no snapshot delivered")
				}
				convey.So(d.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a burst is queued before the loop starts", func() {
			for i := 0; i < 5; i++ {
				q.Enqueue(ctx, model.Change{Op: model.OpUpdate, LessonID: "a"})
			}
			go d.Run(ctx)

			convey.Convey("Then it is coalesced into one reload", func() {
				select {
				case <-sub.C:
				case <-time.After(2 * time.Second):
					t.Fatal("no snapshot delivered")
				}
				convey.So(d.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(lister.callCount(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the queue is closed", func() {
			go d.Run(ctx)
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then the loop exits and shutdown returns", func() {
				convey.So(d.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(d.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestDispatcherShutdownTimeout(t *testing.T) {
	convey.Convey("Given a dispatcher that was never started", t, func() {
		d := worker.NewDispatcher(queue.NewInMemoryQueue(), &mockLister{}, broadcast.NewHub())

		convey.Convey("When shutdown is bounded by an expired context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			err := d.Shutdown(ctx)

			convey.Convey("Then it reports the timeout", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}
