package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/rinkside/internal/domain/lesson"
	. "github.com/smartystreets/goconvey/convey"
)

func lessons(ids ...string) []lesson.Lesson {
	out := make([]lesson.Lesson, 0, len(ids))
	for _, id := range ids {
		out = append(out, lesson.Lesson{ID: id})
	}
	return out
}

func receive(s *Subscription) (Snapshot, bool) {
	select {
	case snap, ok := <-s.C:
		return snap, ok
	case <-time.After(time.Second):
		return Snapshot{}, false
	}
}

func TestHub(t *testing.T) {
	Convey("Given a hub with a published snapshot", t, func() {
		hub := NewHub()
		hub.Publish(lessons("a"))

		Convey("When a subscriber joins", func() {
			sub, err := hub.Subscribe(context.Background())
			So(err, ShouldBeNil)
			defer sub.Unsubscribe()

			Convey("Then the current snapshot is delivered at once", func() {
				snap, ok := receive(sub)
				So(ok, ShouldBeTrue)
				So(snap.Version, ShouldEqual, 1)
				So(snap.Lessons, ShouldHaveLength, 1)
				So(hub.Len(), ShouldEqual, 1)
			})

			Convey("When several snapshots are published before it reads", func() {
				hub.Publish(lessons("a", "b"))
				hub.Publish(lessons("a", "b", "c"))

				Convey("Then only the latest is pending", func() {
					snap, ok := receive(sub)
					So(ok, ShouldBeTrue)
					So(snap.Version, ShouldEqual, 3)
					So(snap.Lessons, ShouldHaveLength, 3)

					select {
					case <-sub.C:
						So("unexpected extra snapshot", ShouldBeEmpty)
					default:
					}
				})
			})

			Convey("When it unsubscribes twice", func() {
				sub.Unsubscribe()
				sub.Unsubscribe()

				Convey("Then C is closed and the hub forgets it", func() {
					for range sub.C {
					}
					So(hub.Len(), ShouldEqual, 0)
					hub.Publish(lessons("z"))
				})
			})
		})

		Convey("When the subscribe context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			sub, err := hub.Subscribe(ctx)
			So(err, ShouldBeNil)
			cancel()

			Convey("Then the subscription ends", func() {
				select {
				case <-sub.Done():
				case <-time.After(time.Second):
				}
				So(hub.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the hub is closed", func() {
			sub, _ := hub.Subscribe(context.Background())
			hub.Close()

			Convey("Then subscriptions end and new ones are refused", func() {
				<-sub.Done()
				_, err := hub.Subscribe(context.Background())
				So(errors.Is(err, ErrClosed), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unprimed hub", t, func() {
		hub := NewHub()
		sub, err := hub.Subscribe(context.Background())
		So(err, ShouldBeNil)
		defer sub.Unsubscribe()

		Convey("Then nothing is pending until the first publish", func() {
			_, primed := hub.Current()
			So(primed, ShouldBeFalse)
			select {
			case <-sub.C:
				So("unexpected snapshot", ShouldBeEmpty)
			default:
			}

			hub.Publish(nil)
			snap, ok := receive(sub)
			So(ok, ShouldBeTrue)
			So(snap.Version, ShouldEqual, 1)
		})
	})
}
