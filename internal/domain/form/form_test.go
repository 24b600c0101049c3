package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/rinkside/internal/domain/lesson"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeWriter struct {
	created []lesson.Lesson
	updated map[string]lesson.Lesson
	err     error
}

func (w *fakeWriter) Create(_ context.Context, l lesson.Lesson) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.created = append(w.created, l)
	return "new-id", nil
}

func (w *fakeWriter) Update(_ context.Context, id string, l lesson.Lesson) error {
	if w.err != nil {
		return w.err
	}
	if w.updated == nil {
		w.updated = map[string]lesson.Lesson{}
	}
	w.updated[id] = l
	return nil
}

type fakeRecorder struct{ names []string }

func (r *fakeRecorder) Remember(name string) bool {
	r.names = append(r.names, name)
	return true
}

func at(h, m int) time.Time {
	return time.Date(2025, 3, 4, h, m, 0, 0, time.UTC)
}

func TestDefaultDuration(t *testing.T) {
	Convey("Given an add form opened at 13:52:10", t, func() {
		f := NewAdd(time.Date(2025, 3, 4, 13, 52, 10, 0, time.UTC))

		Convey("Then start rounds to the quarter hour and end follows", func() {
			So(f.Lesson().Start, ShouldEqual, at(13, 45))
			So(f.Lesson().End, ShouldEqual, at(14, 15))
			So(f.Lesson().Coach, ShouldEqual, lesson.CoachSilvia)
			So(f.Lesson().Rink, ShouldEqual, lesson.RinkDen)
			So(f.State(), ShouldEqual, Editing)
		})

		Convey("When end was adjusted by hand and start changes from 14:00 to 14:20", func() {
			f.SetStart(at(14, 0))
			f.SetEnd(at(15, 30))
			f.SetStart(at(14, 20))

			Convey("Then end is reset to 14:50", func() {
				So(f.Lesson().End, ShouldEqual, at(14, 50))
			})
		})

		Convey("When end changes", func() {
			f.SetEnd(at(16, 0))

			Convey("Then start is untouched", func() {
				So(f.Lesson().Start, ShouldEqual, at(13, 45))
			})
		})

		Convey("When the picker is cleared", func() {
			f.SetStart(time.Time{})

			Convey("Then nothing changes", func() {
				So(f.Lesson().Start, ShouldEqual, at(13, 45))
			})
		})

		Convey("When start is typed as local text", func() {
			f.SetStartText("2025-03-04T09:00", time.UTC)

			Convey("Then end follows it", func() {
				So(f.Lesson().Start, ShouldEqual, at(9, 0))
				So(f.Lesson().End, ShouldEqual, at(9, 30))
			})
		})
	})

	Convey("Given a custom lesson length", t, func() {
		f := NewAdd(at(10, 0), WithLength(45*time.Minute), WithDefaults(lesson.CoachJohn, lesson.RinkStadium))

		Convey("Then it drives the end time", func() {
			So(f.Lesson().End, ShouldEqual, at(10, 45))
			So(f.Lesson().Coach, ShouldEqual, lesson.CoachJohn)
			So(f.Lesson().Rink, ShouldEqual, lesson.RinkStadium)
		})
	})
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()

	Convey("Given an add form", t, func() {
		w := &fakeWriter{}
		f := NewAdd(at(10, 0))

		Convey("When the student is whitespace only", func() {
			f.SetStudent("   ")
			_, err := f.Submit(ctx, w, nil)

			Convey("Then it is rejected as empty student with no write", func() {
				So(errors.Is(err, lesson.ErrValidation), ShouldBeTrue)
				So(lesson.Reason(err), ShouldEqual, lesson.ReasonEmptyStudent)
				So(w.created, ShouldBeEmpty)
				So(f.State(), ShouldEqual, Rejected)
				So(f.Err(), ShouldEqual, err)
			})
		})

		Convey("When the start text does not parse", func() {
			f.SetStudent("Amy")
			f.SetStartText("tomorrow-ish", time.UTC)
			_, err := f.Submit(ctx, w, nil)

			Convey("Then it is rejected as invalid time", func() {
				So(lesson.Reason(err), ShouldEqual, lesson.ReasonInvalidTime)
				So(w.created, ShouldBeEmpty)
			})
		})

		Convey("When end equals start", func() {
			f.SetStudent("Amy")
			f.SetEnd(f.Lesson().Start)
			_, err := f.Submit(ctx, w, nil)

			Convey("Then it is rejected as end before start", func() {
				So(lesson.Reason(err), ShouldEqual, lesson.ReasonEndBeforeStart)
				So(w.created, ShouldBeEmpty)
			})

			Convey("When the user fixes it and submits again", func() {
				f.SetEnd(at(10, 30))
				So(f.State(), ShouldEqual, Editing)
				saved, err := f.Submit(ctx, w, nil)

				Convey("Then it goes through", func() {
					So(err, ShouldBeNil)
					So(saved.ID, ShouldEqual, "new-id")
					So(f.State(), ShouldEqual, Submitted)
				})
			})
		})
	})
}

func TestSubmitWrites(t *testing.T) {
	ctx := context.Background()

	Convey("Given a valid add form", t, func() {
		w := &fakeWriter{}
		rec := &fakeRecorder{}
		f := NewAdd(at(10, 0))
		f.SetStudent("  Amy ")
		f.SetRink("The Den")

		Convey("When it is submitted", func() {
			saved, err := f.Submit(ctx, w, rec)

			Convey("Then the cleaned lesson is written and the student remembered", func() {
				So(err, ShouldBeNil)
				So(w.created, ShouldHaveLength, 1)
				So(w.created[0].Student, ShouldEqual, "Amy")
				So(w.created[0].Rink, ShouldEqual, lesson.RinkDen)
				So(saved.ID, ShouldEqual, "new-id")
				So(rec.names, ShouldResemble, []string{"Amy"})
				So(f.State(), ShouldEqual, Submitted)
			})

			Convey("Then a second submit is refused", func() {
				_, err := f.Submit(ctx, w, rec)
				So(errors.Is(err, ErrClosed), ShouldBeTrue)
				So(w.created, ShouldHaveLength, 1)
			})
		})

		Convey("When the store rejects the write", func() {
			w.err = errors.New("permission denied")
			_, err := f.Submit(ctx, w, rec)

			Convey("Then a persistence error keeps the form open", func() {
				So(errors.Is(err, lesson.ErrPersistence), ShouldBeTrue)
				So(errors.Is(err, w.err), ShouldBeTrue)
				So(f.State(), ShouldEqual, Rejected)
				So(rec.names, ShouldBeEmpty)
			})

			Convey("Then a retry after recovery succeeds", func() {
				w.err = nil
				_, err := f.Submit(ctx, w, rec)
				So(err, ShouldBeNil)
				So(f.State(), ShouldEqual, Submitted)
			})
		})
	})

	Convey("Given an edit form over an existing lesson", t, func() {
		original := lesson.Lesson{ID: "e1", Student: "Amy", Coach: lesson.CoachSilvia, Rink: lesson.RinkDen, Start: at(10, 0), End: at(10, 30)}
		w := &fakeWriter{}
		f := NewEdit(original)
		f.SetCoach(lesson.CoachJohn)

		Convey("Then the caller's copy is not changed", func() {
			So(original.Coach, ShouldEqual, lesson.CoachSilvia)
		})

		Convey("When it is submitted", func() {
			_, err := f.Submit(ctx, w, nil)

			Convey("Then the whole record is replaced by id", func() {
				So(err, ShouldBeNil)
				So(w.updated["e1"].Coach, ShouldEqual, lesson.CoachJohn)
				So(w.updated["e1"].End, ShouldEqual, at(10, 30))
			})
		})

		Convey("When it has no id", func() {
			_, err := NewEdit(lesson.Lesson{Student: "Amy", Start: at(10, 0), End: at(10, 30)}).Submit(ctx, w, nil)

			Convey("Then it is refused", func() {
				So(errors.Is(err, ErrNoID), ShouldBeTrue)
			})
		})
	})
}

func TestConflictCheck(t *testing.T) {
	ctx := context.Background()
	existing := []lesson.Lesson{{ID: "e1", Student: "Amy", Coach: lesson.CoachSilvia, Rink: lesson.RinkDen, Start: at(10, 0), End: at(10, 30)}}
	list := func(context.Context) ([]lesson.Lesson, error) { return existing, nil }

	Convey("Given an add form with the conflict check", t, func() {
		w := &fakeWriter{}
		f := NewAdd(at(10, 15), WithChecks(ConflictCheck(list)))
		f.SetStudent("Amy")
		f.SetCoach(lesson.CoachJohn)

		Convey("When it overlaps a lesson for the same student", func() {
			_, err := f.Submit(ctx, w, nil)

			Convey("Then it is rejected with the conflicting lesson", func() {
				var ce *lesson.ConflictError
				So(errors.As(err, &ce), ShouldBeTrue)
				So(ce.With.ID, ShouldEqual, "e1")
				So(w.created, ShouldBeEmpty)
				So(f.State(), ShouldEqual, Rejected)
			})
		})

		Convey("When the student and coach are both different", func() {
			f.SetStudent("Bob")
			_, err := f.Submit(ctx, w, nil)

			Convey("Then it is written", func() {
				So(err, ShouldBeNil)
				So(w.created, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given an edit form with the conflict check", t, func() {
		w := &fakeWriter{}
		f := NewEdit(lesson.Lesson{ID: "e2", Student: "Amy", Coach: lesson.CoachSilvia, Start: at(10, 0), End: at(10, 30)},
			WithChecks(ConflictCheck(list)))

		Convey("Then the check is not applied", func() {
			_, err := f.Submit(ctx, w, nil)
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a check whose listing fails", t, func() {
		boom := errors.New("offline")
		f := NewAdd(at(9, 0), WithChecks(ConflictCheck(func(context.Context) ([]lesson.Lesson, error) { return nil, boom })))
		f.SetStudent("Amy")

		Convey("Then the form is rejected with the cause", func() {
			_, err := f.Submit(ctx, &fakeWriter{}, nil)
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})
}
