package filter

import (
	"testing"

	"github.com/okian/rinkside/internal/adapters/kv"
	"github.com/okian/rinkside/internal/domain/lesson"
	. "github.com/smartystreets/goconvey/convey"
)

var lessons = []lesson.Lesson{
	{ID: "1", Student: "Amy Lee", Coach: lesson.CoachSilvia},
	{ID: "2", Student: "Bob", Coach: lesson.CoachJohn},
	{ID: "3", Student: "amy", Coach: lesson.CoachJohn},
	{ID: "4", Student: "Amy Lee", Coach: lesson.CoachSherry},
}

func ids(ls []lesson.Lesson) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	Convey("Given the zero filter", t, func() {
		var f Filter

		Convey("Then every lesson is shown", func() {
			So(ids(f.Apply(lessons)), ShouldResemble, []string{"1", "2", "3", "4"})
		})
	})

	Convey("Given a coach filter", t, func() {
		f := Filter{Coach: lesson.CoachJohn}

		Convey("Then only exact coach matches are shown", func() {
			So(ids(f.Apply(lessons)), ShouldResemble, []string{"2", "3"})
		})

		Convey("When combined with a student filter", func() {
			f.Student = "  AMY "

			Convey("Then both predicates apply", func() {
				So(ids(f.Apply(lessons)), ShouldResemble, []string{"3"})
			})
		})
	})

	Convey("Given a student-only filter", t, func() {
		f := Filter{Coach: AllCoaches, Student: "lee"}

		Convey("Then the match is a case-insensitive substring", func() {
			So(ids(f.Apply(lessons)), ShouldResemble, []string{"1", "4"})
		})
	})

	Convey("Toggling a coach", t, func() {
		f := Filter{Coach: AllCoaches}
		f = f.ToggleCoach(lesson.CoachSherry)
		So(f.Coach, ShouldEqual, lesson.CoachSherry)
		f = f.ToggleCoach(lesson.CoachSherry)
		So(f.Coach, ShouldEqual, AllCoaches)
	})

	Convey("Student options are sorted and unique", t, func() {
		So(StudentOptions(lessons), ShouldResemble, []string{"Amy Lee", "Bob", "amy"})
	})
}

func TestPersistence(t *testing.T) {
	Convey("Given an empty local scope", t, func() {
		store := kv.NewMemory()

		Convey("Then the loaded filter shows all coaches", func() {
			So(Load(store), ShouldResemble, Filter{Coach: AllCoaches})
		})

		Convey("When a filter is saved", func() {
			Filter{Coach: lesson.CoachJohn, Student: "bo"}.Save(store)

			Convey("Then it survives a reload", func() {
				So(Load(store), ShouldResemble, Filter{Coach: lesson.CoachJohn, Student: "bo"})
			})
		})
	})
}
