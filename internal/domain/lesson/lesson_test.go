package lesson

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

var ten = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 4, h, m, 0, 0, time.UTC)
}

func TestTitleAndColor(t *testing.T) {
	Convey("Given a lesson at a rink with a The prefix", t, func() {
		l := Lesson{Student: "Amy", Coach: CoachSilvia, Rink: "The Den"}

		Convey("Then the title strips the prefix", func() {
			So(l.Title(), ShouldEqual, "Amy - Silvia (Den)")
			So(l.ShortTitle(), ShouldEqual, "Amy (Den)")
		})

		Convey("Then the color comes from the coach table", func() {
			colors := DefaultColors()
			So(colors.Color(CoachSilvia), ShouldEqual, "#3b82f6")
			So(colors.Color(CoachJohn), ShouldEqual, "#22c55e")
			So(colors.Color(CoachSherry), ShouldEqual, "#f43f5e")
			So(colors.Color("Zed"), ShouldEqual, FallbackColor)
		})
	})

	Convey("Given a custom color table", t, func() {
		src := map[string]string{"Alex": "#000000"}
		table := NewColorTable(src, "")
		src["Alex"] = "#ffffff"

		Convey("Then it is isolated from the source map", func() {
			So(table.Color("Alex"), ShouldEqual, "#000000")
			So(table.Color("Nobody"), ShouldEqual, FallbackColor)
			So(table.Legend(), ShouldResemble, []Swatch{{Coach: "Alex", Color: "#000000"}})
		})
	})

	Convey("Given the zero color table", t, func() {
		var table ColorTable

		Convey("Then every coach gets the fallback", func() {
			So(table.Color(CoachJohn), ShouldEqual, FallbackColor)
		})
	})
}

func TestStripThe(t *testing.T) {
	Convey("Rink stripping is case-insensitive and whitespace-tolerant", t, func() {
		So(StripThe("the Den"), ShouldEqual, "Den")
		So(StripThe("THE  Den"), ShouldEqual, "Den")
		So(StripThe("  The\tStadium"), ShouldEqual, "Stadium")
		So(StripThe("Den"), ShouldEqual, "Den")
		So(StripThe("Theatre"), ShouldEqual, "Theatre")
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given a nested record with store-native timestamps", t, func() {
		doc := Document{ID: "a1", Data: map[string]any{
			"title": "stale title",
			"start": map[string]any{"seconds": float64(at(10, 0).Unix()), "nanoseconds": float64(0)},
			"end":   map[string]any{"seconds": at(10, 45).Unix(), "nanoseconds": int64(0)},
			"extendedProps": map[string]any{
				"student": " Amy ",
				"coach":   "John",
				"rink":    "the Mezzanine",
			},
			"student": "ignored",
		}}

		l := Normalize(doc, ten, StandardDefaults)

		Convey("Then nested fields win and the rink is stripped", func() {
			So(l.ID, ShouldEqual, "a1")
			So(l.Student, ShouldEqual, "Amy")
			So(l.Coach, ShouldEqual, CoachJohn)
			So(l.Rink, ShouldEqual, RinkMezzanine)
			So(l.Start.Equal(at(10, 0)), ShouldBeTrue)
			So(l.End.Equal(at(10, 45)), ShouldBeTrue)
			So(l.Title(), ShouldEqual, "Amy - John (Mezzanine)")
		})
	})

	Convey("Given a flat record with text timestamps", t, func() {
		doc := Document{ID: "b2", Data: map[string]any{
			"student": "Bob",
			"coach":   "Sherry",
			"rink":    "Stadium",
			"start":   "2025-03-04T11:00:00Z",
			"end":     "2025-03-04T11:30",
		}}

		l := Normalize(doc, ten, StandardDefaults)

		Convey("Then top-level fields are used", func() {
			So(l.Student, ShouldEqual, "Bob")
			So(l.Coach, ShouldEqual, CoachSherry)
			So(l.Start.Equal(at(11, 0)), ShouldBeTrue)
			So(l.End.Equal(at(11, 30)), ShouldBeTrue)
		})
	})

	Convey("Given a sparse record", t, func() {
		l := Normalize(Document{ID: "c3", Data: map[string]any{}}, ten, StandardDefaults)

		Convey("Then defaults fill every gap", func() {
			So(l.Student, ShouldEqual, "")
			So(l.Coach, ShouldEqual, CoachSilvia)
			So(l.Rink, ShouldEqual, RinkDen)
			So(l.Start.Equal(ten), ShouldBeTrue)
			So(l.End.Equal(ten.Add(30*time.Minute)), ShouldBeTrue)
		})
	})

	Convey("Given a nil data map and zero defaults", t, func() {
		l := Normalize(Document{}, ten, Defaults{})

		Convey("Then normalization still succeeds", func() {
			So(l.Coach, ShouldEqual, CoachSilvia)
			So(l.Rink, ShouldEqual, RinkDen)
			So(l.Duration(), ShouldEqual, DefaultLength)
		})
	})

	Convey("Given a record with only a start", t, func() {
		doc := Document{Data: map[string]any{"start": float64(at(14, 0).UnixMilli()), "end": "garbage"}}
		l := Normalize(doc, ten, StandardDefaults)

		Convey("Then end is start plus thirty minutes", func() {
			So(l.Start.Equal(at(14, 0)), ShouldBeTrue)
			So(l.End.Equal(at(14, 30)), ShouldBeTrue)
		})
	})

	Convey("Given an already normalized lesson", t, func() {
		first := Normalize(Document{ID: "d4", Data: map[string]any{
			"student": "Cara",
			"rink":    "THE  Den",
			"start":   at(9, 0),
			"end":     at(9, 30).Add(123 * time.Nanosecond),
		}}, ten, StandardDefaults)

		second := Normalize(ToDocument(first), ten, StandardDefaults)

		Convey("Then normalizing again is a no-op", func() {
			So(second.ID, ShouldEqual, first.ID)
			So(second.Student, ShouldEqual, first.Student)
			So(second.Coach, ShouldEqual, first.Coach)
			So(second.Rink, ShouldEqual, "Den")
			So(second.Rink, ShouldEqual, first.Rink)
			So(second.Start.Equal(first.Start), ShouldBeTrue)
			So(second.End.Equal(first.End), ShouldBeTrue)
		})
	})

	Convey("Given sparse and blank records", t, func() {
		docs := []Document{
			{ID: "blank-coach", Data: map[string]any{"student": "Amy", "coach": "   "}},
			{ID: "blank-nested", Data: map[string]any{"extendedProps": map[string]any{"student": "Bo", "coach": " ", "rink": "  "}}},
			{ID: "the-only", Data: map[string]any{"student": "  Cy  ", "rink": "The "}},
			{ID: "empty", Data: map[string]any{}},
		}

		Convey("Then every one normalizes to a fixed point", func() {
			for _, doc := range docs {
				first := Normalize(doc, ten, StandardDefaults)
				second := Normalize(ToDocument(first), ten, StandardDefaults)

				So(first.Coach, ShouldEqual, CoachSilvia)
				So(first.Rink, ShouldEqual, RinkDen)
				So(second.Student, ShouldEqual, first.Student)
				So(second.Coach, ShouldEqual, first.Coach)
				So(second.Rink, ShouldEqual, first.Rink)
				So(second.Start.Equal(first.Start), ShouldBeTrue)
				So(second.End.Equal(first.End), ShouldBeTrue)
			}
		})
	})
}

func TestToDocument(t *testing.T) {
	Convey("Given a lesson", t, func() {
		l := Lesson{ID: "x", Student: "Amy", Coach: CoachSilvia, Rink: "The Den", Start: at(10, 0), End: at(10, 30)}
		doc := ToDocument(l)

		Convey("Then it is written in the nested layout", func() {
			So(doc.ID, ShouldEqual, "x")
			So(doc.Data[FieldTitle], ShouldEqual, "Amy - Silvia (Den)")
			nested, ok := doc.Data[FieldNested].(map[string]any)
			So(ok, ShouldBeTrue)
			So(nested[FieldRink], ShouldEqual, "Den")
			So(doc.Data[FieldStart], ShouldResemble, map[string]any{FieldSeconds: at(10, 0).Unix(), FieldNanos: int64(0)})
		})
	})
}

func TestOverlapsAndConflicts(t *testing.T) {
	existing := Lesson{ID: "e1", Student: "Amy", Coach: CoachSilvia, Rink: RinkDen, Start: at(10, 0), End: at(10, 30)}

	Convey("Overlap is symmetric and reflexive", t, func() {
		other := Lesson{Start: at(10, 15), End: at(10, 45)}
		So(Overlaps(existing, other), ShouldEqual, Overlaps(other, existing))
		So(Overlaps(existing, existing), ShouldBeTrue)
	})

	Convey("Touching intervals do not overlap", t, func() {
		next := Lesson{Start: at(10, 30), End: at(11, 0)}
		So(Overlaps(existing, next), ShouldBeFalse)
		So(Overlaps(next, existing), ShouldBeFalse)
	})

	Convey("Given an existing lesson for Amy with Silvia", t, func() {
		list := []Lesson{existing}

		Convey("A candidate sharing the student is flagged", func() {
			got, ok := FindConflict(Lesson{Student: "Amy", Coach: CoachJohn, Start: at(10, 15), End: at(10, 45)}, list)
			So(ok, ShouldBeTrue)
			So(got.ID, ShouldEqual, "e1")
		})

		Convey("A candidate sharing the coach is flagged", func() {
			_, ok := FindConflict(Lesson{Student: "Bob", Coach: CoachSilvia, Start: at(10, 15), End: at(10, 45)}, list)
			So(ok, ShouldBeTrue)
		})

		Convey("A candidate sharing neither is not flagged even at the same rink", func() {
			_, ok := FindConflict(Lesson{Student: "Bob", Coach: CoachJohn, Rink: RinkDen, Start: at(10, 15), End: at(10, 45)}, list)
			So(ok, ShouldBeFalse)
		})

		Convey("The lesson itself is skipped when re-checked by ID", func() {
			_, ok := FindConflict(existing, list)
			So(ok, ShouldBeFalse)
		})

		Convey("The first conflict in list order is returned", func() {
			second := existing
			second.ID = "e2"
			got, ok := FindConflict(Lesson{Student: "Amy", Start: at(10, 0), End: at(10, 30)}, []Lesson{existing, second})
			So(ok, ShouldBeTrue)
			So(got.ID, ShouldEqual, "e1")
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Typed errors match their sentinels", t, func() {
		cause := errors.New("disk full")
		var err error = &PersistenceError{Op: "create", Err: cause}
		So(errors.Is(err, ErrPersistence), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "create")

		err = &ValidationError{Reason: ReasonEmptyStudent}
		So(errors.Is(err, ErrValidation), ShouldBeTrue)
		So(Reason(err), ShouldEqual, ReasonEmptyStudent)

		err = &ConflictError{With: Lesson{Student: "Amy", Coach: CoachSilvia, Rink: RinkDen, Start: at(10, 0)}}
		So(errors.Is(err, ErrConflict), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "Amy - Silvia (Den)")
		So(Reason(err), ShouldEqual, "conflict")
		So(Reason(cause), ShouldEqual, "")
	})
}
