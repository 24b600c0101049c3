package model_test

import (
	"testing"
	"time"

	model "github.com/okian/rinkside/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestChange(t *testing.T) {
	convey.Convey("Given a Change struct", t, func() {
		convey.Convey("When creating a change for a write", func() {
			at := time.Now()
			change := model.Change{Op: model.OpUpdate, LessonID: "lesson-1", At: at}

			convey.Convey("Then it should carry the values", func() {
				convey.So(change.Op, convey.ShouldEqual, model.OpUpdate)
				convey.So(string(change.Op), convey.ShouldEqual, "update")
				convey.So(change.LessonID, convey.ShouldEqual, "lesson-1")
				convey.So(change.At, convey.ShouldEqual, at)
			})
		})

		convey.Convey("When creating a change with zero values", func() {
			change := model.Change{}

			convey.Convey("Then it should have default values", func() {
				convey.So(change.Op, convey.ShouldBeEmpty)
				convey.So(change.LessonID, convey.ShouldBeEmpty)
				convey.So(change.At.IsZero(), convey.ShouldBeTrue)
			})
		})
	})
}
