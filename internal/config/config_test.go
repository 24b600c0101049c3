package config_test

import (
	"errors"
	"testing"

	"github.com/okian/rinkside/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.ConflictCheck, convey.ShouldBeTrue)
			convey.So(cfg.EditPassword, convey.ShouldEqual, "letmein")
			convey.So(cfg.DefaultCoach, convey.ShouldEqual, "Silvia")
			convey.So(cfg.DefaultRink, convey.ShouldEqual, "Den")
			convey.So(cfg.LessonMinutes, convey.ShouldEqual, 30)
			convey.So(cfg.CoachColors["John"], convey.ShouldEqual, "#22c55e")
			convey.So(cfg.FallbackColor, convey.ShouldEqual, "#6366f1")
			convey.So(cfg.Rinks, convey.ShouldResemble, []string{"Stadium", "Mezzanine", "Den"})
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the store driver is unknown", func() {
			cfg.StoreDriver = "postgres"
			err := cfg.Validate()

			convey.Convey("Then it is rejected as invalid", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "postgres")
			})
		})

		convey.Convey("When the memory driver is used without a db path", func() {
			cfg.StoreDriver = config.DriverMemory
			cfg.DBPath = ""

			convey.Convey("Then it is valid", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the sqlite driver has no db path", func() {
			cfg.DBPath = " "

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an export schedule has no directory", func() {
			cfg.ExportSchedule = "@daily"

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the password or lesson length is empty", func() {
			noPassword := config.New()
			noPassword.EditPassword = ""
			noMinutes := config.New()
			noMinutes.LessonMinutes = 0

			convey.Convey("Then both are rejected", func() {
				convey.So(errors.Is(noPassword.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(errors.Is(noMinutes.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
