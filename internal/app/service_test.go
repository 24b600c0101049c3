package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/okian/rinkside/internal/adapters/sheet"
	service "github.com/okian/rinkside/internal/app"
	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2025, 3, 10, 9, 7, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func startService(opts ...service.Option) *service.Service {
	opts = append([]service.Option{
		service.WithStoreDriver(service.DriverMemory, ""),
		service.WithClock(clock),
	}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Defaults(), ShouldResemble, lesson.StandardDefaults)
			So(svc.Rinks(), ShouldResemble, []string{"Stadium", "Mezzanine", "Den"})
			So(svc.Colors().Color("Silvia"), ShouldEqual, "#3b82f6")
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithQueueSize(16),
			service.WithDedupeSize(32),
			service.WithConflictCheck(false),
			service.WithDefaults(lesson.Defaults{Coach: "John", Length: 45 * time.Minute}),
			service.WithRinks([]string{"Annex"}),
		)

		Convey("Then the options are applied", func() {
			So(svc.Defaults().Coach, ShouldEqual, "John")
			So(svc.Defaults().Rink, ShouldEqual, lesson.RinkDen)
			So(svc.Defaults().Length, ShouldEqual, 45*time.Minute)
			So(svc.Rinks(), ShouldResemble, []string{"Annex"})
			So(svc.GetStats()["conflictCheck"], ShouldBeFalse)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithStoreDriver(service.DriverMemory, ""))
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["totalLessons"], ShouldEqual, 0)
				So(stats["snapshotVersion"], ShouldEqual, uint64(1))
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given an unknown store driver", t, func() {
		svc := service.New(service.WithStoreDriver("postgres", ""))

		Convey("Then Start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldBeFalse)
		})
	})

	Convey("Given an invalid export schedule", t, func() {
		svc := service.New(
			service.WithStoreDriver(service.DriverMemory, ""),
			service.WithExportSchedule("every now and then", t.TempDir()),
		)

		Convey("Then Start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})
}

func TestService_NotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("Then reads and writes report ErrNotStarted", func() {
			_, err := svc.Lessons(ctx)
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = svc.Create(ctx, lesson.Lesson{Student: "Ann"})
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = svc.Subscribe(ctx)
			So(err, ShouldEqual, service.ErrNotStarted)
		})

		Convey("And Stop is safe", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()

		Convey("When stopping it", func() {
			svc.Stop()

			Convey("Then it reports stopped", func() {
				So(svc.GetStats()["started"], ShouldBeFalse)
			})

			Convey("And stopping again is safe", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_Idempotency(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()

		Convey("When a key is reserved", func() {
			_, seen := svc.SeenAndRecord(ctx, "k1")
			So(seen, ShouldBeFalse)

			Convey("Then a repeat is seen without a result while in flight", func() {
				id, seen := svc.SeenAndRecord(ctx, "k1")
				So(seen, ShouldBeTrue)
				So(id, ShouldBeEmpty)
			})

			Convey("Then a completed key replays its lesson ID", func() {
				svc.Complete(ctx, "k1", "lesson-1")
				id, seen := svc.SeenAndRecord(ctx, "k1")
				So(seen, ShouldBeTrue)
				So(id, ShouldEqual, "lesson-1")
			})

			Convey("Then an unrecorded key is free again", func() {
				svc.Unrecord(ctx, "k1")
				_, seen := svc.SeenAndRecord(ctx, "k1")
				So(seen, ShouldBeFalse)
			})
		})
	})
}

func TestService_Export(t *testing.T) {
	Convey("Given a service with one lesson", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()

		start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
		_, err := svc.Create(ctx, lesson.Lesson{
			Student: "Ann", Coach: "John", Rink: "Stadium",
			Start: start, End: start.Add(30 * time.Minute),
		})
		So(err, ShouldBeNil)

		Convey("When exporting to a buffer", func() {
			var buf bytes.Buffer
			err := svc.Export(ctx, &buf)

			Convey("Then a workbook is written", func() {
				So(err, ShouldBeNil)
				// xlsx files are zip archives
				So(bytes.HasPrefix(buf.Bytes(), []byte("PK")), ShouldBeTrue)
			})

			Convey("And importing it into another service recreates the lesson", func() {
				other := startService()
				defer other.Stop()

				res, err := other.Import(ctx, bytes.NewReader(buf.Bytes()), nil)
				So(err, ShouldBeNil)
				So(res.Created, ShouldHaveLength, 1)
				So(res.Rejected, ShouldBeEmpty)

				got, err := other.Lessons(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].Student, ShouldEqual, "Ann")
				So(got[0].Coach, ShouldEqual, "John")
				So(got[0].Rink, ShouldEqual, "Stadium")
				So(got[0].Start.Equal(start), ShouldBeTrue)
				So(got[0].End.Equal(start.Add(30*time.Minute)), ShouldBeTrue)
			})

			Convey("And importing it twice rejects the overlapping copy", func() {
				res, err := svc.Import(ctx, bytes.NewReader(buf.Bytes()), nil)
				So(err, ShouldBeNil)
				So(res.Created, ShouldBeEmpty)
				So(res.Rejected, ShouldResemble, []sheet.RowError{{Line: 2, Reason: "conflict"}})
			})
		})

		Convey("When exporting into a directory", func() {
			dir := t.TempDir()
			withDir := startService(service.WithExportSchedule("", dir))
			defer withDir.Stop()

			path, err := withDir.ExportFile(ctx)

			Convey("Then a timestamped file is written", func() {
				So(err, ShouldBeNil)
				So(path, ShouldEndWith, "lessons-20250310-090700.xlsx")
			})
		})
	})
}
