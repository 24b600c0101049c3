package seeder

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rinkside/internal/domain/lesson"
)

// Daily window for generated lessons.
const (
	dayStartHour   = 6
	slotsPerDay    = 32
	lessonLength   = 30 * time.Minute
	inputTimeShape = "2006-01-02T15:04"
)

// RunTag returns a short random tag marking one run's students.
func RunTag() string {
	return uuid.NewString()[:8]
}

// Generate plans n lessons that cannot conflict with each other: coaches
// rotate per lesson, each coach's lessons follow back to back, and every
// student name is unique and carries tag.
func Generate(n int, tag string, day time.Time, coaches, rinks []string) []Planned {
	if len(coaches) == 0 {
		coaches = []string{lesson.CoachSilvia, lesson.CoachJohn, lesson.CoachSherry}
	}
	if len(rinks) == 0 {
		rinks = []string{lesson.RinkStadium, lesson.RinkMezzanine, lesson.RinkDen}
	}
	base := time.Date(day.Year(), day.Month(), day.Day(), dayStartHour, 0, 0, 0, day.Location())

	out := make([]Planned, n)
	for i := 0; i < n; i++ {
		slot := i / len(coaches)
		start := base.AddDate(0, 0, slot/slotsPerDay).Add(time.Duration(slot%slotsPerDay) * lessonLength)
		out[i] = Planned{
			Key: uuid.NewString(),
			Input: LessonInput{
				Student: fmt.Sprintf("Skater %04d [%s]", i+1, tag),
				Coach:   coaches[i%len(coaches)],
				Rink:    pick(rinks),
				Start:   start.Format(inputTimeShape),
				End:     start.Add(lessonLength).Format(inputTimeShape),
			},
		}
	}
	return out
}

func pick(options []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(options))))
	if err != nil {
		return options[0]
	}
	return options[n.Int64()]
}
