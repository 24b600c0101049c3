// Package seeder fills a running calendar with generated lessons and checks
// that the listed set and the live stream agree with what was submitted.
package seeder

import "time"

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumLessons int           // Number of lessons to generate
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // How long the stream may lag behind the writes
	Day        time.Time     // First day to schedule on; lessons start at 06:00
	Coaches    []string      // Coaches to rotate through
	Rinks      []string      // Rinks to pick from
	Replays    int           // Every Nth lesson is submitted twice with the same key; 0 disables
	Cleanup    bool          // Delete the seeded lessons afterwards
	OutputFile string        // Optional JSON file receiving the created lessons
	Verbose    bool          // Log every submission
}

// LessonInput is the body of an add request.
type LessonInput struct {
	Student string `json:"student"`
	Coach   string `json:"coach"`
	Rink    string `json:"rink"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Lesson is the subset of the API lesson view the seeder reads.
type Lesson struct {
	ID      string    `json:"id"`
	Student string    `json:"student"`
	Coach   string    `json:"coach"`
	Rink    string    `json:"rink"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Title   string    `json:"title"`
}

// Planned is a generated lesson with its idempotency key.
type Planned struct {
	Key   string
	Input LessonInput
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Created    int
	Replayed   int
	Rejected   int
	Failed     int
	Listed     int
	Streamed   int
	Deleted    int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	CreatedIDs []string
}
