package seeder

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/rinkside/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends JSON logs to stdout and, when logFile is set, to that
// file as well.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	var (
		w       io.Writer = os.Stdout
		closeFn           = func() {}
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
		closeFn = func() { _ = file.Close() }
	}
	if err := logger.InitWith(w, logger.FormatJSON); err != nil {
		closeFn()
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// ParseDay reads a YYYY-MM-DD flag value in the local zone. Empty means tomorrow.
func ParseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Now().AddDate(0, 0, 1), nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.Local)
}

// ShowHelp prints usage information.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Rinkside Lesson Seeder
======================

Fills a running calendar with generated lessons, then checks the lesson list
and the live stream agree with what was created.

Usage:
  seed-lessons [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -lessons int
        Number of lessons to generate (default 200)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        How long the stream may lag behind the writes (default 10s)
  -day string
        First day to schedule on, YYYY-MM-DD (default tomorrow)
  -replay int
        Resubmit every Nth lesson with the same idempotency key (default 10, 0 disables)
  -cleanup
        Delete the seeded lessons afterwards
  -output string
        JSON file receiving the created lessons
  -log string
        Also write logs to this file
  -verbose
        Log every submission
  -help
        Show this help message

Examples:
  seed-lessons -lessons 500 -workers 16 -url http://localhost:8080
  seed-lessons -day 2025-03-10 -cleanup
`)
}
