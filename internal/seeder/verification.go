package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/rinkside/pkg/logger"
)

const pollInterval = 50 * time.Millisecond

// verifyResults checks that the list endpoint holds exactly the created
// lessons and that the stream catches up to the same set within Settle.
func verifyResults(ctx context.Context, log logger.Logger, config *Config, client *HTTPClient, watcher *Watcher, tag string, created map[string]string, stats *Stats) error {
	listed, _, err := client.List(ctx, tag)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}
	stats.Listed = len(listed)
	if err := sameIDs(listed, created); err != nil {
		return fmt.Errorf("%w: list: %w", ErrVerification, err)
	}
	log.Info(ctx, "listed lessons match", logger.Int("count", len(listed)))

	deadline := time.NewTimer(config.Settle)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		latest := watcher.Latest()
		if sameIDs(latest.Lessons, created) == nil {
			stats.Streamed = len(latest.Lessons)
			log.Info(ctx, "stream caught up",
				logger.Int("count", stats.Streamed),
				logger.Any("version", latest.Version),
				logger.Int("events", watcher.Events()))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-watcher.Done():
			if err := watcher.Err(); err != nil {
				return fmt.Errorf("stream ended: %w", err)
			}
			return fmt.Errorf("%w: stream ended before catching up", ErrVerification)
		case <-deadline.C:
			stats.Streamed = len(latest.Lessons)
			return fmt.Errorf("%w: stream shows %d lessons after %s, want %d",
				ErrVerification, len(latest.Lessons), config.Settle, len(created))
		case <-tick.C:
		}
	}
}

func sameIDs(lessons []Lesson, created map[string]string) error {
	if len(lessons) != len(created) {
		return fmt.Errorf("got %d lessons, want %d", len(lessons), len(created))
	}
	want := make(map[string]struct{}, len(created))
	for _, id := range created {
		want[id] = struct{}{}
	}
	for _, l := range lessons {
		if _, ok := want[l.ID]; !ok {
			return fmt.Errorf("unexpected lesson %s (%s)", l.ID, l.Student)
		}
	}
	return nil
}
