package seeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/rinkside/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
)

// ErrVerification is returned when the service state does not match the run.
var ErrVerification = errors.New("verification failed")

// Run executes a complete seeding run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := logger.Get().Named("seeder")
	stats := &Stats{StartTime: time.Now()}
	config = withDefaults(config)

	tag := RunTag()
	log.Info(ctx, "starting seeding run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("lessons", config.NumLessons),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.String("tag", tag),
		logger.Bool("cleanup", config.Cleanup))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Follow the stream before writing so every change is seen
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	watcher, err := client.Watch(streamCtx, tag)
	if err != nil {
		return stats, fmt.Errorf("stream: %w", err)
	}

	// Step 3: Generate lessons
	planned := Generate(config.NumLessons, tag, config.Day, config.Coaches, config.Rinks)
	stats.Generated = len(planned)

	// Step 4: Submit concurrently
	created := submitLessons(ctx, log, config, client, planned, stats)

	// Step 5: Replay a share of the keys
	if err := replayLessons(ctx, log, config, client, planned, created, stats); err != nil {
		return stats, err
	}

	// Step 6: Verify list and stream
	if err := verifyResults(ctx, log, config, client, watcher, tag, created, stats); err != nil {
		return stats, err
	}

	// Step 7: Save what was created
	if config.OutputFile != "" {
		if err := saveLessons(config.OutputFile, planned, created); err != nil {
			log.Warn(ctx, "failed to save lessons", logger.Error(err))
		} else {
			log.Info(ctx, "lessons saved", logger.String("file", config.OutputFile))
		}
	}

	// Step 8: Cleanup
	if config.Cleanup {
		cleanup(ctx, log, config, client, stats)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

func withDefaults(config *Config) *Config {
	c := *config
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Settle <= 0 {
		c.Settle = 10 * time.Second
	}
	if c.Day.IsZero() {
		c.Day = time.Now().AddDate(0, 0, 1)
	}
	return &c
}

// submitLessons posts every planned lesson through a worker pool. The result
// maps idempotency keys to created lesson IDs.
func submitLessons(ctx context.Context, log logger.Logger, config *Config, client *HTTPClient, planned []Planned, stats *Stats) map[string]string {
	log.Info(ctx, "submitting lessons", logger.Int("count", len(planned)), logger.Int("workers", config.Workers))

	var (
		submitted, createdN, rejected, failed int64

		mu      sync.Mutex
		created = make(map[string]string, len(planned))
		wg      sync.WaitGroup
	)

	jobs := make(chan Planned)
	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				atomic.AddInt64(&submitted, 1)
				res, err := client.Submit(ctx, p)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "submit failed", logger.String("student", p.Input.Student), logger.Error(err))
				case res.ID != "":
					atomic.AddInt64(&createdN, 1)
					mu.Lock()
					created[p.Key] = res.ID
					mu.Unlock()
					if config.Verbose {
						log.Info(ctx, "lesson created",
							logger.String("id", res.ID),
							logger.String("student", p.Input.Student),
							logger.String("coach", p.Input.Coach),
							logger.String("start", p.Input.Start))
					}
				default:
					atomic.AddInt64(&rejected, 1)
					log.Warn(ctx, "lesson rejected",
						logger.String("student", p.Input.Student),
						logger.Int("status", res.Status),
						logger.String("reason", res.Reason))
				}
			}
		}()
	}

feed:
	for _, p := range planned {
		select {
		case jobs <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	stats.Submitted = int(submitted)
	stats.Created = int(createdN)
	stats.Rejected = int(rejected)
	stats.Failed = int(failed)
	for _, p := range planned {
		if id, ok := created[p.Key]; ok {
			stats.CreatedIDs = append(stats.CreatedIDs, id)
		}
	}
	return created
}

// replayLessons resubmits every Nth created lesson with its original key and
// expects the original lesson back.
func replayLessons(ctx context.Context, log logger.Logger, config *Config, client *HTTPClient, planned []Planned, created map[string]string, stats *Stats) error {
	if config.Replays <= 0 {
		return nil
	}
	for i := 0; i < len(planned); i += config.Replays {
		p := planned[i]
		want, ok := created[p.Key]
		if !ok {
			continue
		}
		res, err := client.Submit(ctx, p)
		if err != nil {
			return fmt.Errorf("replay %s: %w", p.Key, err)
		}
		if !res.Replayed || res.ID != want {
			return fmt.Errorf("%w: replay of %s returned id %q (replayed=%t), want %q",
				ErrVerification, p.Key, res.ID, res.Replayed, want)
		}
		stats.Replayed++
	}
	log.Info(ctx, "replays answered from the first submission", logger.Int("count", stats.Replayed))
	return nil
}

func cleanup(ctx context.Context, log logger.Logger, config *Config, client *HTTPClient, stats *Stats) {
	var (
		deleted int64
		wg      sync.WaitGroup
	)
	ids := make(chan string)
	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				if err := client.Delete(ctx, id); err != nil {
					log.Warn(ctx, "delete failed", logger.String("id", id), logger.Error(err))
					continue
				}
				atomic.AddInt64(&deleted, 1)
			}
		}()
	}
	for _, id := range stats.CreatedIDs {
		ids <- id
	}
	close(ids)
	wg.Wait()
	stats.Deleted = int(deleted)
	log.Info(ctx, "seeded lessons removed", logger.Int("deleted", stats.Deleted))
}

type savedLesson struct {
	ID  string `json:"id"`
	Key string `json:"idempotencyKey"`
	LessonInput
}

func saveLessons(filename string, planned []Planned, created map[string]string) error {
	out := make([]savedLesson, 0, len(created))
	for _, p := range planned {
		if id, ok := created[p.Key]; ok {
			out = append(out, savedLesson{ID: id, Key: p.Key, LessonInput: p.Input})
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lessons: %w", err)
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return os.WriteFile(filename, append(data, '\n'), filePermission)
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("replayed", stats.Replayed),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("listed", stats.Listed),
		logger.Int("streamed", stats.Streamed),
		logger.Int("deleted", stats.Deleted),
		logger.Duration("duration", stats.Duration),
		logger.Any("lessonsPerSecond", perSecond))
}
