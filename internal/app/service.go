// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/rinkside/internal/adapters/mq/broadcast"
	changequeue "github.com/okian/rinkside/internal/adapters/mq/queue"
	"github.com/okian/rinkside/internal/adapters/mq/worker"
	"github.com/okian/rinkside/internal/adapters/repository"
	"github.com/okian/rinkside/internal/domain/dedupe"
	"github.com/okian/rinkside/internal/domain/form"
	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/internal/domain/model"
	"github.com/okian/rinkside/pkg/logger"
	"github.com/okian/rinkside/pkg/metrics"
)

// Store drivers understood by WithStoreDriver.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

const shutdownTimeout = 5 * time.Second

// ErrNotStarted is returned by operations that need Start first.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the lesson calendar.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	changes    *changequeue.InMemoryQueue
	hub        *broadcast.Hub
	dispatcher *worker.Dispatcher
	scheduler  *cron.Cron

	// Configuration
	storeDriver    string
	dbPath         string
	queueSize      int
	dedupeSize     int
	conflictCheck  bool
	defaults       lesson.Defaults
	colors         lesson.ColorTable
	rinks          []string
	exportSchedule string
	exportDir      string
	now            func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStoreDriver selects the lessons backend; path is the SQLite file.
func WithStoreDriver(driver, path string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
		}
		s.dbPath = path
	}
}

// WithQueueSize sets the change-notice queue size.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the idempotency-key cache size.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithConflictCheck toggles the overlap check on the add flow.
func WithConflictCheck(enabled bool) Option {
	return func(s *Service) {
		s.conflictCheck = enabled
	}
}

// WithDefaults sets the coach, rink and lesson length applied to new and
// partial records.
func WithDefaults(d lesson.Defaults) Option {
	return func(s *Service) {
		if d.Coach != "" {
			s.defaults.Coach = d.Coach
		}
		if d.Rink != "" {
			s.defaults.Rink = d.Rink
		}
		if d.Length > 0 {
			s.defaults.Length = d.Length
		}
	}
}

// WithColors sets the coach color table.
func WithColors(colors lesson.ColorTable) Option {
	return func(s *Service) {
		s.colors = colors
	}
}

// WithRinks sets the selectable rinks.
func WithRinks(rinks []string) Option {
	return func(s *Service) {
		if len(rinks) > 0 {
			s.rinks = append([]string(nil), rinks...)
		}
	}
}

// WithExportSchedule enables periodic spreadsheet exports into dir.
func WithExportSchedule(spec, dir string) Option {
	return func(s *Service) {
		s.exportSchedule = spec
		s.exportDir = dir
	}
}

// WithClock overrides the service clock and its time zone.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver:   DriverMemory,
		queueSize:     1024,
		dedupeSize:    10_000,
		conflictCheck: true,
		defaults:      lesson.StandardDefaults,
		colors:        lesson.DefaultColors(),
		rinks:         []string{lesson.RinkStadium, lesson.RinkMezzanine, lesson.RinkDen},
		now:           time.Now,
		logger:        logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store, primes the first snapshot and starts the dispatcher.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting lesson service...", logger.String("store", s.storeDriver))

	s.changes = changequeue.NewInMemoryQueue(changequeue.WithCapacity(s.queueSize))
	store, err := s.openStore(ctx)
	if err != nil {
		return err
	}
	s.store = store
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.hub = broadcast.NewHub(broadcast.WithLogger(s.logger.Named("hub")), broadcast.WithClock(s.now))
	s.dispatcher = worker.NewDispatcher(s.changes, s.store, s.hub,
		worker.WithLogger(s.logger),
		worker.WithDefaults(s.defaults),
		worker.WithClock(s.now),
	)

	if err := s.dispatcher.Refresh(ctx); err != nil {
		_ = s.store.Close()
		return fmt.Errorf("initial snapshot: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.dispatcher.Run(runCtx)

	if s.exportSchedule != "" {
		s.scheduler = cron.New()
		if _, err := s.scheduler.AddFunc(s.exportSchedule, func() { s.scheduledExport(runCtx) }); err != nil {
			cancel()
			_ = s.store.Close()
			return fmt.Errorf("export schedule %q: %w", s.exportSchedule, err)
		}
		s.scheduler.Start()
	}

	s.started = true
	s.logger.Info(ctx, "lesson service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("conflictCheck", s.conflictCheck),
		logger.String("exportSchedule", s.exportSchedule),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	opts := []repository.Option{
		repository.WithOnChange(s.notify),
		repository.WithLogger(s.logger.Named("store")),
	}
	switch s.storeDriver {
	case DriverMemory:
		return repository.NewMemoryStore(opts...), nil
	case DriverSQLite:
		return repository.OpenSQLite(ctx, s.dbPath, opts...)
	default:
		return nil, fmt.Errorf("unknown store driver %q", s.storeDriver)
	}
}

// notify feeds store commits to the dispatcher. A full queue already holds a
// notice that will reload after this commit, so a dropped notice loses nothing.
func (s *Service) notify(c model.Change) {
	if !s.changes.Enqueue(context.Background(), c) {
		s.logger.Debug(context.Background(), "change coalesced",
			logger.String("op", string(c.Op)),
			logger.String("lessonID", c.LessonID),
		)
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping lesson service...")

	if s.scheduler != nil {
		select {
		case <-s.scheduler.Stop().Done():
		case <-time.After(shutdownTimeout):
			s.logger.Warn(ctx, "scheduled export still running at shutdown")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.dispatcher.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "dispatcher shutdown", logger.Error(err))
	}
	s.cancel()

	s.hub.Close()
	_ = s.changes.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "lesson service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Create stores a new lesson and returns its ID.
func (s *Service) Create(ctx context.Context, l lesson.Lesson) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	start := time.Now()
	id, err := s.store.Create(ctx, lesson.ToDocument(l).Data)
	s.recordWrite("create", start, err)
	return id, err
}

// Update replaces the lesson stored under id.
func (s *Service) Update(ctx context.Context, id string, l lesson.Lesson) error {
	if err := s.ready(); err != nil {
		return err
	}
	l.ID = id
	start := time.Now()
	err := s.store.Update(ctx, id, lesson.ToDocument(l).Data)
	s.recordWrite("update", start, err)
	return err
}

// Delete removes a lesson; deleting an unknown ID succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	start := time.Now()
	err := s.store.Delete(ctx, id)
	s.recordWrite("delete", start, err)
	if err != nil {
		return &lesson.PersistenceError{Op: "delete", Err: err}
	}
	return nil
}

func (s *Service) recordWrite(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.logger.Error(context.Background(), "lesson write failed", logger.String("op", op), logger.Error(err))
	}
	metrics.RecordLessonWrite(op, outcome)
	metrics.RecordWriteLatency(op, float64(time.Since(start).Milliseconds()))
}

// Lessons returns the full, unfiltered lesson set as committed now.
func (s *Service) Lessons(ctx context.Context) ([]lesson.Lesson, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return lesson.NormalizeAll(docs, s.now(), s.defaults), nil
}

// Lesson returns one lesson by ID.
func (s *Service) Lesson(ctx context.Context, id string) (lesson.Lesson, error) {
	all, err := s.Lessons(ctx)
	if err != nil {
		return lesson.Lesson{}, err
	}
	for _, l := range all {
		if l.ID == id {
			return l, nil
		}
	}
	return lesson.Lesson{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
}

// Subscribe returns a subscription yielding the full lesson set on every
// change, starting with the current one.
func (s *Service) Subscribe(ctx context.Context) (*broadcast.Subscription, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx)
}

// Watch calls fn with every snapshot until the returned function is called
// or ctx ends. fn runs on a dedicated goroutine, one call at a time.
func (s *Service) Watch(ctx context.Context, fn func([]lesson.Lesson)) (func(), error) {
	sub, err := s.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		for snap := range sub.C {
			fn(snap.Lessons)
		}
	}()
	return sub.Unsubscribe, nil
}

// NewAddForm opens an add form with the configured defaults and checks.
func (s *Service) NewAddForm(now time.Time) *form.Form {
	opts := []form.Option{
		form.WithLength(s.defaults.Length),
		form.WithDefaults(s.defaults.Coach, s.defaults.Rink),
	}
	if s.conflictCheck {
		opts = append(opts, form.WithChecks(form.ConflictCheck(s.Lessons)))
	}
	return form.NewAdd(now, opts...)
}

// NewEditForm opens an edit form over a copy of l.
func (s *Service) NewEditForm(l lesson.Lesson) *form.Form {
	return form.NewEdit(l, form.WithLength(s.defaults.Length))
}

// Submit runs f against the store and records the outcome.
func (s *Service) Submit(ctx context.Context, f *form.Form, rec form.Recorder) (lesson.Lesson, error) {
	saved, err := f.Submit(ctx, s, rec)
	if err == nil {
		s.logger.Info(ctx, "lesson saved",
			logger.String("mode", f.Mode().String()),
			logger.String("id", saved.ID),
			logger.String("title", saved.Title()),
		)
		return saved, nil
	}

	switch {
	case errors.Is(err, lesson.ErrConflict):
		metrics.RecordConflict()
		metrics.RecordFormRejection("conflict")
	case errors.Is(err, lesson.ErrValidation):
		metrics.RecordFormRejection(lesson.Reason(err))
	case errors.Is(err, lesson.ErrPersistence):
		metrics.RecordFormRejection("persistence")
	}
	return lesson.Lesson{}, err
}

// SeenAndRecord reserves an idempotency key. For a repeated key it returns
// the lesson ID recorded for it, empty while the first submit is in flight.
func (s *Service) SeenAndRecord(ctx context.Context, key string) (string, bool) {
	id, seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordDuplicateSubmit()
	}
	return id, seen
}

// Complete records the lesson ID produced under key.
func (s *Service) Complete(ctx context.Context, key, lessonID string) {
	s.deduper.Complete(ctx, key, lessonID)
}

// Unrecord releases key after a failed submit.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

func (s *Service) Colors() lesson.ColorTable { return s.colors }
func (s *Service) Defaults() lesson.Defaults { return s.defaults }

// Rinks lists the selectable rinks.
func (s *Service) Rinks() []string {
	out := make([]string, len(s.rinks))
	copy(out, s.rinks)
	return out
}

// Location is the zone used to read and print local times.
func (s *Service) Location() *time.Location { return s.now().Location() }

// Now is the service clock.
func (s *Service) Now() time.Time { return s.now() }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":        s.started,
		"storeDriver":    s.storeDriver,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"conflictCheck":  s.conflictCheck,
		"exportSchedule": s.exportSchedule,
	}

	if s.started {
		queueLen := s.changes.Len(ctx)
		stats["queueLength"] = queueLen
		stats["subscribers"] = s.hub.Len()
		stats["idempotencyKeys"] = s.deduper.Size()
		if snap, ok := s.hub.Current(); ok {
			stats["snapshotVersion"] = snap.Version
			stats["snapshotAt"] = snap.At
		}
		if n, err := s.store.Count(ctx); err == nil {
			stats["totalLessons"] = n
			metrics.UpdateLessonCount(n)
		}
	}

	return stats
}
