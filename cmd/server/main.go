package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/rinkside/internal/adapters/http/api"
	"github.com/okian/rinkside/internal/adapters/http/site"
	"github.com/okian/rinkside/internal/adapters/http/swagger"
	"github.com/okian/rinkside/internal/adapters/kv"
	app "github.com/okian/rinkside/internal/app"
	"github.com/okian/rinkside/internal/config"
	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/pkg/logger"
	"github.com/okian/rinkside/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
	sessionKeyBytes        = 32
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if cfg.LogFormat != logger.FormatText {
		if err := logger.InitWith(os.Stderr, cfg.LogFormat); err != nil {
			os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
			os.Exit(1)
		}
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc := newService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, sessionKey(ctx, cfg, log), log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

func newService(cfg *config.Config, log logger.Logger) *app.Service {
	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithStoreDriver(cfg.StoreDriver, cfg.DBPath),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithConflictCheck(cfg.ConflictCheck),
		app.WithDefaults(lesson.Defaults{
			Coach:  cfg.DefaultCoach,
			Rink:   cfg.DefaultRink,
			Length: time.Duration(cfg.LessonMinutes) * time.Minute,
		}),
		app.WithColors(lesson.NewColorTable(cfg.CoachColors, cfg.FallbackColor)),
		app.WithRinks(cfg.Rinks),
		app.WithExportSchedule(cfg.ExportSchedule, cfg.ExportDir),
	)
}

// newMux registers the docs, the API and the calendar page.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service, key []byte, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc,
		api.WithCookieStore(kv.NewCookieStore(key, cfg.CookieSecure, kv.WithLocalDir(cfg.LocalDir))),
		api.WithSecret(cfg.EditPassword),
		api.WithLogger(log.Named("api")),
	)
	apiServer.Register(ctx, mux)

	site.Register(ctx, mux)
	return mux
}

// sessionKey returns the configured cookie key or a random one.
func sessionKey(ctx context.Context, cfg *config.Config, log logger.Logger) []byte {
	if cfg.SessionKey != "" {
		return []byte(cfg.SessionKey)
	}
	log.Warn(ctx, "session_key not set; browser state resets on restart")
	return securecookie.GenerateRandomKey(sessionKeyBytes)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics refreshes gauges GetStats does not touch.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateChangeQueueSize(queueLen)
	}
	if subscribers, ok := stats["subscribers"].(int); ok {
		metrics.UpdateSubscriberCount(subscribers)
	}
}
