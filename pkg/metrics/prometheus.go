// Package metrics provides Prometheus metrics for the rinkside scheduling service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Lessons
	lessonsTotal     prometheus.Gauge
	lessonWrites     *prometheus.CounterVec
	writeLatency     *prometheus.HistogramVec
	formRejections   *prometheus.CounterVec
	conflictsTotal   prometheus.Counter
	duplicateSubmits prometheus.Counter

	// Access gate
	unlockAttempts *prometheus.CounterVec

	// Subscriptions
	subscribers      prometheus.Gauge
	snapshotsSent    prometheus.Counter
	snapshotsDropped prometheus.Counter
	dispatchLatency  prometheus.Histogram

	// Change queue
	changeQueueSize     prometheus.Gauge
	changeQueueCapacity prometheus.Gauge
	changeQueueDrops    prometheus.Counter

	// Spreadsheet jobs
	exportsTotal *prometheus.CounterVec
	importedRows *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry served on /metrics

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

func init() { //nolint:gochecknoinits // registers the process-wide collectors
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rinkside",
		subsystem:        "scheduler",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.lessonsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "lessons", Help: "Number of lessons in the last published snapshot",
	})
	m.lessonWrites = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "lesson_writes_total", Help: "Lesson store writes by operation and outcome",
	}, []string{"op", "outcome"})
	m.writeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "lesson_write_latency_milliseconds", Help: "Lesson store write latency",
		Buckets: m.histogramBuckets,
	}, []string{"op"})
	m.formRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "form_rejections_total", Help: "Rejected lesson form submissions by reason",
	}, []string{"reason"})
	m.conflictsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "conflicts_total", Help: "Submissions blocked by the overlap check",
	})
	m.duplicateSubmits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "duplicate_submits_total", Help: "Add submissions ignored because of a repeated idempotency key",
	})

	m.unlockAttempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "unlock_attempts_total", Help: "Edit unlock attempts by outcome",
	}, []string{"outcome"})

	m.subscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "subscribers", Help: "Active snapshot subscribers",
	})
	m.snapshotsSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshots_delivered_total", Help: "Snapshots handed to subscribers",
	})
	m.snapshotsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshots_superseded_total", Help: "Pending snapshots replaced by a newer one before delivery",
	})
	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshot_dispatch_latency_milliseconds", Help: "Time from change notice to snapshot publish",
		Buckets: m.histogramBuckets,
	})

	m.changeQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "change_queue_size", Help: "Pending change notices",
	})
	m.changeQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "change_queue_capacity", Help: "Change queue capacity",
	})
	m.changeQueueDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "change_queue_coalesced_total", Help: "Change notices not queued because the queue was full",
	})

	m.exportsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "spreadsheet_exports_total", Help: "Spreadsheet exports by trigger and outcome",
	}, []string{"trigger", "outcome"})
	m.importedRows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "spreadsheet_import_rows_total", Help: "Imported spreadsheet rows by outcome",
	}, []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total", Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_request_duration_milliseconds", Help: "HTTP request duration",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_bytes", Help: "Allocated heap bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutines", Help: "Number of goroutines",
	})
}

// Lessons

func UpdateLessonCount(n int) { globalManager.lessonsTotal.Set(float64(n)) }
func RecordLessonWrite(op, outcome string) {
	globalManager.lessonWrites.WithLabelValues(op, outcome).Inc()
}
func RecordWriteLatency(op string, ms float64) {
	globalManager.writeLatency.WithLabelValues(op).Observe(ms)
}
func RecordFormRejection(reason string)  { globalManager.formRejections.WithLabelValues(reason).Inc() }
func RecordConflict()                    { globalManager.conflictsTotal.Inc() }
func RecordDuplicateSubmit()             { globalManager.duplicateSubmits.Inc() }
func RecordUnlockAttempt(outcome string) { globalManager.unlockAttempts.WithLabelValues(outcome).Inc() }
func RecordExport(trigger, outcome string) {
	globalManager.exportsTotal.WithLabelValues(trigger, outcome).Inc()
}
func RecordImportedRows(outcome string, n int) {
	globalManager.importedRows.WithLabelValues(outcome).Add(float64(n))
}
func UpdateSubscriberCount(n int)          { globalManager.subscribers.Set(float64(n)) }
func RecordSnapshotDelivered()             { globalManager.snapshotsSent.Inc() }
func RecordSnapshotSuperseded()            { globalManager.snapshotsDropped.Inc() }
func RecordDispatchLatency(ms float64)     { globalManager.dispatchLatency.Observe(ms) }
func UpdateChangeQueueSize(n int)          { globalManager.changeQueueSize.Set(float64(n)) }
func UpdateChangeQueueCapacity(n int)      { globalManager.changeQueueCapacity.Set(float64(n)) }
func RecordChangeCoalesced()               { globalManager.changeQueueDrops.Inc() }
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { globalManager.systemGoroutineCount.Set(float64(n)) }

// RecordHTTPRequest counts one finished request.
func RecordHTTPRequest(endpoint, method, status string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
}

// GetRegistry returns the registry served on /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
