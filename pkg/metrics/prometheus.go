// Package metrics provides Prometheus metrics for the perfect circle service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring
	strokesScored  *prometheus.CounterVec
	strokeScore    *prometheus.HistogramVec
	strokeSamples  prometheus.Histogram
	scoringLatency prometheus.Histogram
	newHighScores  prometheus.Counter
	autoClosures   prometheus.Counter

	// Attempts
	attemptsProcessed prometheus.Counter
	attemptsDuplicate prometheus.Counter

	// Queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec
	workerCount        prometheus.Gauge
	workerErrors       *prometheus.CounterVec

	// Store
	storeRecords prometheus.Gauge
	storeLatency *prometheus.HistogramVec

	// Sessions
	activeSessions  prometheus.Gauge
	expiredSessions prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "perfectcircle",
		subsystem:        "scorer",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collector definitions
	auto := promauto.With(m.registry)

	m.strokesScored = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "strokes_scored_total",
		Help:      "Strokes passed through the scorer by mode and outcome",
	}, []string{"mode", "outcome"})

	m.strokeScore = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stroke_score_percent",
		Help:      "Distribution of circularity scores",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	}, []string{"mode"})

	m.strokeSamples = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stroke_samples",
		Help:      "Number of points per scored stroke",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 8),
	})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_latency_milliseconds",
		Help:      "Time spent scoring a stroke in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.newHighScores = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "new_high_scores_total",
		Help:      "Final scores that beat the stored best",
	})

	m.autoClosures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "auto_closures_total",
		Help:      "Drawing sessions finished by returning to the start point",
	})

	m.attemptsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attempts_processed_total",
		Help:      "Asynchronous attempts scored by the worker pool",
	})

	m.attemptsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attempts_duplicate_total",
		Help:      "Attempts rejected because their id was already seen",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Attempts waiting in the queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum number of queued attempts",
	})

	m.queueEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Failed enqueue operations by reason",
	}, []string{"reason"})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Workers consuming the attempt queue",
	})

	m.workerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Worker failures by stage",
	}, []string{"stage"})

	m.storeRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_records",
		Help:      "Players with a recorded best score",
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_latency_milliseconds",
		Help:      "High score store operation latency by operation",
		Buckets:   m.histogramBuckets,
	}, []string{"op"})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_sessions",
		Help:      "Open drawing sessions",
	})

	m.expiredSessions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_expired_total",
		Help:      "Drawing sessions swept after the idle ttl",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// RecordStroke counts one scorer invocation and, for scored strokes,
// observes its score and size.
func (m *Manager) RecordStroke(mode, outcome string, score float64, samples int) {
	m.strokesScored.WithLabelValues(mode, outcome).Inc()
	if outcome == "scored" || outcome == "degenerate" {
		m.strokeScore.WithLabelValues(mode).Observe(score)
		m.strokeSamples.Observe(float64(samples))
	}
}

func (m *Manager) RecordScoringLatency(ms float64)   { m.scoringLatency.Observe(ms) }
func (m *Manager) RecordNewHighScore()               { m.newHighScores.Inc() }
func (m *Manager) RecordAutoClosure()                { m.autoClosures.Inc() }
func (m *Manager) RecordAttemptProcessed()           { m.attemptsProcessed.Inc() }
func (m *Manager) RecordAttemptDuplicate()           { m.attemptsDuplicate.Inc() }
func (m *Manager) UpdateQueueSize(n int)             { m.queueSize.Set(float64(n)) }
func (m *Manager) UpdateQueueCapacity(n int)         { m.queueCapacity.Set(float64(n)) }
func (m *Manager) RecordEnqueueError(reason string)  { m.queueEnqueueErrors.WithLabelValues(reason).Inc() }
func (m *Manager) UpdateWorkerCount(n int)           { m.workerCount.Set(float64(n)) }
func (m *Manager) RecordWorkerError(stage string)    { m.workerErrors.WithLabelValues(stage).Inc() }
func (m *Manager) UpdateStoreRecords(n int)          { m.storeRecords.Set(float64(n)) }
func (m *Manager) RecordStoreLatency(op string, ms float64) {
	m.storeLatency.WithLabelValues(op).Observe(ms)
}
func (m *Manager) UpdateActiveSessions(n int) { m.activeSessions.Set(float64(n)) }
func (m *Manager) RecordSessionsExpired(n int) {
	m.expiredSessions.Add(float64(n))
}

// RecordHTTPRequest counts a request and observes its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) { m.systemMemoryUsage.Set(float64(bytes)) }
func (m *Manager) UpdateSystemGoroutineCount(n int)     { m.systemGoroutineCount.Set(float64(n)) }

// Package-level helpers delegate to the global manager.

func RecordStroke(mode, outcome string, score float64, samples int) {
	globalManager.RecordStroke(mode, outcome, score, samples)
}
func RecordScoringLatency(ms float64)            { globalManager.RecordScoringLatency(ms) }
func RecordNewHighScore()                        { globalManager.RecordNewHighScore() }
func RecordAutoClosure()                         { globalManager.RecordAutoClosure() }
func RecordAttemptProcessed()                    { globalManager.RecordAttemptProcessed() }
func RecordAttemptDuplicate()                    { globalManager.RecordAttemptDuplicate() }
func UpdateQueueSize(n int)                      { globalManager.UpdateQueueSize(n) }
func UpdateQueueCapacity(n int)                  { globalManager.UpdateQueueCapacity(n) }
func RecordEnqueueError(reason string)           { globalManager.RecordEnqueueError(reason) }
func UpdateWorkerCount(n int)                    { globalManager.UpdateWorkerCount(n) }
func RecordWorkerError(stage string)             { globalManager.RecordWorkerError(stage) }
func UpdateStoreRecords(n int)                   { globalManager.UpdateStoreRecords(n) }
func RecordStoreLatency(op string, ms float64)   { globalManager.RecordStoreLatency(op, ms) }
func UpdateActiveSessions(n int)                 { globalManager.UpdateActiveSessions(n) }
func RecordSessionsExpired(n int)                { globalManager.RecordSessionsExpired(n) }
func UpdateSystemMemoryUsage(bytes uint64)       { globalManager.UpdateSystemMemoryUsage(bytes) }
func UpdateSystemGoroutineCount(n int)           { globalManager.UpdateSystemGoroutineCount(n) }
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
