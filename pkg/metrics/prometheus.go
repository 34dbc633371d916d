// Package metrics provides Prometheus metrics for the judgeboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds; judge APIs routinely take seconds.
var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Reconciliation cycles
	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	cycleInProgress prometheus.Gauge
	memberOutcomes  *prometheus.CounterVec

	// Source fetches
	fetchAttempts  *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	fallbackUsage  *prometheus.CounterVec
	absentSources  *prometheus.CounterVec
	rateLimitWaits *prometheus.CounterVec

	// Storage
	storageLatency   *prometheus.HistogramVec
	storageErrors    *prometheus.CounterVec
	leaderboardSize  prometheus.Gauge
	leaderboardWrite prometheus.Counter

	// Refresh queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec
	refreshCoalesced   prometheus.Counter
	workerCount        prometheus.Gauge
	workerLatency      prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure replaces the process-wide manager with one built from opts on a
// fresh registry. Call it once at startup, before metrics are recorded or
// served.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(reg)}, opts...)...)
	customRegistry = reg
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "judgeboard",
		subsystem:        "leaderboard",
		histogramBuckets: defaultLatencyBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	m.cyclesTotal = m.counterVec("reconcile_cycles_total", "Reconciliation cycles by result", "result")
	m.cycleDuration = m.histogram("reconcile_cycle_duration_milliseconds", "Wall time of a full reconciliation cycle")
	m.cycleInProgress = m.gauge("reconcile_cycle_in_progress", "1 while a reconciliation cycle is running")
	m.memberOutcomes = m.counterVec("member_outcomes_total", "Per-member reconciliation outcomes", "status")

	m.fetchAttempts = m.counterVec("fetch_attempts_total", "Source fetch attempts", "source")
	m.fetchErrors = m.counterVec("fetch_errors_total", "Source fetch failures by kind", "source", "kind")
	m.fetchLatency = m.histogramVec("fetch_latency_milliseconds", "Source fetch latency", "source")
	m.fallbackUsage = m.counterVec("fallback_snapshots_total", "Stored snapshots used after a failed fetch", "source")
	m.absentSources = m.counterVec("absent_sources_total", "Failed fetches with no stored snapshot", "source")
	m.rateLimitWaits = m.counterVec("fetch_rate_limited_total", "Fetches that waited on the client token bucket", "host")

	m.storageLatency = m.histogramVec("storage_latency_milliseconds", "Storage operation latency", "op")
	m.storageErrors = m.counterVec("storage_errors_total", "Storage operation failures", "op")
	m.leaderboardSize = m.gauge("entries", "Rows currently in the leaderboard")
	m.leaderboardWrite = m.counter("entry_upserts_total", "Leaderboard upserts")

	m.queueSize = m.gauge("refresh_queue_size", "Pending single-member refresh jobs")
	m.queueCapacity = m.gauge("refresh_queue_capacity", "Capacity of the refresh queue")
	m.queueEnqueueErrors = m.counterVec("refresh_enqueue_errors_total", "Rejected refresh jobs by reason", "reason")
	m.refreshCoalesced = m.counter("refresh_coalesced_total", "Refresh requests merged into an already pending job")
	m.workerCount = m.gauge("refresh_worker_count", "Refresh workers running")
	m.workerLatency = m.histogram("refresh_job_latency_milliseconds", "Time spent processing one refresh job")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses by type and severity", "endpoint", "error_type", "severity")
}

// Reconciliation.

// RecordCycle records a finished cycle with result "ok", "cancelled" or "error".
func RecordCycle(result string, durationMs float64) {
	globalManager.cyclesTotal.WithLabelValues(result).Inc()
	globalManager.cycleDuration.Observe(durationMs)
}

// SetCycleInProgress flips the in-progress gauge.
func SetCycleInProgress(running bool) {
	if running {
		globalManager.cycleInProgress.Set(1)
		return
	}
	globalManager.cycleInProgress.Set(0)
}

// RecordMemberOutcome counts a member outcome (scored, skipped, failed).
func RecordMemberOutcome(status string) {
	globalManager.memberOutcomes.WithLabelValues(status).Inc()
}

// Fetching.

// RecordFetch records one fetch attempt and its latency.
func RecordFetch(source string, latencyMs float64) {
	globalManager.fetchAttempts.WithLabelValues(source).Inc()
	globalManager.fetchLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordFetchError counts a failed fetch.
func RecordFetchError(source, kind string) {
	globalManager.fetchErrors.WithLabelValues(source, kind).Inc()
}

// RecordFallback counts use of a last-known-good snapshot.
func RecordFallback(source string) {
	globalManager.fallbackUsage.WithLabelValues(source).Inc()
}

// RecordAbsent counts a source contributing nothing for a member.
func RecordAbsent(source string) {
	globalManager.absentSources.WithLabelValues(source).Inc()
}

// RecordRateLimitWait counts a fetch delayed by the token bucket.
func RecordRateLimitWait(host string) {
	globalManager.rateLimitWaits.WithLabelValues(host).Inc()
}

// Storage.

// RecordStorageOp records the latency of a storage operation.
func RecordStorageOp(op string, latencyMs float64) {
	globalManager.storageLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStorageError counts a failed storage operation.
func RecordStorageError(op string) {
	globalManager.storageErrors.WithLabelValues(op).Inc()
}

// UpdateLeaderboardSize sets the number of leaderboard rows.
func UpdateLeaderboardSize(n int) {
	globalManager.leaderboardSize.Set(float64(n))
}

// RecordLeaderboardUpsert counts a leaderboard write.
func RecordLeaderboardUpsert() {
	globalManager.leaderboardWrite.Inc()
}

// Queue and workers.

// UpdateQueueSize sets the refresh queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the refresh queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected refresh job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordRefreshCoalesced counts a refresh request folded into a pending job.
func RecordRefreshCoalesced() {
	globalManager.refreshCoalesced.Inc()
}

// UpdateWorkerCount sets the number of refresh workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerLatency records the processing time of a refresh job.
func RecordWorkerLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError counts an error response.
func RecordHTTPError(endpoint, errorType, severity string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType, severity).Inc()
}

// GetRegistry returns the registry all package-level metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
