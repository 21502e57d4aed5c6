// Package metrics provides Prometheus metrics for the performance report service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the report service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Upload pipeline
	uploadsAccepted prometheus.Counter
	uploadsRejected *prometheus.CounterVec
	uploadRows      prometheus.Histogram
	cellsSanitized  *prometheus.CounterVec
	columnsResolved *prometheus.CounterVec
	uploadLatency   prometheus.Histogram

	// Guard
	rateLimited *prometheus.CounterVec
	sessions    prometheus.Gauge

	// Reports
	reportsGenerated *prometheus.CounterVec
	renderLatency    *prometheus.HistogramVec
	renderErrors     *prometheus.CounterVec

	// Render queue and workers
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueued     prometheus.Counter
	queueEnqueueError prometheus.Counter
	workerCount       prometheus.Gauge
	workerActive      prometheus.Gauge

	// Contacts
	contactsSubmitted *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "perfreport",
		subsystem:        "service",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
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

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
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

func (m *Manager) initializeMetrics() {
	m.uploadsAccepted = m.counter("uploads_accepted_total", "Total number of CSV uploads accepted")
	m.uploadsRejected = m.counterVec("uploads_rejected_total", "Total number of CSV uploads rejected by reason", "reason")
	m.uploadRows = m.histogram("upload_rows", "Athlete rows per accepted upload",
		[]float64{1, 5, 10, 25, 50, 100, 250, 500})
	m.cellsSanitized = m.counterVec("cells_sanitized_total", "Cells neutralized by threat class", "threat")
	m.columnsResolved = m.counterVec("columns_resolved_total", "Header columns by resolution outcome", "outcome")
	m.uploadLatency = m.histogram("upload_latency_milliseconds", "Upload processing latency in milliseconds",
		m.histogramBuckets)

	m.rateLimited = m.counterVec("rate_limited_total", "Requests denied by the rate limiter", "action")
	m.sessions = m.gauge("sessions_active", "Number of tracked sessions")

	m.reportsGenerated = m.counterVec("reports_generated_total", "Reports generated by kind", "kind")
	m.renderLatency = m.histogramVec("render_latency_milliseconds", "Report render latency in milliseconds", "kind")
	m.renderErrors = m.counterVec("render_errors_total", "Report render failures by kind", "kind")

	m.queueSize = m.gauge("queue_size", "Current number of pending render jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum render queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of render jobs enqueued")
	m.queueEnqueueError = m.counter("queue_enqueue_errors_total", "Total number of rejected render jobs")
	m.workerCount = m.gauge("worker_count", "Configured render workers")
	m.workerActive = m.gauge("worker_active_count", "Render workers currently busy")

	m.contactsSubmitted = m.counterVec("contacts_submitted_total", "Contact submissions by outcome", "outcome")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50})
}

// RecordUploadAccepted records an accepted upload with its row count.
func RecordUploadAccepted(rows int) {
	globalManager.uploadsAccepted.Inc()
	globalManager.uploadRows.Observe(float64(rows))
}

// RecordUploadRejected records a rejected upload.
func RecordUploadRejected(reason string) {
	globalManager.uploadsRejected.WithLabelValues(reason).Inc()
}

// RecordCellsSanitized adds n neutralized cells for a threat class.
func RecordCellsSanitized(threat string, n int) {
	if n <= 0 {
		return
	}
	globalManager.cellsSanitized.WithLabelValues(threat).Add(float64(n))
}

// RecordColumnsResolved adds n header columns with the given outcome.
func RecordColumnsResolved(outcome string, n int) {
	if n <= 0 {
		return
	}
	globalManager.columnsResolved.WithLabelValues(outcome).Add(float64(n))
}

// RecordUploadLatency records upload processing latency.
func RecordUploadLatency(latencyMs float64) {
	globalManager.uploadLatency.Observe(latencyMs)
}

// RecordRateLimited records a denied request.
func RecordRateLimited(action string) {
	globalManager.rateLimited.WithLabelValues(action).Inc()
}

// UpdateSessionCount sets the number of tracked sessions.
func UpdateSessionCount(count int) {
	globalManager.sessions.Set(float64(count))
}

// RecordReportGenerated records a finished report.
func RecordReportGenerated(kind string, latencyMs float64) {
	globalManager.reportsGenerated.WithLabelValues(kind).Inc()
	globalManager.renderLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordRenderError records a failed render.
func RecordRenderError(kind string) {
	globalManager.renderErrors.WithLabelValues(kind).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueError.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive adjusts the busy worker gauge by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActive.Add(float64(delta))
}

// RecordContactSubmitted records a contact submission outcome.
func RecordContactSubmitted(outcome string) {
	globalManager.contactsSubmitted.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
