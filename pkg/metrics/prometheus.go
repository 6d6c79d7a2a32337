// Package metrics provides Prometheus metrics for the gestor reconciliation service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the gestor service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Detection - what the classifier found
	changesDetected  *prometheus.CounterVec
	recordsRejected  prometheus.Counter
	identityCollided prometheus.Counter
	diffDuration     prometheus.Histogram

	// Application - what happened against the record store
	eventsApplied      *prometheus.CounterVec
	eventsFailed       *prometheus.CounterVec
	applyBatchDuration prometheus.Histogram
	storeCallLatency   *prometheus.HistogramVec

	// Snapshot
	snapshotRecords     prometheus.Gauge
	snapshotCaptures    prometheus.Counter
	snapshotLastCapture prometheus.Gauge

	// Reviews
	pendingReviews prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gestor",
		subsystem:        "reconcile",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)
	latencyBuckets := []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	m.changesDetected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("changes_detected_total"),
		Help:        "Change events produced by classification, by kind",
		ConstLabels: labels,
	}, []string{"kind"})

	m.recordsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("records_rejected_total"),
		Help:        "Records skipped during classification because they were malformed",
		ConstLabels: labels,
	})

	m.identityCollided = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("identity_collisions_total"),
		Help:        "Match passes aborted because two records shared an identity",
		ConstLabels: labels,
	})

	m.diffDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("diff_duration_milliseconds"),
		Help:        "Time spent matching and classifying one incoming dataset",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.eventsApplied = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("events_applied_total"),
		Help:        "Change events fully applied against the record store, by kind",
		ConstLabels: labels,
	}, []string{"kind"})

	m.eventsFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("events_failed_total"),
		Help:        "Change events that failed, by kind and failing stage",
		ConstLabels: labels,
	}, []string{"kind", "stage"})

	m.applyBatchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("apply_batch_duration_milliseconds"),
		Help:        "Wall time of one sequential apply batch",
		Buckets:     latencyBuckets,
		ConstLabels: labels,
	})

	m.storeCallLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("store_call_latency_milliseconds"),
		Help:        "Latency of record store calls by operation and result",
		Buckets:     latencyBuckets,
		ConstLabels: labels,
	}, []string{"operation", "result"})

	m.snapshotRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("snapshot_records"),
		Help:        "Number of records in the current baseline snapshot",
		ConstLabels: labels,
	})

	m.snapshotCaptures = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("snapshot_captures_total"),
		Help:        "Number of snapshot captures",
		ConstLabels: labels,
	})

	m.snapshotLastCapture = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("snapshot_last_capture_unix"),
		Help:        "Unix time of the last snapshot capture",
		ConstLabels: labels,
	})

	m.pendingReviews = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("pending_reviews"),
		Help:        "Reviews detected but not yet applied",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_component_total"),
		Help:        "Errors by component and error type",
		ConstLabels: labels,
	}, []string{"component", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_type_total"),
		Help:        "Errors by type and severity",
		ConstLabels: labels,
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_endpoint_total"),
		Help:        "HTTP errors by endpoint, method and error type",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "Allocated heap memory in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// RecordChangeDetected increments the detected-changes counter for kind.
func RecordChangeDetected(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.changesDetected.WithLabelValues(kind).Inc()
}

// RecordRecordRejected counts a malformed record skipped by classification.
func RecordRecordRejected() {
	if !globalManager.enabled {
		return
	}
	globalManager.recordsRejected.Inc()
}

// RecordIdentityCollision counts a match pass aborted by duplicate keys.
func RecordIdentityCollision() {
	if !globalManager.enabled {
		return
	}
	globalManager.identityCollided.Inc()
}

// RecordDiffDuration records how long one diff took, in milliseconds.
func RecordDiffDuration(ms float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.diffDuration.Observe(ms)
}

// RecordEventApplied counts a fully applied change event.
func RecordEventApplied(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.eventsApplied.WithLabelValues(kind).Inc()
}

// RecordEventFailed counts a failed change event at the given stage.
func RecordEventFailed(kind, stage string) {
	if !globalManager.enabled {
		return
	}
	globalManager.eventsFailed.WithLabelValues(kind, stage).Inc()
}

// RecordApplyBatchDuration records the duration of one apply batch in milliseconds.
func RecordApplyBatchDuration(ms float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.applyBatchDuration.Observe(ms)
}

// RecordStoreCall records the latency of one record store call.
func RecordStoreCall(operation string, ok bool, ms float64) {
	if !globalManager.enabled {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	globalManager.storeCallLatency.WithLabelValues(operation, result).Observe(ms)
}

// RecordSnapshotCaptured updates the snapshot gauges after a capture.
func RecordSnapshotCaptured(records int, at time.Time) {
	if !globalManager.enabled {
		return
	}
	globalManager.snapshotCaptures.Inc()
	globalManager.snapshotRecords.Set(float64(records))
	globalManager.snapshotLastCapture.Set(float64(at.Unix()))
}

// UpdateSnapshotRecords sets the snapshot size gauge.
func UpdateSnapshotRecords(records int) {
	if !globalManager.enabled {
		return
	}
	globalManager.snapshotRecords.Set(float64(records))
}

// UpdatePendingReviews sets the pending reviews gauge.
func UpdatePendingReviews(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.pendingReviews.Set(float64(n))
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records errors by component and error type.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records errors by type and severity.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records errors by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage updates the system memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// Configure replaces the global manager with one built from opts on a fresh
// registry, which GetRegistry then returns. Call it at startup, before
// anything records.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

// RefreshInterval is how often sampled gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// SetEnabled toggles recording on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom registry all global metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
