// Package metrics provides Prometheus metrics for the ranking engine.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the ranking service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Rating engine
	battlesResolved     *prometheus.CounterVec
	battleParticipants  prometheus.Histogram
	reordersRequested   prometheus.Counter
	reordersNoop        prometheus.Counter
	reconcileCalls      prometheus.Counter
	cascadeNudges       prometheus.Counter
	staleOpsDropped     prometheus.Counter
	votesSubmitted      *prometheus.CounterVec
	itemsRemoved        prometheus.Counter
	pendingItems        prometheus.Gauge
	pendingConfirmed    prometheus.Counter
	battlesScheduled    prometheus.Counter
	duplicateCompletion prometheus.Counter

	// Batch processor
	queueLength        prometheus.Gauge
	queueCapacity      prometheus.Gauge
	batchFlushes       *prometheus.CounterVec
	batchSize          prometheus.Histogram
	coalescedOps       prometheus.Counter
	flushLatency       prometheus.Histogram
	queueEnqueueErrors prometheus.Counter

	// Rating store
	storeWrites        prometheus.Counter
	storeNotifications prometheus.Counter
	rankedItems        prometheus.Gauge

	// Persistence sync
	syncSaves   prometheus.Counter
	syncErrors  prometheus.Counter
	syncRetries prometheus.Counter
	syncLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// latencyBuckets are upper bounds in milliseconds.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000} //nolint:gochecknoglobals // constant bucket layout

// current holds the manager behind the package-level helpers and its registry.
var current atomic.Pointer[installed] //nolint:gochecknoglobals // intentional global for singleton metrics manager

type installed struct {
	manager  *Manager
	registry *prometheus.Registry
}

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Configure()
}

// Configure replaces the global manager with one built from opts on a fresh
// registry and returns that registry. Call it at startup, before GetRegistry
// is handed to an exporter.
func Configure(opts ...Option) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	opts = append(opts, WithPrometheusRegistry(registry))
	current.Store(&installed{manager: NewManager(opts...), registry: registry})
	return registry
}

func global() *Manager { return current.Load().manager }

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pokerank",
		subsystem:        "engine",
		histogramBuckets: latencyBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.NewRegistry(),
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
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.battlesResolved = m.counterVec("battles_resolved_total", "Battles applied to the rating store, by kind", "kind")
	m.battleParticipants = m.histogram("battle_participants", "Number of participants per resolved battle", []float64{2, 3, 4, 6, 8, 12})
	m.reordersRequested = m.counter("reorders_requested_total", "Drag-end reorders accepted by the controller")
	m.reordersNoop = m.counter("reorders_noop_total", "Drag-end reorders dropped because the item did not move")
	m.reconcileCalls = m.counter("reconcile_invocations_total", "Reorder reconciler invocations")
	m.cascadeNudges = m.counter("cascade_nudges_total", "Neighbor ratings nudged to break a score collision")
	m.staleOpsDropped = m.counter("stale_operations_dropped_total", "Pending operations superseded by a newer one for the same item")
	m.votesSubmitted = m.counterVec("votes_submitted_total", "Up/down votes applied, by direction", "direction")
	m.itemsRemoved = m.counter("items_removed_total", "Items removed from the ranked set")
	m.pendingItems = m.gauge("pending_items", "Items currently flagged pending")
	m.pendingConfirmed = m.counter("pending_confirmations_total", "Pending confirmations consumed by completed battles")
	m.battlesScheduled = m.counter("battles_scheduled_total", "Battle scheduled notifications (never confirm pending items)")
	m.duplicateCompletion = m.counter("battle_completions_duplicate_total", "Completed-battle reports ignored as duplicates")

	m.queueLength = m.gauge("queue_length", "Operations waiting for the next debounce flush")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum operations held before a forced flush")
	m.batchFlushes = m.counterVec("batch_flushes_total", "Batch processor flushes, by trigger", "trigger")
	m.batchSize = m.histogram("batch_size", "Operations handed to the reconciler per flush after coalescing", []float64{1, 2, 4, 8, 16, 32, 64, 128})
	m.coalescedOps = m.counter("coalesced_operations_total", "Operations discarded by per-item coalescing")
	m.flushLatency = m.histogram("flush_latency_milliseconds", "Time spent handling one flush", m.histogramBuckets)
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected by a closed queue")

	m.storeWrites = m.counter("store_writes_total", "Rating store writes")
	m.storeNotifications = m.counter("store_notifications_total", "Change notifications emitted by the rating store")
	m.rankedItems = m.gauge("ranked_items", "Items currently in the ranked set")

	m.syncSaves = m.counter("sync_saves_total", "Successful persistence saves")
	m.syncErrors = m.counter("sync_errors_total", "Failed persistence save attempts")
	m.syncRetries = m.counter("sync_retries_total", "Persistence save retries")
	m.syncLatency = m.histogram("sync_latency_milliseconds", "Persistence save latency", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in an error", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Rating engine.

// RecordBattleResolved counts a battle of the given kind ("pairwise" or "group").
func RecordBattleResolved(kind string, participants int) {
	global().battlesResolved.WithLabelValues(kind).Inc()
	global().battleParticipants.Observe(float64(participants))
}

// RecordReorderRequested counts an accepted drag-end.
func RecordReorderRequested() { global().reordersRequested.Inc() }

// RecordReorderNoop counts a drag-end that did not move its item.
func RecordReorderNoop() { global().reordersNoop.Inc() }

// RecordReconcile counts a reconciler invocation.
func RecordReconcile() { global().reconcileCalls.Inc() }

// RecordCascadeNudge counts a neighbor nudge.
func RecordCascadeNudge() { global().cascadeNudges.Inc() }

// RecordStaleOperationDropped counts an operation superseded before it ran.
func RecordStaleOperationDropped() { global().staleOpsDropped.Inc() }

// RecordVote counts an applied vote.
func RecordVote(direction string) { global().votesSubmitted.WithLabelValues(direction).Inc() }

// RecordItemRemoved counts an item leaving the ranked set.
func RecordItemRemoved() { global().itemsRemoved.Inc() }

// UpdatePendingItems sets the pending items gauge.
func UpdatePendingItems(count int) { global().pendingItems.Set(float64(count)) }

// RecordPendingConfirmation counts a consumed confirmation.
func RecordPendingConfirmation() { global().pendingConfirmed.Inc() }

// RecordBattleScheduled counts a scheduled-battle notification.
func RecordBattleScheduled() { global().battlesScheduled.Inc() }

// RecordDuplicateCompletion counts an ignored duplicate completion report.
func RecordDuplicateCompletion() { global().duplicateCompletion.Inc() }

// Batch processor.

// UpdateQueueLength sets the number of queued operations.
func UpdateQueueLength(n int) { global().queueLength.Set(float64(n)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(n int) { global().queueCapacity.Set(float64(n)) }

// RecordBatchFlush records a flush with its trigger, surviving size and coalesced count.
func RecordBatchFlush(trigger string, size, coalesced int) {
	global().batchFlushes.WithLabelValues(trigger).Inc()
	global().batchSize.Observe(float64(size))
	global().coalescedOps.Add(float64(coalesced))
}

// RecordFlushLatency records flush handling latency in milliseconds.
func RecordFlushLatency(latencyMs float64) { global().flushLatency.Observe(latencyMs) }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() { global().queueEnqueueErrors.Inc() }

// Rating store.

// RecordStoreWrite counts a store write.
func RecordStoreWrite() { global().storeWrites.Inc() }

// RecordStoreNotification counts a change notification.
func RecordStoreNotification() { global().storeNotifications.Inc() }

// UpdateRankedItems sets the ranked items gauge.
func UpdateRankedItems(n int) { global().rankedItems.Set(float64(n)) }

// Persistence sync.

// RecordSyncSave records a successful save and its latency.
func RecordSyncSave(latencyMs float64) {
	global().syncSaves.Inc()
	global().syncLatency.Observe(latencyMs)
}

// RecordSyncError counts a failed save attempt.
func RecordSyncError() { global().syncErrors.Inc() }

// RecordSyncRetry counts a save retry.
func RecordSyncRetry() { global().syncRetries.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	global().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	global().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	global().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	global().errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	global().errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	global().errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { global().systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { global().systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { global().systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}
