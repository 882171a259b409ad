// Package metrics provides Prometheus metrics for the SHIFT assessment service.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bucket layout for the total points histogram: one bucket per maturity
// band edge plus the ceiling.
var pointsBuckets = []float64{50, 100, 150, 200, 250, 300, 350, 385}

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Assessment flow
	assessmentsCreated   prometheus.Counter
	answersSubmitted     prometheus.Counter
	submissionsDuplicate prometheus.Counter
	answersDropped       *prometheus.CounterVec
	answersClamped       prometheus.Counter

	// Scoring
	scoreRuns      *prometheus.CounterVec
	totalPoints    prometheus.Histogram
	scoringLatency prometheus.Histogram
	scoringErrors  prometheus.Counter

	// Catalog
	catalogQuestions *prometheus.GaugeVec
	catalogReloads   *prometheus.CounterVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram
	rescoresSkipped        prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository
	repositoryShardCount      prometheus.Gauge
	repositoryRecordsTotal    prometheus.Gauge
	repositoryRecordsPerShard *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide metrics registry

var globalManager atomic.Pointer[Manager] //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager.Store(NewManager(WithPrometheusRegistry(customRegistry)))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shift",
		subsystem:        "assessment",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// Use replaces the manager behind the package-level recorders.
func Use(m *Manager) error {
	if m == nil {
		return ErrNoManager
	}
	globalManager.Store(m)
	return nil
}

func get() *Manager { return globalManager.Load() }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.assessmentsCreated = m.counter("assessments_created_total", "Total number of assessments created")
	m.answersSubmitted = m.counter("answers_submitted_total", "Total number of answers accepted")
	m.submissionsDuplicate = m.counter("submissions_duplicate_total", "Total number of replayed answer submissions")
	m.answersDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "answers_dropped_total",
		Help: "Answers ignored by the scoring engine by reason",
	}, []string{"reason"})
	m.answersClamped = m.counter("answers_clamped_total", "Answers clamped into the rating range")

	m.scoreRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "score_runs_total",
		Help: "Scoring runs by resulting maturity level",
	}, []string{"maturity"})
	m.totalPoints = m.histogram("total_points", "Distribution of total points per scoring run", pointsBuckets)
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Scoring latency in milliseconds", m.histogramBuckets)
	m.scoringErrors = m.counter("scoring_errors_total", "Scoring runs that failed before completing")

	m.catalogQuestions = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "catalog_questions",
		Help: "Questions in the loaded catalog by pillar",
	}, []string{"pillar"})
	m.catalogReloads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "catalog_reloads_total",
		Help: "Catalog reloads by result",
	}, []string{"result"})

	m.queueSize = m.gauge("queue_size", "Current number of pending rescore jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of rescore jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of rescore jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds",
		"Time a rescore job spent queued in milliseconds", m.histogramBuckets)
	m.rescoresSkipped = m.counter("rescores_skipped_total", "Submissions stored without a background rescore")

	m.workerCount = m.gauge("worker_count", "Configured number of rescore workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Rescore job processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed rescore jobs")

	m.repositoryShardCount = m.gauge("repository_shard_count", "Total number of repository shards")
	m.repositoryRecordsTotal = m.gauge("repository_records_total", "Assessments stored across all shards")
	m.repositoryRecordsPerShard = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "repository_records_per_shard",
		Help: "Assessments stored per shard",
	}, []string{"shard_id"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_by_endpoint_total",
		Help: "Total number of error responses by endpoint",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordAssessmentCreated increments the assessments counter.
func RecordAssessmentCreated() { get().assessmentsCreated.Inc() }

// RecordAnswersSubmitted adds n accepted answers.
func RecordAnswersSubmitted(n int) { get().answersSubmitted.Add(float64(n)) }

// RecordSubmissionDuplicate counts a replayed submission id.
func RecordSubmissionDuplicate() { get().submissionsDuplicate.Inc() }

// RecordAnswersDropped adds n answers dropped for reason. Zero is ignored.
func RecordAnswersDropped(reason string, n int) {
	if n > 0 {
		get().answersDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordAnswersClamped adds n clamped answers.
func RecordAnswersClamped(n int) {
	if n > 0 {
		get().answersClamped.Add(float64(n))
	}
}

// RecordScoreRun records a completed scoring run.
func RecordScoreRun(maturity string, totalPoints, latencyMs float64) {
	m := get()
	m.scoreRuns.WithLabelValues(maturity).Inc()
	m.totalPoints.Observe(totalPoints)
	m.scoringLatency.Observe(latencyMs)
}

// RecordScoringError increments the scoring errors counter.
func RecordScoringError() { get().scoringErrors.Inc() }

// UpdateCatalogQuestions sets the question count of a pillar.
func UpdateCatalogQuestions(pillar string, count int) {
	get().catalogQuestions.WithLabelValues(pillar).Set(float64(count))
}

// RecordCatalogReload counts a reload attempt.
func RecordCatalogReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	get().catalogReloads.WithLabelValues(result).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { get().queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { get().queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { get().queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { get().queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { get().queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { get().queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records how long a job waited.
func RecordQueueProcessingLatency(latencyMs float64) { get().queueProcessingLatency.Observe(latencyMs) }

// RecordRescoreSkipped counts a submission stored without a rescore.
func RecordRescoreSkipped() { get().rescoresSkipped.Inc() }

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { get().workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { get().workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) { get().workerProcessingLatency.Observe(latencyMs) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { get().workerErrors.Inc() }

// UpdateRepositoryShardCount sets the total number of repository shards.
func UpdateRepositoryShardCount(count int) { get().repositoryShardCount.Set(float64(count)) }

// UpdateRepositoryRecordsTotal sets the number of stored assessments.
func UpdateRepositoryRecordsTotal(count int) { get().repositoryRecordsTotal.Set(float64(count)) }

// UpdateRepositoryRecordsPerShard sets the record count of one shard.
func UpdateRepositoryRecordsPerShard(shard, count int) {
	get().repositoryRecordsPerShard.WithLabelValues(strconv.Itoa(shard)).Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	get().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	get().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	get().errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { get().systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { get().systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the custom registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
