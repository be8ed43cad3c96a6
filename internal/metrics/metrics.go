// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - DuckDB query performance (bronze/silver/gold/operational store)
// - Dispatcher HTTP endpoint latency and throughput
// - Fetch substrate outcomes, rate limiting, and circuit breaking
// - Pipeline stage throughput and latency
// - In-memory cache efficiency (artist/track resolution caches)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// HTTP / dispatcher control surface metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_http_requests_total",
			Help: "Total number of dispatcher HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_http_request_duration_seconds",
			Help:    "Duration of dispatcher HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Fetch substrate metrics
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Total number of fetch attempts, including retries",
		},
		[]string{"source", "outcome"}, // outcome: "success", or the failed attempt's model.ErrorCode ("" when unclassified)
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Duration of a single fetch attempt, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	FetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_retries_total",
			Help: "Total number of retry attempts issued by the fetch substrate",
		},
		[]string{"source"},
	)

	RateLimiterTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fetch_rate_limiter_rate",
			Help: "Current adapted token-bucket refill rate per host, in requests/second",
		},
		[]string{"host"},
	)

	ProxyHealthScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fetch_proxy_health_score",
			Help: "Current health score of a proxy in the pool, 0..1",
		},
		[]string{"proxy"},
	)

	CaptchaDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_captcha_detections_total",
			Help: "Total number of fetches flagged as CAPTCHA-blocked by the oracle",
		},
		[]string{"source"},
	)

	// Circuit breaker metrics (sony/gobreaker/v2), one breaker per host
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state per host (0=closed, 1=half-open, 2=open)",
		},
		[]string{"host"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests passed through a circuit breaker",
		},
		[]string{"host", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"host", "from", "to"},
	)

	// Pipeline stage metrics
	StageRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_records_processed_total",
			Help: "Total number of records processed by a pipeline stage",
		},
		[]string{"stage", "outcome"}, // stage: bronze, silver, gold, operational; outcome: written (bronze), processed (silver), rebuilt (gold, operational), rejected
	)

	StageProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stage_processing_duration_seconds",
			Help:    "Duration of a single pipeline stage processing unit, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageBacklog = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stage_backlog_size",
			Help: "Number of records awaiting processing by a pipeline stage",
		},
		[]string{"stage"},
	)

	// Cache metrics (artist/track resolution caches)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_size",
			Help: "Current number of entries in a cache",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache"},
	)

	// Dispatcher job metrics
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_jobs_submitted_total",
			Help: "Total number of scrape jobs submitted",
		},
		[]string{"source"},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_jobs_completed_total",
			Help: "Total number of scrape jobs completed",
		},
		[]string{"source", "outcome"}, // outcome: report status: completed, partial, failed, timeout
	)

	JobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_job_queue_depth",
			Help: "Number of jobs holding an admission slot, sampled when a job is admitted",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "setlistgraph_app_info",
			Help: "Application build/version information, always 1",
		},
		[]string{"version", "commit"},
	)
)

// RecordDBQuery records the outcome and duration of a DuckDB query.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records a completed dispatcher HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// APIActiveRequests counts dispatcher HTTP requests currently being served.
var APIActiveRequests = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "dispatcher_http_active_requests",
		Help: "Number of dispatcher HTTP requests currently being served",
	},
)

// TrackActiveRequest increments the active-request gauge when active is
// true and decrements it when active is false.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordFetchAttempt records the outcome of a single fetch attempt.
func RecordFetchAttempt(source, outcome string, duration time.Duration) {
	FetchAttemptsTotal.WithLabelValues(source, outcome).Inc()
	FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordFetchRetry records a retry attempt for a given source.
func RecordFetchRetry(source string) {
	FetchRetriesTotal.WithLabelValues(source).Inc()
}

// SetRateLimiterRate updates the current adapted rate for a host.
func SetRateLimiterRate(host string, rate float64) {
	RateLimiterTokens.WithLabelValues(host).Set(rate)
}

// SetProxyHealthScore updates the current health score for a proxy.
func SetProxyHealthScore(proxy string, score float64) {
	ProxyHealthScore.WithLabelValues(proxy).Set(score)
}

// RecordCaptchaDetection records a CAPTCHA-blocked fetch for a source.
func RecordCaptchaDetection(source string) {
	CaptchaDetections.WithLabelValues(source).Inc()
}

// circuitBreakerStateValue maps gobreaker state names to a numeric gauge value.
func circuitBreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordCircuitBreakerTransition records a circuit breaker state change for a host.
func RecordCircuitBreakerTransition(host, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(host, from, to).Inc()
	CircuitBreakerState.WithLabelValues(host).Set(circuitBreakerStateValue(to))
}

// RecordCircuitBreakerRequest records a request outcome as seen by a host's breaker.
func RecordCircuitBreakerRequest(host, result string) {
	CircuitBreakerRequests.WithLabelValues(host, result).Inc()
}

// RecordStageRecord records one record processed by a pipeline stage.
func RecordStageRecord(stage, outcome string) {
	StageRecordsProcessed.WithLabelValues(stage, outcome).Inc()
}

// RecordStageDuration records the processing duration for a pipeline stage unit of work.
func RecordStageDuration(stage string, duration time.Duration) {
	StageProcessingDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// SetStageBacklog updates the current backlog size for a pipeline stage.
func SetStageBacklog(stage string, size float64) {
	StageBacklog.WithLabelValues(stage).Set(size)
}

// RecordCacheHit records a cache hit for the named cache.
func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss for the named cache.
func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

// SetCacheSize updates the current entry count for the named cache.
func SetCacheSize(cache string, size float64) {
	CacheSize.WithLabelValues(cache).Set(size)
}

// RecordCacheEviction records an eviction for the named cache.
func RecordCacheEviction(cache string) {
	CacheEvictions.WithLabelValues(cache).Inc()
}

// RecordJobSubmitted records a scrape job submission for a source.
func RecordJobSubmitted(source string) {
	JobsSubmitted.WithLabelValues(source).Inc()
}

// RecordJobCompleted records a scrape job's terminal outcome.
func RecordJobCompleted(source, outcome string) {
	JobsCompleted.WithLabelValues(source, outcome).Inc()
}

// SetJobQueueDepth updates the dispatcher's current queue depth.
func SetJobQueueDepth(depth float64) {
	JobQueueDepth.Set(depth)
}
