// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring fetch substrate health, pipeline
stage throughput, and dispatcher API performance.

# Overview

The package provides metrics for:
  - Dispatcher HTTP request latency and throughput
  - DuckDB query performance
  - Fetch substrate outcomes, retries, adaptive rate, proxy health
  - Circuit breaker state transitions per host
  - Pipeline stage (bronze/silver/gold/operational) throughput and backlog
  - Cache hit/miss rates (artist and track resolution caches)
  - Scrape job submission and completion counts

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8088/metrics

# Available Metrics

HTTP Metrics:
  - dispatcher_http_requests_total: Total dispatcher HTTP requests (counter)
    Labels: method, endpoint, status_code
  - dispatcher_http_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - dispatcher_http_active_requests: Requests currently being served (gauge)

Database Metrics:
  - duckdb_query_duration_seconds: Query execution time (histogram)
    Labels: operation, table
  - duckdb_query_errors_total: Failed queries (counter)
    Labels: operation, table

Fetch Substrate Metrics:
  - fetch_attempts_total: Fetch attempts by outcome (counter)
    Labels: source, outcome ("success", or the failed attempt's model.ErrorCode)
  - fetch_duration_seconds: Duration of each fetch attempt (histogram)
    Labels: source
  - fetch_retries_total: Retry attempts issued (counter)
    Labels: source
  - fetch_rate_limiter_rate: Current adapted token-bucket rate per host (gauge)
  - fetch_proxy_health_score: Current proxy health score (gauge)
  - fetch_captcha_detections_total: CAPTCHA-blocked fetches (counter)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state per host (gauge)
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests seen by a breaker (counter)
    Labels: host, result (success, failure, rejected)
  - circuit_breaker_transitions_total: State transitions (counter)
    Labels: host, from, to

Pipeline Stage Metrics:
  - stage_records_processed_total: Records processed per stage (counter)
    Labels: stage, outcome (written, processed, rebuilt, rejected)
  - stage_processing_duration_seconds: Processing duration per unit (histogram)
    Labels: stage
  - stage_backlog_size: Records awaiting processing (gauge)
    Labels: stage

Cache Metrics:
  - cache_hits_total / cache_misses_total / cache_evictions_total (counters)
    Labels: cache (e.g. silver_artist, silver_track)
  - cache_size: Current cache entry count (gauge)

Dispatcher Job Metrics:
  - dispatcher_jobs_submitted_total: Scrape jobs submitted (counter)
    Labels: source
  - dispatcher_jobs_completed_total: Scrape jobs completed (counter)
    Labels: source, outcome (completed, partial, failed, timeout)
  - dispatcher_job_queue_depth: Jobs holding an admission slot, sampled at admission (gauge)

# Usage Example

	import (
	    "github.com/setlistgraph/pipeline/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	http.Handle("/metrics", promhttp.Handler())

	start := time.Now()
	err := fetchPage(ctx, url)
	metrics.RecordFetchAttempt("mixesdb", outcomeFor(err), time.Since(start))

# Prometheus Configuration

	scrape_configs:
	  - job_name: 'setlistgraph-dispatcher'
	    static_configs:
	      - targets: ['localhost:8088']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

Example PromQL queries:

	# fetch success rate by source
	sum(rate(fetch_attempts_total{outcome="success"}[5m])) by (source)
	  / sum(rate(fetch_attempts_total[5m])) by (source)

	# p95 stage processing latency
	histogram_quantile(0.95, rate(stage_processing_duration_seconds_bucket[5m]))

	# open circuit breakers
	circuit_breaker_state > 0

# Cardinality Management

Label cardinality is bounded: `source` ranges over the six fixed adapters,
`stage` over the four fixed pipeline stages, `host` over the small set of
upstream hosts actually fetched. No user- or request-specific label values
are ever recorded.

# Thread Safety

All metric recording functions are thread-safe and safe for concurrent use
from multiple goroutines; the Prometheus client library handles
synchronization internally.
*/
package metrics
