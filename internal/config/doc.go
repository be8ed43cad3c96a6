// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

/*
Package config provides centralized configuration management for the
dispatcher process.

This package handles loading, validation, and parsing of configuration for
every component of the pipeline: the six source adapters, the fetch
substrate, the DuckDB-backed medallion store, and the bronze/silver/gold/
operational stage processors. It ensures consistent configuration across
the process and provides sensible defaults for optional settings.

# Configuration Sources

The package reads configuration from, in increasing priority:

  - Struct defaults (defaultConfig)
  - An optional YAML config file (config.yaml, or CONFIG_PATH)
  - Environment variables (highest priority, overrides the above)

# Configuration Structure

The package organizes configuration into logical groups, one struct per
SPDX-style concern:

  - ServerConfig: dispatcher HTTP control surface (host, port, timeouts)
  - DatabaseConfig: DuckDB connection and performance tuning
  - SourcesConfig: per-adapter enable flags, base URLs, credentials
  - FetchConfig: adaptive rate limiting, retry/backoff, circuit breaker
  - ProxyConfig: outbound proxy pool and health scoring
  - HeaderConfig: header rotation pool
  - CaptchaConfig: CAPTCHA-detection oracle
  - EnrichmentConfig: external metadata-enrichment oracle
  - DispatcherConfig: worker pool sizing and per-request defaults
  - SilverConfig: canonicalization thresholds and cache sizing
  - GoldConfig: derived-metric weighting
  - OperationalConfig: graph materialization thresholds
  - LoggingConfig: zerolog level/format

# Environment Variables

Representative environment variables (see envTransformFunc for the full
mapping table):

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, ENVIRONMENT

Database:
  - DUCKDB_PATH, DUCKDB_MAX_MEMORY, DUCKDB_THREADS

Sources (one block per adapter, shown for setlist.fm):
  - SOURCES_SETLISTFM_ENABLED, SOURCES_SETLISTFM_BASE_URL,
    SOURCES_SETLISTFM_API_KEY, SOURCES_SETLISTFM_RATE_LIMIT

Fetch substrate:
  - FETCH_INITIAL_RATE, FETCH_RATE_BACKOFF_FACTOR, FETCH_MAX_RETRIES,
    FETCH_BACKOFF_BASE, FETCH_BREAKER_FAILURE_RATIO

Proxies and headers:
  - PROXIES_ENABLED, PROXIES_LIST, HEADERS_USER_AGENTS

CAPTCHA and enrichment oracles:
  - CAPTCHA_ENABLED, CAPTCHA_ORACLE_URL, ENRICHMENT_ENABLED,
    ENRICHMENT_ORACLE_URL

Dispatcher:
  - DISPATCHER_WORKER_POOL_SIZE, DISPATCHER_DEFAULT_LIMIT,
    DISPATCHER_DEFAULT_MAX_RETRIES, DISPATCHER_DEFAULT_TIMEOUT

Silver/Gold/Operational:
  - SILVER_FUZZY_THRESHOLD, SILVER_SENTINEL_ARTISTS, GOLD_CONFIDENCE_K,
    GOLD_QUALITY_WEIGHT_CONFIDENCE, OPERATIONAL_MIN_EDGE_WEIGHT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage Example

	import "github.com/setlistgraph/pipeline/internal/config"

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}

	fmt.Printf("dispatcher listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("duckdb store: %s\n", cfg.Database.Path)

# Validation

Validate() runs once immediately after unmarshaling and checks, among other
things: at least one source adapter is enabled; every enabled source has a
valid base URL and positive rate limit; fetch retry/backoff/breaker
parameters are in sane ranges; the silver fuzzy threshold and gold quality
weights are well-formed.

# Thread Safety

The Config struct is immutable after LoadWithKoanf() returns, making it
safe for concurrent access from multiple goroutines without synchronization.
*/
package config
