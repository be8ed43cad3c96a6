// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/setlistgraph/config.yaml",
	"/etc/setlistgraph/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8088,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
			Environment:  "development",
		},
		Database: DatabaseConfig{
			Path:                   "/data/setlistgraph.duckdb",
			MaxMemory:              "2GB",
			Threads:                0, // 0 = runtime.NumCPU()
			PreserveInsertionOrder: true,
		},
		Sources: SourcesConfig{
			MixesDB: SourceConfig{
				Enabled:   false,
				BaseURL:   "https://www.mixesdb.com",
				UserAgent: "SetlistGraphBot/1.0",
				RateLimit: 0.5,
				Timeout:   30 * time.Second,
			},
			Tracklists1001: SourceConfig{
				Enabled:   false,
				BaseURL:   "https://www.1001tracklists.com",
				UserAgent: "SetlistGraphBot/1.0",
				RateLimit: 0.3,
				Timeout:   30 * time.Second,
			},
			Beatport: SourceConfig{
				Enabled:   false,
				BaseURL:   "https://api.beatport.com",
				RateLimit: 2.0,
				Timeout:   15 * time.Second,
			},
			SetlistFM: SourceConfig{
				Enabled:   false,
				BaseURL:   "https://api.setlist.fm",
				RateLimit: 1.6, // setlist.fm's documented 2req/sec ceiling, held back slightly
				Timeout:   15 * time.Second,
			},
			Reddit: SourceConfig{
				Enabled:   false,
				BaseURL:   "https://oauth.reddit.com",
				UserAgent: "SetlistGraphBot/1.0 by setlistgraph",
				RateLimit: 1.0,
				Timeout:   15 * time.Second,
			},
			Discogs: SourceConfig{
				Enabled:   false,
				BaseURL:   "https://api.discogs.com",
				RateLimit: 1.0,
				Timeout:   15 * time.Second,
			},
		},
		Fetch: FetchConfig{
			InitialRate:         1.0,
			RateBackoffFactor:   0.5,
			RateRecoveryStep:    0.1,
			MaxRetries:          3,
			BackoffBase:         500 * time.Millisecond,
			BackoffMaxDelay:     30 * time.Second,
			BackoffJitter:       0.2,
			RequestTimeout:      30 * time.Second,
			HardDeadline:        5 * time.Minute,
			BreakerFailureRatio: 0.5,
			BreakerMinRequests:  10,
			BreakerOpenTimeout:  60 * time.Second,
		},
		Proxies: ProxyConfig{
			Enabled:          false,
			List:             []string{},
			HealthThreshold:  0.3,
			ScoreDecay:       0.7,
			ScoreRecovery:    0.05,
			CooldownDuration: 2 * time.Minute,
		},
		Headers: HeaderConfig{
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15",
			},
			AcceptLanguages: []string{"en-US,en;q=0.9"},
		},
		Captcha: CaptchaConfig{
			Enabled:             false,
			ConfidenceThreshold: 0.8,
			Timeout:             10 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			Enabled:          false,
			Timeout:          10 * time.Second,
			RateBudgetPerMin: 30,
		},
		Dispatcher: DispatcherConfig{
			WorkerPoolSize:    8,
			QueueCapacity:     256,
			DefaultLimit:      10,
			DefaultMaxRetries: 3,
			DefaultTimeout:    300 * time.Second,
			JobRetention:      24 * time.Hour,
		},
		Silver: SilverConfig{
			FuzzyThreshold:  0.92,
			SentinelArtists: []string{"Unknown", "Unknown Artist", "Various Artists", "VA"},
			ArtistCacheSize: 10000,
			TrackCacheSize:  50000,
		},
		Gold: GoldConfig{
			ConfidenceK:  5.0,
			BPMTolerance: 6.0,
			QualityWeights: QualityWeights{
				Confidence:       0.3,
				Recency:          0.15,
				KeyCompat:        0.2,
				Popularity:       0.15,
				BPMCompat:        0.1,
				EnergySmoothness: 0.1,
			},
			RebuildBatch: 5000,
		},
		Operational: OperationalConfig{
			MinEdgeWeight:  0.0,
			MaterializeTop: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths, e.g.
	// DUCKDB_PATH -> database.path, SOURCES_MIXESDB_ENABLED -> sources.mixesdb.enabled
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"proxies.list",
	"headers.user_agents",
	"headers.accept_languages",
	"silver.sentinel_artists",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
//   - SOURCES_MIXESDB_ENABLED -> sources.mixesdb.enabled
//   - SOURCES_SETLISTFM_API_KEY -> sources.setlistfm.api_key
//   - FETCH_INITIAL_RATE -> fetch.initial_rate
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_read_timeout": "server.read_timeout",
		"http_write_timeout": "server.write_timeout",
		"http_idle_timeout": "server.idle_timeout",
		"environment":       "server.environment",

		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Sources: MixesDB
		"sources_mixesdb_enabled":    "sources.mixesdb.enabled",
		"sources_mixesdb_base_url":   "sources.mixesdb.base_url",
		"sources_mixesdb_rate_limit": "sources.mixesdb.rate_limit",

		// Sources: 1001Tracklists
		"sources_tracklists1001_enabled":    "sources.tracklists1001.enabled",
		"sources_tracklists1001_base_url":   "sources.tracklists1001.base_url",
		"sources_tracklists1001_rate_limit": "sources.tracklists1001.rate_limit",

		// Sources: Beatport
		"sources_beatport_enabled":       "sources.beatport.enabled",
		"sources_beatport_base_url":      "sources.beatport.base_url",
		"sources_beatport_client_id":     "sources.beatport.client_id",
		"sources_beatport_client_secret": "sources.beatport.client_secret",
		"sources_beatport_rate_limit":    "sources.beatport.rate_limit",

		// Sources: setlist.fm
		"sources_setlistfm_enabled":    "sources.setlistfm.enabled",
		"sources_setlistfm_base_url":   "sources.setlistfm.base_url",
		"sources_setlistfm_api_key":    "sources.setlistfm.api_key",
		"sources_setlistfm_rate_limit": "sources.setlistfm.rate_limit",

		// Sources: Reddit
		"sources_reddit_enabled":       "sources.reddit.enabled",
		"sources_reddit_base_url":      "sources.reddit.base_url",
		"sources_reddit_client_id":     "sources.reddit.client_id",
		"sources_reddit_client_secret": "sources.reddit.client_secret",
		"sources_reddit_rate_limit":    "sources.reddit.rate_limit",

		// Sources: Discogs
		"sources_discogs_enabled":    "sources.discogs.enabled",
		"sources_discogs_base_url":   "sources.discogs.base_url",
		"sources_discogs_api_key":    "sources.discogs.api_key",
		"sources_discogs_rate_limit": "sources.discogs.rate_limit",

		// Fetch substrate
		"fetch_initial_rate":          "fetch.initial_rate",
		"fetch_rate_backoff_factor":   "fetch.rate_backoff_factor",
		"fetch_rate_recovery_step":    "fetch.rate_recovery_step",
		"fetch_max_retries":           "fetch.max_retries",
		"fetch_backoff_base":          "fetch.backoff_base",
		"fetch_backoff_max_delay":     "fetch.backoff_max_delay",
		"fetch_backoff_jitter":        "fetch.backoff_jitter",
		"fetch_request_timeout":       "fetch.request_timeout",
		"fetch_hard_deadline":         "fetch.hard_deadline",
		"fetch_breaker_failure_ratio": "fetch.breaker_failure_ratio",
		"fetch_breaker_min_requests":  "fetch.breaker_min_requests",
		"fetch_breaker_open_timeout":  "fetch.breaker_open_timeout",

		// Proxies
		"proxies_enabled":          "proxies.enabled",
		"proxies_list":             "proxies.list",
		"proxies_health_threshold": "proxies.health_threshold",
		"proxies_score_decay":      "proxies.score_decay",
		"proxies_score_recovery":   "proxies.score_recovery",
		"proxies_cooldown":         "proxies.cooldown_duration",

		// Headers
		"headers_user_agents":      "headers.user_agents",
		"headers_accept_languages": "headers.accept_languages",

		// CAPTCHA oracle
		"captcha_enabled":              "captcha.enabled",
		"captcha_oracle_url":           "captcha.oracle_url",
		"captcha_confidence_threshold": "captcha.confidence_threshold",
		"captcha_timeout":              "captcha.timeout",

		// Enrichment oracle
		"enrichment_enabled":            "enrichment.enabled",
		"enrichment_oracle_url":         "enrichment.oracle_url",
		"enrichment_timeout":            "enrichment.timeout",
		"enrichment_rate_budget_per_min": "enrichment.rate_budget_per_minute",

		// Dispatcher
		"dispatcher_worker_pool_size":    "dispatcher.worker_pool_size",
		"dispatcher_queue_capacity":      "dispatcher.queue_capacity",
		"dispatcher_default_limit":       "dispatcher.default_limit",
		"dispatcher_default_max_retries": "dispatcher.default_max_retries",
		"dispatcher_default_timeout":     "dispatcher.default_timeout",
		"dispatcher_job_retention":       "dispatcher.job_retention",

		// Silver
		"silver_fuzzy_threshold":   "silver.fuzzy_threshold",
		"silver_sentinel_artists":  "silver.sentinel_artists",
		"silver_artist_cache_size": "silver.artist_cache_size",
		"silver_track_cache_size":  "silver.track_cache_size",
		"silver_alias_table_path":  "silver.alias_table_path",

		// Gold
		"gold_confidence_k":                     "gold.confidence_k",
		"gold_bpm_tolerance":                     "gold.bpm_tolerance",
		"gold_quality_weight_confidence":         "gold.quality_weights.confidence",
		"gold_quality_weight_recency":            "gold.quality_weights.recency",
		"gold_quality_weight_key_compat":         "gold.quality_weights.key_compat",
		"gold_quality_weight_popularity":         "gold.quality_weights.popularity",
		"gold_quality_weight_bpm_compat":         "gold.quality_weights.bpm_compat",
		"gold_quality_weight_energy_smoothness":  "gold.quality_weights.energy_smoothness",
		"gold_rebuild_batch_size":                "gold.rebuild_batch_size",

		// Operational
		"operational_min_edge_weight":  "operational.min_edge_weight",
		"operational_materialize_top":  "operational.materialize_top",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped to prevent random environment variables
	// from polluting config.
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage, such as
// custom configuration sources in tests.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The caller is responsible for mutex protection when swapping the active
// Config during a reload callback.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
