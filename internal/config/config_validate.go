// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package config

import "fmt"

// Validate checks that required configuration is present and internally
// consistent. It runs once, immediately after Load unmarshals the layered
// sources into a Config.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateProxies(); err != nil {
		return err
	}
	if err := c.validateCaptcha(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateDispatcher(); err != nil {
		return err
	}
	if err := c.validateSilver(); err != nil {
		return err
	}
	if err := c.validateGold(); err != nil {
		return err
	}
	if err := c.validateOperational(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("server.environment must be one of development, staging, production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must be >= 0, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateSources() error {
	sources := map[string]SourceConfig{
		"mixesdb":        c.Sources.MixesDB,
		"tracklists1001": c.Sources.Tracklists1001,
		"beatport":       c.Sources.Beatport,
		"setlistfm":      c.Sources.SetlistFM,
		"reddit":         c.Sources.Reddit,
		"discogs":        c.Sources.Discogs,
	}
	anyEnabled := false
	for name, src := range sources {
		if !src.Enabled {
			continue
		}
		anyEnabled = true
		if src.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required when enabled", name)
		}
		if err := validateHTTPURL(src.BaseURL, fmt.Sprintf("sources.%s.base_url", name)); err != nil {
			return err
		}
		if src.RateLimit <= 0 {
			return fmt.Errorf("sources.%s.rate_limit must be > 0 when enabled, got %v", name, src.RateLimit)
		}
	}
	if !anyEnabled {
		return fmt.Errorf("at least one source adapter must be enabled")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.InitialRate <= 0 {
		return fmt.Errorf("fetch.initial_rate must be > 0, got %v", c.Fetch.InitialRate)
	}
	if c.Fetch.RateBackoffFactor <= 0 || c.Fetch.RateBackoffFactor >= 1 {
		return fmt.Errorf("fetch.rate_backoff_factor must be in (0, 1), got %v", c.Fetch.RateBackoffFactor)
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0, got %d", c.Fetch.MaxRetries)
	}
	if c.Fetch.BackoffJitter < 0 || c.Fetch.BackoffJitter > 1 {
		return fmt.Errorf("fetch.backoff_jitter must be in [0, 1], got %v", c.Fetch.BackoffJitter)
	}
	if c.Fetch.BreakerFailureRatio <= 0 || c.Fetch.BreakerFailureRatio > 1 {
		return fmt.Errorf("fetch.breaker_failure_ratio must be in (0, 1], got %v", c.Fetch.BreakerFailureRatio)
	}
	return nil
}

func (c *Config) validateProxies() error {
	if !c.Proxies.Enabled {
		return nil
	}
	if len(c.Proxies.List) == 0 {
		return fmt.Errorf("proxies.list must be non-empty when proxies.enabled=true")
	}
	if c.Proxies.HealthThreshold < 0 || c.Proxies.HealthThreshold > 1 {
		return fmt.Errorf("proxies.health_threshold must be in [0, 1], got %v", c.Proxies.HealthThreshold)
	}
	return nil
}

func (c *Config) validateCaptcha() error {
	if !c.Captcha.Enabled {
		return nil
	}
	if c.Captcha.OracleURL == "" {
		return fmt.Errorf("captcha.oracle_url is required when captcha.enabled=true")
	}
	if err := validateHTTPURL(c.Captcha.OracleURL, "captcha.oracle_url"); err != nil {
		return err
	}
	if c.Captcha.ConfidenceThreshold < 0 || c.Captcha.ConfidenceThreshold > 1 {
		return fmt.Errorf("captcha.confidence_threshold must be in [0, 1], got %v", c.Captcha.ConfidenceThreshold)
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	if !c.Enrichment.Enabled {
		return nil
	}
	if c.Enrichment.OracleURL == "" {
		return fmt.Errorf("enrichment.oracle_url is required when enrichment.enabled=true")
	}
	return validateHTTPURL(c.Enrichment.OracleURL, "enrichment.oracle_url")
}

func (c *Config) validateDispatcher() error {
	if c.Dispatcher.WorkerPoolSize < 1 {
		return fmt.Errorf("dispatcher.worker_pool_size must be >= 1, got %d", c.Dispatcher.WorkerPoolSize)
	}
	if c.Dispatcher.DefaultLimit < 1 {
		return fmt.Errorf("dispatcher.default_limit must be >= 1, got %d", c.Dispatcher.DefaultLimit)
	}
	if c.Dispatcher.DefaultMaxRetries < 0 {
		return fmt.Errorf("dispatcher.default_max_retries must be >= 0, got %d", c.Dispatcher.DefaultMaxRetries)
	}
	return nil
}

func (c *Config) validateSilver() error {
	if c.Silver.FuzzyThreshold <= 0 || c.Silver.FuzzyThreshold > 1 {
		return fmt.Errorf("silver.fuzzy_threshold must be in (0, 1], got %v", c.Silver.FuzzyThreshold)
	}
	if len(c.Silver.SentinelArtists) == 0 {
		return fmt.Errorf("silver.sentinel_artists must be non-empty")
	}
	return nil
}

func (c *Config) validateGold() error {
	if c.Gold.ConfidenceK <= 0 {
		return fmt.Errorf("gold.confidence_k must be > 0, got %v", c.Gold.ConfidenceK)
	}
	if c.Gold.BPMTolerance <= 0 {
		return fmt.Errorf("gold.bpm_tolerance must be > 0, got %v", c.Gold.BPMTolerance)
	}
	w := c.Gold.QualityWeights
	sum := w.Confidence + w.Recency + w.KeyCompat + w.Popularity + w.BPMCompat + w.EnergySmoothness
	if sum <= 0 {
		return fmt.Errorf("gold.quality_weights must sum to a positive value, got %v", sum)
	}
	return nil
}

func (c *Config) validateOperational() error {
	if c.Operational.MinEdgeWeight < 0 {
		return fmt.Errorf("operational.min_edge_weight must be >= 0, got %v", c.Operational.MinEdgeWeight)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be one of json, console, got %q", c.Logging.Format)
	}
	return nil
}
