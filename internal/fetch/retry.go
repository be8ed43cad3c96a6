// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package fetch

import (
	"math"
	"math/rand"
	"time"

	"github.com/setlistgraph/pipeline/internal/config"
)

// backoffDelay computes the jittered exponential delay before retry attempt
// (0-indexed), capped at cfg.BackoffMaxDelay. BackoffJitter is a fraction
// (0..1) of the exponential term, randomized uniformly:
//
//	delay = min(maxDelay, base * 2^attempt + uniform(0, jitter * base * 2^attempt))
func backoffDelay(cfg config.FetchConfig, attempt int) time.Duration {
	exp := float64(cfg.BackoffBase) * math.Pow(2, float64(attempt))
	jitter := 0.0
	if cfg.BackoffJitter > 0 {
		jitter = rand.Float64() * cfg.BackoffJitter * exp //nolint:gosec // timing jitter, not security-sensitive
	}
	delay := time.Duration(exp + jitter)
	if delay > cfg.BackoffMaxDelay {
		delay = cfg.BackoffMaxDelay
	}
	return delay
}
