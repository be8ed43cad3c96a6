// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package fetch

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/metrics"
)

// hostLimiter is the per-host adaptive token bucket. Rate starts at R0 and
// is narrowed by rateBackoffFactor on a Blocked/RateLimited signal, widened
// by rateRecoveryStep after each successful fetch, and clamped to
// [minRate, R0]. No count of consecutive successes is kept: a single
// success widens the rate.
type hostLimiter struct {
	mu   sync.Mutex
	lim  *rate.Limiter
	rate float64

	initial       float64
	backoffFactor float64
	recoveryStep  float64
	minRate       float64

	host string
}

func newHostLimiter(host string, cfg config.FetchConfig) *hostLimiter {
	const minRate = 0.05 // events/sec floor, never fully stalls a host
	hl := &hostLimiter{
		lim:           rate.NewLimiter(rate.Limit(cfg.InitialRate), 1),
		rate:          cfg.InitialRate,
		initial:       cfg.InitialRate,
		backoffFactor: cfg.RateBackoffFactor,
		recoveryStep:  cfg.RateRecoveryStep,
		minRate:       minRate,
		host:          host,
	}
	metrics.SetRateLimiterRate(host, hl.rate)
	return hl
}

// narrow multiplies the current rate by backoffFactor, in response to a
// Blocked or RateLimited signal from the host.
func (h *hostLimiter) narrow() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rate *= h.backoffFactor
	if h.rate < h.minRate {
		h.rate = h.minRate
	}
	h.lim.SetLimit(rate.Limit(h.rate))
	metrics.SetRateLimiterRate(h.host, h.rate)
}

// widen adds recoveryStep back toward the initial configured rate, in
// response to one successful fetch.
func (h *hostLimiter) widen() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rate += h.recoveryStep
	if h.rate > h.initial {
		h.rate = h.initial
	}
	h.lim.SetLimit(rate.Limit(h.rate))
	metrics.SetRateLimiterRate(h.host, h.rate)
}

// limiterRegistry holds one hostLimiter per host, created lazily.
type limiterRegistry struct {
	cfg config.FetchConfig

	mu       sync.Mutex
	limiters map[string]*hostLimiter
}

func newLimiterRegistry(cfg config.FetchConfig) *limiterRegistry {
	return &limiterRegistry{cfg: cfg, limiters: make(map[string]*hostLimiter)}
}

func (r *limiterRegistry) forHost(host string) *hostLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hl, ok := r.limiters[host]; ok {
		return hl
	}
	hl := newHostLimiter(host, r.cfg)
	r.limiters[host] = hl
	return hl
}
