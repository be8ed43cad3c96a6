// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package fetch

import (
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/logging"
	"github.com/setlistgraph/pipeline/internal/metrics"
	"github.com/setlistgraph/pipeline/internal/model"
)

// breakerRegistry holds one circuit breaker per host, created lazily so a
// host that is never fetched never consumes a breaker slot.
type breakerRegistry struct {
	cfg config.FetchConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

func newBreakerRegistry(cfg config.FetchConfig) *breakerRegistry {
	return &breakerRegistry{cfg: cfg, breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte])}
}

func (r *breakerRegistry) forHost(host string) *gobreaker.CircuitBreaker[[]byte] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[host]; ok {
		return cb
	}

	metrics.CircuitBreakerState.WithLabelValues(host).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        host,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     r.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(r.cfg.BreakerMinRequests) {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= r.cfg.BreakerFailureRatio {
				logging.Warn().Str("host", host).Float64("failure_ratio", ratio).Msg("circuit breaker opening")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := breakerStateString(from), breakerStateString(to)
			logging.Info().Str("host", name).Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(name, fromStr, toStr)
		},
	})

	r.breakers[host] = cb
	return cb
}

// execute runs fn through host's circuit breaker, translating gobreaker's
// open-circuit rejection into a model.CodeBlocked FetchError so callers
// handle it the same way as any other blocked response.
func (r *breakerRegistry) execute(host, url string, fn func() ([]byte, error)) ([]byte, error) {
	cb := r.forHost(host)

	body, err := cb.Execute(fn)

	switch {
	case err == nil:
		metrics.RecordCircuitBreakerRequest(host, "success")
		return body, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(host, "rejected")
		return nil, model.NewFetchError(model.CodeBlocked, url, err)
	default:
		metrics.RecordCircuitBreakerRequest(host, "failure")
		return nil, err
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
