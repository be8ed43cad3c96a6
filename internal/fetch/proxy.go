// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package fetch

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/metrics"
)

// ErrNoHealthyProxy is returned when every configured proxy is either
// parked in cooldown or below the health threshold.
var ErrNoHealthyProxy = errors.New("fetch: no healthy proxy available")

// proxyState tracks one proxy's running health score and cooldown window.
type proxyState struct {
	addr        string
	score       float64
	cooldownEnd time.Time
}

// proxyPool selects among configured proxies by weighted-random choice
// among those currently healthy, decaying a proxy's score on failure and
// recovering it on success, and parking it in cooldown once its score
// drops below the configured threshold.
type proxyPool struct {
	cfg config.ProxyConfig

	mu      sync.Mutex
	proxies []*proxyState
	rng     *rand.Rand
}

func newProxyPool(cfg config.ProxyConfig) *proxyPool {
	p := &proxyPool{
		cfg: cfg,
		rng: rand.New(rand.NewSource(1)), //nolint:gosec // selection weighting, not security-sensitive
	}
	for _, addr := range cfg.List {
		p.proxies = append(p.proxies, &proxyState{addr: addr, score: 1.0})
		metrics.SetProxyHealthScore(addr, 1.0)
	}
	return p
}

// Select returns a proxy address chosen by weighted-random draw over every
// proxy whose score is above the health threshold and not in cooldown.
// Returns "" and a nil error when proxies are disabled or the list is empty,
// and ErrNoHealthyProxy when every configured proxy is degraded.
func (p *proxyPool) Select() (string, error) {
	if !p.cfg.Enabled || len(p.proxies) == 0 {
		return "", nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var healthy []*proxyState
	var totalWeight float64
	for _, ps := range p.proxies {
		if ps.cooldownEnd.After(now) {
			continue
		}
		if ps.score < p.cfg.HealthThreshold {
			continue
		}
		healthy = append(healthy, ps)
		totalWeight += ps.score
	}

	if len(healthy) == 0 {
		return "", ErrNoHealthyProxy
	}

	target := p.rng.Float64() * totalWeight
	var cumulative float64
	for _, ps := range healthy {
		cumulative += ps.score
		if target <= cumulative {
			return ps.addr, nil
		}
	}
	return healthy[len(healthy)-1].addr, nil
}

// RecordSuccess recovers addr's health score toward 1.0.
func (p *proxyPool) RecordSuccess(addr string) {
	p.adjust(addr, p.cfg.ScoreRecovery)
}

// RecordFailure decays addr's health score and parks it in cooldown once it
// falls below the configured threshold.
func (p *proxyPool) RecordFailure(addr string) {
	p.adjust(addr, -p.cfg.ScoreDecay)
}

func (p *proxyPool) adjust(addr string, delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ps := range p.proxies {
		if ps.addr != addr {
			continue
		}
		ps.score += delta
		if ps.score > 1.0 {
			ps.score = 1.0
		}
		if ps.score < 0 {
			ps.score = 0
		}
		if ps.score < p.cfg.HealthThreshold {
			ps.cooldownEnd = time.Now().Add(p.cfg.CooldownDuration)
		}
		metrics.SetProxyHealthScore(addr, ps.score)
		return
	}
}
