// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package fetch

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/setlistgraph/pipeline/internal/config"
)

// headerSet is the pair of rotating headers assigned to one session.
type headerSet struct {
	UserAgent      string
	AcceptLanguage string
}

// headerRotator assigns each host a sticky headerSet for the life of a
// session, chosen deterministically from the configured pools so repeated
// requests to the same host within a session present a consistent fingerprint
// rather than a different header set on every call.
type headerRotator struct {
	cfg config.HeaderConfig

	mu       sync.Mutex
	assigned map[string]headerSet
	epoch    map[string]int
}

func newHeaderRotator(cfg config.HeaderConfig) *headerRotator {
	return &headerRotator{
		cfg:      cfg,
		assigned: make(map[string]headerSet),
		epoch:    make(map[string]int),
	}
}

// ForHost returns the sticky headerSet for host, assigning one on first use.
func (h *headerRotator) ForHost(host string) headerSet {
	h.mu.Lock()
	defer h.mu.Unlock()

	if hs, ok := h.assigned[host]; ok {
		return hs
	}

	salt := fmt.Sprintf("e%d", h.epoch[host])
	hs := headerSet{
		UserAgent:      pick(h.cfg.UserAgents, host, "ua-"+salt),
		AcceptLanguage: pick(h.cfg.AcceptLanguages, host, "al-"+salt),
	}
	h.assigned[host] = hs
	return hs
}

// Rotate discards host's sticky assignment and advances its epoch, so the
// next ForHost call re-draws the header set with a new salt; the draw can
// land on the same set as before. Called when a
// host starts returning Blocked responses, on the theory that the current
// fingerprint may have been flagged.
func (h *headerRotator) Rotate(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.assigned, host)
	h.epoch[host]++
}

func pick(pool []string, host, salt string) string {
	if len(pool) == 0 {
		return ""
	}
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(host + ":" + salt))
	return pool[int(hasher.Sum32())%len(pool)]
}
