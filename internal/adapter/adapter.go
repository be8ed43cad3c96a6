// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package adapter implements the per-source scraping adapters behind a
// common interface. An adapter never rate-limits, retries, or selects a
// proxy itself; all network access runs through an injected *fetch.Fetcher,
// which owns that resilience stack. An adapter's only job is to turn a
// source's page/API shape into model.PlaylistCandidate and model.PlaylistPayload.
package adapter

import (
	"context"

	"github.com/setlistgraph/pipeline/internal/model"
)

// Adapter is the interface every source-specific scraper implements.
type Adapter interface {
	// Source identifies which model.Source this adapter serves.
	Source() model.Source

	// Search finds up to limit playlist candidates matching query. query is
	// source-specific free text (an artist name, event name, or URL
	// fragment depending on the source).
	Search(ctx context.Context, query string, limit int) ([]model.PlaylistCandidate, error)

	// Fetch retrieves and parses the full playlist at url.
	Fetch(ctx context.Context, url string) (*model.PlaylistPayload, error)
}

// Registry resolves a model.Source to its Adapter.
type Registry struct {
	adapters map[model.Source]Adapter
}

// NewRegistry builds a Registry from the given adapters, keyed by their own
// Source() value.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.Source]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Source()] = a
	}
	return r
}

// Get returns the adapter for source, or (nil, false) if none is registered.
func (r *Registry) Get(source model.Source) (Adapter, bool) {
	a, ok := r.adapters[source]
	return a, ok
}
