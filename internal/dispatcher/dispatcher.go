// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package dispatcher

import (
	"context"
	"errors"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/logging"
	"github.com/setlistgraph/pipeline/internal/metrics"
	"github.com/setlistgraph/pipeline/internal/model"
	"github.com/setlistgraph/pipeline/internal/store"
)

// ErrQueueFull is returned by Submit when QueueCapacity concurrent jobs are
// already in flight.
var ErrQueueFull = errors.New("dispatcher: queue at capacity")

// Dispatcher owns the Pipeline and the bounded admission gate in front of
// it, plus the in-memory job ledger GET /jobs reads from.
type Dispatcher struct {
	pipeline *Pipeline
	jobs     *jobStore
	store    *store.Store
	admit    chan struct{}
}

// New builds a Dispatcher. capacity bounds how many scrape jobs may run
// concurrently; a Submit call beyond that returns ErrQueueFull rather than
// blocking, so callers see backpressure instead of an unbounded queue.
func New(pipeline *Pipeline, st *store.Store, cfg config.DispatcherConfig) *Dispatcher {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 1
	}
	return &Dispatcher{
		pipeline: pipeline,
		jobs:     newJobStore(cfg),
		store:    st,
		admit:    make(chan struct{}, capacity),
	}
}

// Submit runs req synchronously, subject to the admission gate, and records
// it in the job ledger. It returns ErrQueueFull immediately if the gate is
// saturated rather than queuing the caller indefinitely.
func (d *Dispatcher) Submit(ctx context.Context, req model.ScrapeRequest) (*model.ScrapeReport, error) {
	select {
	case d.admit <- struct{}{}:
	default:
		return nil, ErrQueueFull
	}
	defer func() { <-d.admit }()

	metrics.RecordJobSubmitted(string(req.Source))
	metrics.SetJobQueueDepth(float64(len(d.admit)))

	job := d.jobs.create(req)
	d.jobs.markRunning(job)

	report, err := d.pipeline.Run(ctx, req)
	d.jobs.markDone(job, report, err)
	if err != nil {
		logging.Warn().Err(err).Str("source", string(req.Source)).Msg("scrape job failed")
	}
	return report, err
}

// Jobs returns a snapshot of recently submitted jobs, most recent first.
func (d *Dispatcher) Jobs() []Job {
	return d.jobs.list()
}

// Stats summarizes the current size of the Gold and Operational layers.
type Stats struct {
	Transitions int `json:"transitions"`
	Tracks      int `json:"tracks"`
	GraphNodes  int `json:"graph_nodes"`
	GraphEdges  int `json:"graph_edges"`
}

// Stats computes aggregate counts across the store for the GET /stats
// endpoint. It reads the full Gold and Operational tables; callers with a
// very large graph should treat this as a diagnostic, not a hot path.
func (d *Dispatcher) Stats() (*Stats, error) {
	transitions, err := d.store.ListAllTransitions()
	if err != nil {
		return nil, err
	}
	trackStats, err := d.store.ListAllTrackStats()
	if err != nil {
		return nil, err
	}
	nodes, err := d.store.ListGraphNodes()
	if err != nil {
		return nil, err
	}
	edges, err := d.store.ListGraphEdges()
	if err != nil {
		return nil, err
	}
	return &Stats{
		Transitions: len(transitions),
		Tracks:      len(trackStats),
		GraphNodes:  len(nodes),
		GraphEdges:  len(edges),
	}, nil
}
