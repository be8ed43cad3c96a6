// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package dispatcher wires a ScrapeRequest through search, fetch, and the
// four medallion stages, and exposes that as a bounded-concurrency HTTP
// surface.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/setlistgraph/pipeline/internal/adapter"
	"github.com/setlistgraph/pipeline/internal/bronze"
	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/gold"
	"github.com/setlistgraph/pipeline/internal/logging"
	"github.com/setlistgraph/pipeline/internal/metrics"
	"github.com/setlistgraph/pipeline/internal/model"
	"github.com/setlistgraph/pipeline/internal/operational"
	"github.com/setlistgraph/pipeline/internal/silver"
	"github.com/setlistgraph/pipeline/internal/store"
)

// Pipeline runs one ScrapeRequest end to end: search the source, fetch each
// candidate, write Bronze, canonicalize into Silver, and roll the touched
// transitions up through Gold and Operational.
type Pipeline struct {
	registry *adapter.Registry
	store    *store.Store
	bronze   *bronze.Writer
	silver   *silver.Canonicalizer
	gold     *gold.Aggregator
	materializer *operational.Materializer
	cfg      config.DispatcherConfig
}

// NewPipeline builds a Pipeline from its constituent stages.
func NewPipeline(registry *adapter.Registry, st *store.Store, bw *bronze.Writer, c *silver.Canonicalizer, ga *gold.Aggregator, om *operational.Materializer, cfg config.DispatcherConfig) *Pipeline {
	return &Pipeline{registry: registry, store: st, bronze: bw, silver: c, gold: ga, materializer: om, cfg: cfg}
}

// Run executes req and returns its ScrapeReport. Run never returns an error
// for per-URL failures; those are classified into report.Errors. It returns
// an error only for an unknown source or a source with no registered
// adapter; an elapsed deadline or a cancelled context is reported through
// report.Status with a nil error.
func (p *Pipeline) Run(ctx context.Context, req model.ScrapeRequest) (*model.ScrapeReport, error) {
	req = applyDefaults(req, p.cfg)

	if !req.Source.IsValid() {
		return nil, model.ErrUnknownSource
	}
	a, ok := p.registry.Get(req.Source)
	if !ok {
		return nil, model.ErrUnknownSource
	}

	timeout := time.Duration(req.Options.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	report := &model.ScrapeReport{Status: model.StatusCompleted}

	candidates, err := a.Search(ctx, req.SearchQuery, req.Limit)
	if err != nil {
		report.Errors = append(report.Errors, *classifyURLError(req.SearchQuery, err))
		report.Status = statusForSearchError(ctx)
		report.ExecutionSeconds = time.Since(start).Seconds()
		metrics.RecordJobCompleted(string(req.Source), string(report.Status))
		return report, nil
	}

	var (
		mu           sync.Mutex
		touchedPairs = make(map[[2]int64]struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.WorkerPoolSize)

	for _, candidate := range candidates {
		candidate := candidate
		g.Go(func() error {
			pairs, urlErr := p.processCandidate(gctx, a, candidate, report, &mu)
			if urlErr != nil {
				mu.Lock()
				report.Errors = append(report.Errors, *urlErr)
				mu.Unlock()
				return nil // per-URL failures never abort the group
			}
			mu.Lock()
			for _, pair := range pairs {
				touchedPairs[pair] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // errors are reported per-URL, never propagated here

	for pair := range touchedPairs {
		if _, err := p.gold.RebuildPair(pair[0], pair[1]); err != nil {
			logging.Warn().Err(err).Int64("source_track_id", pair[0]).Int64("target_track_id", pair[1]).
				Msg("gold rebuild failed after silver canonicalization")
		}
	}
	if len(touchedPairs) > 0 {
		if err := p.gold.RebuildTrackStats(); err != nil {
			logging.Warn().Err(err).Msg("track_stats rebuild failed")
		}
		if err := p.materializer.Rebuild(); err != nil {
			logging.Warn().Err(err).Msg("operational graph rebuild failed")
		}
	}

	report.TransitionsCreated = len(touchedPairs)
	report.ExecutionSeconds = time.Since(start).Seconds()
	report.Status = finalStatus(report, ctx)

	metrics.RecordJobCompleted(string(req.Source), string(report.Status))
	return report, nil
}

// processCandidate fetches, writes Bronze, and canonicalizes one candidate
// URL, returning the transition pairs its tracklist introduced.
func (p *Pipeline) processCandidate(ctx context.Context, a adapter.Adapter, candidate model.PlaylistCandidate, report *model.ScrapeReport, mu *sync.Mutex) ([][2]int64, *model.URLError) {
	payload, err := a.Fetch(ctx, candidate.URL)
	if err != nil {
		return nil, classifyURLError(candidate.URL, err)
	}

	bronzeID, err := p.bronze.Write(payload)
	if err != nil {
		return nil, &model.URLError{URL: candidate.URL, Code: string(model.CodeInvalidPayload), Message: err.Error()}
	}

	bronzePlaylist, err := p.store.GetBronzePlaylist(payload.Source, payload.SourceURL)
	if err != nil || bronzePlaylist == nil {
		return nil, &model.URLError{URL: candidate.URL, Code: string(model.CodeMalformed), Message: "bronze playlist not found after write"}
	}
	tracks, err := p.store.ListBronzeTracks(bronzeID)
	if err != nil {
		return nil, &model.URLError{URL: candidate.URL, Code: string(model.CodeMalformed), Message: err.Error()}
	}

	canonicalPlaylistID, err := p.silver.ProcessPlaylist(bronzeID, bronzePlaylist, tracks)
	if err != nil {
		return nil, &model.URLError{URL: candidate.URL, Code: string(model.CodeInvalidPayload), Message: err.Error()}
	}

	mu.Lock()
	report.PlaylistsScraped++
	report.TracksExtracted += len(tracks)
	report.BronzePlaylistIDs = append(report.BronzePlaylistIDs, bronzeID)
	mu.Unlock()

	observations, err := p.store.ListAdjacencyObservationsForPlaylist(canonicalPlaylistID)
	if err != nil {
		logging.Warn().Err(err).Int64("canonical_playlist_id", canonicalPlaylistID).Msg("listing transition pairs for playlist failed")
		return nil, nil
	}
	pairs := make([][2]int64, 0, len(observations))
	for _, o := range observations {
		pairs = append(pairs, [2]int64{o.SourceTrackID, o.TargetTrackID})
	}
	return pairs, nil
}

func applyDefaults(req model.ScrapeRequest, cfg config.DispatcherConfig) model.ScrapeRequest {
	if req.Limit <= 0 {
		req.Limit = cfg.DefaultLimit
	}
	if req.Options.MaxRetries <= 0 {
		req.Options.MaxRetries = cfg.DefaultMaxRetries
	}
	if req.Options.TimeoutSeconds <= 0 {
		req.Options.TimeoutSeconds = int(cfg.DefaultTimeout.Seconds())
	}
	return req
}

func classifyURLError(url string, err error) *model.URLError {
	if code, ok := model.ErrorCodeOf(err); ok {
		return &model.URLError{URL: url, Code: string(code), Message: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &model.URLError{URL: url, Code: string(model.CodeDeadlineExceeded), Message: err.Error()}
	}
	if errors.Is(err, context.Canceled) {
		return &model.URLError{URL: url, Code: string(model.CodeCancelled), Message: err.Error()}
	}
	return &model.URLError{URL: url, Code: string(model.CodeUnsolvable), Message: err.Error()}
}

func statusForSearchError(ctx context.Context) model.ScrapeStatus {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.StatusTimeout
	}
	return model.StatusFailed
}

// finalStatus derives the terminal status from what actually happened:
// completed if every candidate succeeded, partial if some did and some
// didn't, failed if none did, timeout if the deadline was the cause.
func finalStatus(report *model.ScrapeReport, ctx context.Context) model.ScrapeStatus {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.StatusTimeout
	}
	if len(report.Errors) == 0 {
		return model.StatusCompleted
	}
	if report.PlaylistsScraped == 0 {
		return model.StatusFailed
	}
	return model.StatusPartial
}
