// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package operational materializes the Gold layer's transitions and track
// rollups into the read-optimized graph_node/graph_edge projection the
// visualization surface queries.
package operational

import (
	"fmt"
	"sort"
	"time"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/metrics"
	"github.com/setlistgraph/pipeline/internal/model"
	"github.com/setlistgraph/pipeline/internal/store"
)

const stageName = "operational"

// Materializer rebuilds the operational graph projection from Gold.
type Materializer struct {
	store *store.Store
	cfg   config.OperationalConfig
}

// New builds a Materializer.
func New(st *store.Store, cfg config.OperationalConfig) *Materializer {
	return &Materializer{store: st, cfg: cfg}
}

// Rebuild replaces the entire graph_node/graph_edge projection from the
// current Gold-layer transition and track_stats rows. Always a full rebuild,
// never an incremental patch, so a stale edge from a track that's since
// dropped below the weight floor can never survive a rebuild by omission.
func (m *Materializer) Rebuild() error {
	start := time.Now()
	defer func() { metrics.RecordStageDuration(stageName, time.Since(start)) }()

	transitions, err := m.store.ListAllTransitions()
	if err != nil {
		return fmt.Errorf("listing transitions: %w", err)
	}
	trackStats, err := m.store.ListAllTrackStats()
	if err != nil {
		return fmt.Errorf("listing track_stats: %w", err)
	}
	statsByTrack := make(map[int64]model.TrackStats, len(trackStats))
	for _, ts := range trackStats {
		statsByTrack[ts.TrackID] = ts
	}

	minWeight := int(m.cfg.MinEdgeWeight)
	filtered := make([]model.Transition, 0, len(transitions))
	for _, t := range transitions {
		if t.OccurrenceCount < minWeight {
			continue
		}
		if t.SourceTrackID == t.TargetTrackID {
			continue // self-loops are forbidden in the operational graph
		}
		filtered = append(filtered, t)
	}

	if m.cfg.MaterializeTop > 0 {
		filtered = topEdgesPerSource(filtered, m.cfg.MaterializeTop)
	}

	nodeIDs := make(map[int64]struct{})
	for _, t := range filtered {
		nodeIDs[t.SourceTrackID] = struct{}{}
		nodeIDs[t.TargetTrackID] = struct{}{}
	}

	nodes := make([]model.GraphNode, 0, len(nodeIDs))
	for id := range nodeIDs {
		node, err := m.buildNode(id, statsByTrack[id])
		if err != nil {
			return fmt.Errorf("building graph_node %d: %w", id, err)
		}
		nodes = append(nodes, *node)
	}

	edges := make([]model.GraphEdge, 0, len(filtered))
	for _, t := range filtered {
		edges = append(edges, model.GraphEdge{
			SourceID: t.SourceTrackID,
			TargetID: t.TargetTrackID,
			Weight:   t.OccurrenceCount,
			Attributes: model.EdgeAttributes{
				Confidence:  t.DerivedMetrics.Confidence,
				Quality:     t.DerivedMetrics.Quality,
				AvgBPMDelta: t.DerivedMetrics.BPMDeltaAvg,
			},
		})
	}

	if err := m.store.RebuildOperationalGraph(nodes, edges, minWeight); err != nil {
		metrics.RecordStageRecord(stageName, "rejected")
		return fmt.Errorf("rebuilding operational graph: %w", err)
	}
	metrics.RecordStageRecord(stageName, "rebuilt")
	metrics.SetStageBacklog(stageName, float64(len(edges)))
	return nil
}

func (m *Materializer) buildNode(trackID int64, stats model.TrackStats) (*model.GraphNode, error) {
	track, err := m.store.GetCanonicalTrackByID(trackID)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, fmt.Errorf("canonical track %d referenced by a transition does not exist", trackID)
	}

	artistName := ""
	if artist, err := m.store.GetArtistByID(track.PrimaryArtistID); err != nil {
		return nil, err
	} else if artist != nil {
		artistName = artist.CanonicalName
	}

	label := track.Title
	if artistName != "" {
		label = artistName + " - " + track.Title
	}

	return &model.GraphNode{
		ID:    trackID,
		Label: label,
		Attributes: model.NodeAttributes{
			Artist:          artistName,
			Title:           track.Title,
			BPM:             track.BPM,
			MusicalKey:      track.MusicalKey,
			Popularity:      stats.Popularity,
			AppearanceCount: stats.AppearanceCount,
		},
	}, nil
}

// topEdgesPerSource keeps, for each source track, only its top-N outgoing
// edges ranked by weight (ties broken by quality), the spec's bound on
// per-node fan-out in the materialized graph.
func topEdgesPerSource(edges []model.Transition, top int) []model.Transition {
	bySource := make(map[int64][]model.Transition)
	for _, e := range edges {
		bySource[e.SourceTrackID] = append(bySource[e.SourceTrackID], e)
	}

	out := make([]model.Transition, 0, len(edges))
	for _, group := range bySource {
		sort.Slice(group, func(i, j int) bool {
			if group[i].OccurrenceCount != group[j].OccurrenceCount {
				return group[i].OccurrenceCount > group[j].OccurrenceCount
			}
			return group[i].DerivedMetrics.Quality > group[j].DerivedMetrics.Quality
		})
		if len(group) > top {
			group = group[:top]
		}
		out = append(out, group...)
	}
	return out
}
