// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package model

import "time"

// DerivedMetrics are the transition-level metrics computed by the Gold
// Aggregator as averages over the participating Silver observations.
type DerivedMetrics struct {
	BPMDeltaAvg    *float64 `db:"bpm_delta_avg"`
	KeyCompatRate  *float64 `db:"key_compat_rate"`
	EnergyDeltaAvg *float64 `db:"energy_delta_avg"`
	Confidence     float64  `db:"confidence"` // 1 - exp(-occurrence_count / k)
	Quality        float64  `db:"quality"`    // weighted sum of six [0,1] components
}

// Transition is the aggregated, pairwise evidence for one directed
// source-track -> target-track adjacency across every ingested playlist.
// Uniqueness: (SourceTrackID, TargetTrackID).
type Transition struct {
	ID                  int64          `db:"id"`
	SourceTrackID       int64          `db:"source_track_id"`
	TargetTrackID       int64          `db:"target_track_id"`
	OccurrenceCount     int            `db:"occurrence_count"`
	ObservingPlaylistIDs []int64       `db:"observing_playlist_ids"` // set semantics
	LastObservedAt      time.Time      `db:"last_observed_at"`
	DerivedMetrics      DerivedMetrics `db:"derived_metrics"`
}

// TrackStats are the per-track rollups the Gold Aggregator maintains
// alongside Transition rows.
type TrackStats struct {
	TrackID         int64   `db:"track_id"`
	AppearanceCount int     `db:"appearance_count"`
	InDegree        int     `db:"in_degree"`
	OutDegree       int     `db:"out_degree"`
	Popularity      float64 `db:"popularity"` // [0,1]
}
