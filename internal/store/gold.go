// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package store

import (
	"database/sql"
	"fmt"

	"github.com/setlistgraph/pipeline/internal/model"
)

// UpsertTransition writes or replaces the aggregated evidence for one
// (source, target) track pair. The Gold Aggregator recomputes the full row
// from scratch each rebuild, so this is a plain replace rather than a merge;
// last_observed_at ties are broken in the caller by keeping the newer value.
func (s *Store) UpsertTransition(t *model.Transition) (int64, error) {
	var id int64
	err := s.conn.QueryRow(`
INSERT INTO transition (source_track_id, target_track_id, occurrence_count, observing_playlist_ids,
    last_observed_at, bpm_delta_avg, key_compat_rate, energy_delta_avg, confidence, quality)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source_track_id, target_track_id) DO UPDATE SET
    occurrence_count = EXCLUDED.occurrence_count,
    observing_playlist_ids = EXCLUDED.observing_playlist_ids,
    last_observed_at = EXCLUDED.last_observed_at,
    bpm_delta_avg = EXCLUDED.bpm_delta_avg,
    key_compat_rate = EXCLUDED.key_compat_rate,
    energy_delta_avg = EXCLUDED.energy_delta_avg,
    confidence = EXCLUDED.confidence,
    quality = EXCLUDED.quality
RETURNING id`,
		t.SourceTrackID, t.TargetTrackID, t.OccurrenceCount, t.ObservingPlaylistIDs,
		t.LastObservedAt, t.DerivedMetrics.BPMDeltaAvg, t.DerivedMetrics.KeyCompatRate,
		t.DerivedMetrics.EnergyDeltaAvg, t.DerivedMetrics.Confidence, t.DerivedMetrics.Quality,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert transition: %w", err)
	}
	return id, nil
}

// GetTransition returns the transition row for (sourceTrackID, targetTrackID),
// or (nil, nil) if no evidence exists yet.
func (s *Store) GetTransition(sourceTrackID, targetTrackID int64) (*model.Transition, error) {
	t := &model.Transition{}
	err := s.conn.QueryRow(`
SELECT id, source_track_id, target_track_id, occurrence_count, observing_playlist_ids,
    last_observed_at, bpm_delta_avg, key_compat_rate, energy_delta_avg, confidence, quality
FROM transition WHERE source_track_id = ? AND target_track_id = ?`, sourceTrackID, targetTrackID,
	).Scan(&t.ID, &t.SourceTrackID, &t.TargetTrackID, &t.OccurrenceCount, &t.ObservingPlaylistIDs,
		&t.LastObservedAt, &t.DerivedMetrics.BPMDeltaAvg, &t.DerivedMetrics.KeyCompatRate,
		&t.DerivedMetrics.EnergyDeltaAvg, &t.DerivedMetrics.Confidence, &t.DerivedMetrics.Quality)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transition: %w", err)
	}
	return t, nil
}

// ListAllTransitions returns every transition row, the input the
// Operational Materializer rebuilds graph_edge from.
func (s *Store) ListAllTransitions() ([]model.Transition, error) {
	rows, err := s.conn.Query(`
SELECT id, source_track_id, target_track_id, occurrence_count, observing_playlist_ids,
    last_observed_at, bpm_delta_avg, key_compat_rate, energy_delta_avg, confidence, quality
FROM transition`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []model.Transition
	for rows.Next() {
		var t model.Transition
		if err := rows.Scan(&t.ID, &t.SourceTrackID, &t.TargetTrackID, &t.OccurrenceCount, &t.ObservingPlaylistIDs,
			&t.LastObservedAt, &t.DerivedMetrics.BPMDeltaAvg, &t.DerivedMetrics.KeyCompatRate,
			&t.DerivedMetrics.EnergyDeltaAvg, &t.DerivedMetrics.Confidence, &t.DerivedMetrics.Quality); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTrackStats writes the per-track rollup used for popularity
// normalization and graph_node materialization.
func (s *Store) UpsertTrackStats(ts *model.TrackStats) error {
	_, err := s.conn.Exec(`
INSERT INTO track_stats (track_id, appearance_count, in_degree, out_degree, popularity)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (track_id) DO UPDATE SET
    appearance_count = EXCLUDED.appearance_count,
    in_degree = EXCLUDED.in_degree,
    out_degree = EXCLUDED.out_degree,
    popularity = EXCLUDED.popularity`,
		ts.TrackID, ts.AppearanceCount, ts.InDegree, ts.OutDegree, ts.Popularity,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track_stats: %w", err)
	}
	return nil
}

// ListAllTrackStats returns every track_stats row.
func (s *Store) ListAllTrackStats() ([]model.TrackStats, error) {
	rows, err := s.conn.Query("SELECT track_id, appearance_count, in_degree, out_degree, popularity FROM track_stats")
	if err != nil {
		return nil, fmt.Errorf("failed to query track_stats: %w", err)
	}
	defer rows.Close()

	var out []model.TrackStats
	for rows.Next() {
		var ts model.TrackStats
		if err := rows.Scan(&ts.TrackID, &ts.AppearanceCount, &ts.InDegree, &ts.OutDegree, &ts.Popularity); err != nil {
			return nil, fmt.Errorf("failed to scan track_stats: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// GetTrackStats returns the rollup for trackID, or (nil, nil) if absent.
func (s *Store) GetTrackStats(trackID int64) (*model.TrackStats, error) {
	ts := &model.TrackStats{}
	err := s.conn.QueryRow("SELECT track_id, appearance_count, in_degree, out_degree, popularity FROM track_stats WHERE track_id = ?", trackID).
		Scan(&ts.TrackID, &ts.AppearanceCount, &ts.InDegree, &ts.OutDegree, &ts.Popularity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track_stats: %w", err)
	}
	return ts, nil
}
