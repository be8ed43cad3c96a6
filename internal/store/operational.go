// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package store

import (
	"fmt"

	"github.com/setlistgraph/pipeline/internal/model"
)

// RebuildOperationalGraph replaces the entire graph_node/graph_edge
// projection in one transaction. The Operational Materializer always
// rebuilds from Gold in full, so this is a truncate-then-insert rather
// than an incremental upsert; edges below minWeight are omitted without
// touching the underlying transition rows.
func (s *Store) RebuildOperationalGraph(nodes []model.GraphNode, edges []model.GraphEdge, minWeight int) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM graph_edge"); err != nil {
		return fmt.Errorf("failed to clear graph_edge: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM graph_node"); err != nil {
		return fmt.Errorf("failed to clear graph_node: %w", err)
	}

	for _, n := range nodes {
		_, err := tx.Exec(`
INSERT INTO graph_node (id, label, artist, title, bpm, musical_key, popularity, appearance_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Label, n.Attributes.Artist, n.Attributes.Title, n.Attributes.BPM,
			n.Attributes.MusicalKey, n.Attributes.Popularity, n.Attributes.AppearanceCount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert graph_node %d: %w", n.ID, err)
		}
	}

	for _, e := range edges {
		if e.Weight < minWeight {
			continue
		}
		if e.SourceID == e.TargetID {
			return fmt.Errorf("refusing self-loop edge for track %d", e.SourceID)
		}
		_, err := tx.Exec(`
INSERT INTO graph_edge (source_id, target_id, weight, confidence, quality, avg_bpm_delta)
VALUES (?, ?, ?, ?, ?, ?)`,
			e.SourceID, e.TargetID, e.Weight, e.Attributes.Confidence, e.Attributes.Quality, e.Attributes.AvgBPMDelta,
		)
		if err != nil {
			return fmt.Errorf("failed to insert graph_edge (%d,%d): %w", e.SourceID, e.TargetID, err)
		}
	}

	return tx.Commit()
}

// ListGraphNodes returns every materialized node.
func (s *Store) ListGraphNodes() ([]model.GraphNode, error) {
	rows, err := s.conn.Query("SELECT id, label, artist, title, bpm, musical_key, popularity, appearance_count FROM graph_node")
	if err != nil {
		return nil, fmt.Errorf("failed to query graph_node: %w", err)
	}
	defer rows.Close()

	var out []model.GraphNode
	for rows.Next() {
		var n model.GraphNode
		if err := rows.Scan(&n.ID, &n.Label, &n.Attributes.Artist, &n.Attributes.Title,
			&n.Attributes.BPM, &n.Attributes.MusicalKey, &n.Attributes.Popularity, &n.Attributes.AppearanceCount); err != nil {
			return nil, fmt.Errorf("failed to scan graph_node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListGraphEdges returns every materialized edge.
func (s *Store) ListGraphEdges() ([]model.GraphEdge, error) {
	rows, err := s.conn.Query("SELECT source_id, target_id, weight, confidence, quality, avg_bpm_delta FROM graph_edge")
	if err != nil {
		return nil, fmt.Errorf("failed to query graph_edge: %w", err)
	}
	defer rows.Close()

	var out []model.GraphEdge
	for rows.Next() {
		var e model.GraphEdge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Weight, &e.Attributes.Confidence, &e.Attributes.Quality, &e.Attributes.AvgBPMDelta); err != nil {
			return nil, fmt.Errorf("failed to scan graph_edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
