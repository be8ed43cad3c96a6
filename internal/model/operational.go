// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package model

// NodeAttributes are the read-optimized attributes attached to a graph_node.
type NodeAttributes struct {
	Artist          string   `json:"artist" db:"artist"`
	Title           string   `json:"title" db:"title"`
	BPM             *float64 `json:"bpm,omitempty" db:"bpm"`
	MusicalKey      string   `json:"key,omitempty" db:"musical_key"`
	Popularity      float64  `json:"popularity" db:"popularity"`
	AppearanceCount int      `json:"appearance_count" db:"appearance_count"`
}

// GraphNode is a track projected for the visualization read path.
type GraphNode struct {
	ID         int64          `db:"id"` // == track_id
	Label      string         `db:"label"`
	Attributes NodeAttributes `db:"attributes"`
}

// EdgeAttributes are the read-optimized attributes attached to a graph_edge.
type EdgeAttributes struct {
	Confidence   float64  `json:"confidence" db:"confidence"`
	Quality      float64  `json:"quality" db:"quality"`
	AvgBPMDelta  *float64 `json:"avg_bpm_delta,omitempty" db:"avg_bpm_delta"`
}

// GraphEdge is a transition projected for the visualization read path.
// Directed; self-loops forbidden; (SourceID, TargetID) unique.
type GraphEdge struct {
	SourceID   int64          `db:"source_id"`
	TargetID   int64          `db:"target_id"`
	Weight     int            `db:"weight"` // == occurrence_count
	Attributes EdgeAttributes `db:"attributes"`
}
