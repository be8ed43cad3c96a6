// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package model

import "time"

// Artist is a canonical artist identity. CanonicalName must be non-empty
// and must not match the configured sentinel filter (Unknown, Unknown
// Artist, Various Artists, VA, case-insensitive, trimmed).
type Artist struct {
	ID             int64       `db:"id"`
	CanonicalName  string      `db:"canonical_name"`
	NormalizedName string      `db:"normalized_name"` // unique
	Aliases        []string    `db:"aliases"`
	ExternalIDs    ExternalIDs `db:"external_ids"`
	Country        string      `db:"country"`
	Genres         []string    `db:"genres"`
}

// CanonicalTrack is the deduplicated identity every raw (artist, title)
// mention resolves to. Identity is the row id; each populated external id
// and ISRC is independently unique.
type CanonicalTrack struct {
	ID              int64       `db:"id"`
	Title           string      `db:"title"`
	PrimaryArtistID int64       `db:"primary_artist_id"`
	Duration        int64       `db:"duration"` // nanoseconds, 0 if unknown
	ISRC            string      `db:"isrc"`
	ExternalIDs     ExternalIDs `db:"external_ids"`
	BPM             *float64    `db:"bpm"`
	MusicalKey      string      `db:"musical_key"`
	Energy          *float64    `db:"energy"`
	Genre           string      `db:"genre"`
	Label           string      `db:"label"`
	ReleaseDate     *time.Time  `db:"release_date"`
}

// CanonicalPlaylist is the canonical projection of a BronzePlaylist.
// Uniqueness: SourceURL.
type CanonicalPlaylist struct {
	ID          int64      `db:"id"`
	Source      Source     `db:"source"`
	SourceURL   string     `db:"source_url"`
	EventName   string     `db:"event_name"`
	DJArtistID  *int64     `db:"dj_artist_id"`
	EventDate   *time.Time `db:"event_date"`
	Venue       string     `db:"venue"`
}

// AdjacencyObservation records that, within CanonicalPlaylistID, the track
// at Position was followed immediately by the track at Position+1.
// Uniqueness: (CanonicalPlaylistID, Position). An observation exists only
// when both endpoints resolved to canonical tracks whose artists pass the
// sentinel filter.
type AdjacencyObservation struct {
	CanonicalPlaylistID int64 `db:"canonical_playlist_id"`
	Position            int   `db:"position"`
	SourceTrackID       int64 `db:"source_track_id"`
	TargetTrackID       int64 `db:"target_track_id"`
}
