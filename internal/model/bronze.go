// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package model

import "time"

// BronzePlaylist is a raw, unparsed playlist/setlist page as scraped.
// Uniqueness: (Source, SourceURL).
type BronzePlaylist struct {
	ID         int64      `db:"id"`
	Source     Source     `db:"source"`
	SourceURL  string     `db:"source_url"`
	ExternalID string     `db:"external_id"`
	EventName  string     `db:"event_name"`
	DJName     string     `db:"dj_name"`
	Venue      string     `db:"venue"`
	EventDate  *time.Time `db:"event_date"`
	RawBlob    []byte     `db:"raw_blob"`
	ScrapedAt  time.Time  `db:"scraped_at"`
}

// BronzeTrack is a single raw track mention within a BronzePlaylist.
// Uniqueness: (PlaylistID, Position). Positions within a playlist MUST
// form 1..N contiguously; this is enforced by the Bronze Writer, not by
// the storage layer, since it requires a whole-playlist view to check.
type BronzeTrack struct {
	ID          int64     `db:"id"`
	PlaylistID  int64     `db:"playlist_id"`
	Position    int       `db:"position"`
	RawArtist   string    `db:"raw_artist"`
	RawTitle    string    `db:"raw_title"`
	RawDuration int64     `db:"raw_duration"` // nanoseconds, 0 if unknown
	RawBlob     []byte    `db:"raw_blob"`
	ScrapedAt   time.Time `db:"scraped_at"`
}
