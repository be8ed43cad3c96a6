// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package model defines the shared domain types that flow between the
// source adapters, the fetch substrate, the dispatcher, and the four
// medallion stages.
package model

import "time"

// Source identifies one of the six supported scrape sources.
type Source string

const (
	SourceMixesDB        Source = "mixesdb"
	SourceTracklists1001  Source = "1001tracklists"
	SourceBeatport        Source = "beatport"
	SourceSetlistFM       Source = "setlistfm"
	SourceReddit          Source = "reddit"
	SourceDiscogs         Source = "discogs"
)

// ValidSources lists every source the dispatcher knows how to route.
var ValidSources = []Source{
	SourceMixesDB, SourceTracklists1001, SourceBeatport,
	SourceSetlistFM, SourceReddit, SourceDiscogs,
}

// IsValid reports whether s is one of the six known sources.
func (s Source) IsValid() bool {
	for _, v := range ValidSources {
		if v == s {
			return true
		}
	}
	return false
}

// ExternalIDs carries cross-source identifiers opportunistically scraped
// or resolved for a track or artist. A present-but-empty map means no
// external ids were found; a nil map is indistinguishable from empty and
// both are treated as "none known".
type ExternalIDs struct {
	Spotify     string `json:"spotify,omitempty" db:"spotify"`
	Apple       string `json:"apple,omitempty" db:"apple"`
	YouTube     string `json:"youtube,omitempty" db:"youtube"`
	Beatport    string `json:"beatport,omitempty" db:"beatport"`
	Discogs     string `json:"discogs,omitempty" db:"discogs"`
	MusicBrainz string `json:"musicbrainz,omitempty" db:"musicbrainz"`
}

// Empty reports whether none of the external id fields are populated.
func (e ExternalIDs) Empty() bool {
	return e.Spotify == "" && e.Apple == "" && e.YouTube == "" &&
		e.Beatport == "" && e.Discogs == "" && e.MusicBrainz == ""
}

// Merge returns a copy of e with every empty field filled in from other,
// never overwriting an already-populated field. Used by enrichment merges,
// which must never clobber a non-null field with a null one.
func (e ExternalIDs) Merge(other ExternalIDs) ExternalIDs {
	out := e
	if out.Spotify == "" {
		out.Spotify = other.Spotify
	}
	if out.Apple == "" {
		out.Apple = other.Apple
	}
	if out.YouTube == "" {
		out.YouTube = other.YouTube
	}
	if out.Beatport == "" {
		out.Beatport = other.Beatport
	}
	if out.Discogs == "" {
		out.Discogs = other.Discogs
	}
	if out.MusicBrainz == "" {
		out.MusicBrainz = other.MusicBrainz
	}
	return out
}

// TrackRecord is a single raw track mention as scraped from a source page,
// in document order. Position is assigned later by the Bronze Writer from
// list index, never by the adapter.
type TrackRecord struct {
	RawArtist   string        `json:"raw_artist,omitempty"`
	RawTitle    string        `json:"raw_title,omitempty"`
	RawDuration time.Duration `json:"raw_duration,omitempty"`
	BPM         *float64      `json:"bpm,omitempty"`
	MusicalKey  string        `json:"musical_key,omitempty"`
	Label       string        `json:"label,omitempty"`
	ExternalIDs ExternalIDs   `json:"external_ids,omitempty"`
	ISRC        string        `json:"isrc,omitempty"`
}

// PlaylistMeta is the non-tracklist metadata an adapter extracts for a
// playlist or setlist page.
type PlaylistMeta struct {
	ExternalID string     `json:"external_id,omitempty"`
	EventName  string     `json:"event_name,omitempty"`
	DJName     string     `json:"dj_name,omitempty"`
	Venue      string     `json:"venue,omitempty"`
	EventDate  *time.Time `json:"event_date,omitempty"`
}

// PlaylistPayload is the uniform shape every source adapter's fetch
// operation returns: ordered tracks plus metadata plus the verbatim raw
// payload for later reprocessing.
type PlaylistPayload struct {
	Source      Source        `json:"source"`
	SourceURL   string        `json:"source_url"`
	Meta        PlaylistMeta  `json:"meta"`
	TracksInOrder []TrackRecord `json:"tracks_in_order"`
	RawBlob     []byte        `json:"raw_blob"`
	ScrapedAt   time.Time     `json:"scraped_at"`
}

// PlaylistCandidate is a single search hit: a candidate playlist URL plus
// whatever hint metadata the adapter could glean from the search results
// page without a full fetch.
type PlaylistCandidate struct {
	URL          string            `json:"url"`
	HintMetadata map[string]string `json:"hint_metadata,omitempty"`
}

// RequestOptions are the tunables a ScrapeRequest can override; zero values
// mean "use the dispatcher's configured default".
type RequestOptions struct {
	EnableEnrichment bool `json:"enable_enrichment" validate:"-"`
	MaxRetries       int  `json:"max_retries" validate:"omitempty,min=0" default:"3"`
	TimeoutSeconds   int  `json:"timeout" validate:"omitempty,min=1" default:"300"`
}

// ScrapeRequest is the body of POST /scrape.
type ScrapeRequest struct {
	Source       Source         `json:"source" validate:"required"`
	SearchQuery  string         `json:"search_query" validate:"required"`
	TargetArtist string         `json:"target_artist,omitempty"`
	TargetTitle  string         `json:"target_title,omitempty"`
	Limit        int            `json:"limit" validate:"required,min=1,max=1000" default:"10"`
	Options      RequestOptions `json:"options"`
}

// ScrapeStatus is the terminal status of a ScrapeReport.
type ScrapeStatus string

const (
	StatusCompleted ScrapeStatus = "completed"
	StatusPartial   ScrapeStatus = "partial"
	StatusFailed    ScrapeStatus = "failed"
	StatusTimeout   ScrapeStatus = "timeout"
)

// URLError records a structured, per-URL failure surfaced to the caller.
type URLError struct {
	URL     string `json:"url"`
	Code    string `json:"code"` // NotFound, Blocked, Malformed, Transient, Cancelled, DeadlineExceeded, Unsolvable, InvalidPayload
	Message string `json:"message"`
}

// ScrapeReport is the response body of POST /scrape.
type ScrapeReport struct {
	Status             ScrapeStatus `json:"status"`
	PlaylistsScraped   int          `json:"playlists_scraped"`
	TracksExtracted    int          `json:"tracks_extracted"`
	TransitionsCreated int          `json:"transitions_created"`
	Errors             []URLError   `json:"errors"`
	BronzePlaylistIDs  []int64      `json:"bronze_playlist_ids"`
	ExecutionSeconds   float64      `json:"execution_seconds"`
}
