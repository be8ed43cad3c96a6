// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/setlistgraph/pipeline/internal/model"
)

// GetArtistByNormalizedName looks up a canonical artist by its normalized
// name. Returns (nil, nil) when no row matches.
func (s *Store) GetArtistByNormalizedName(normalized string) (*model.Artist, error) {
	a := &model.Artist{}
	var externalIDs []byte
	err := s.conn.QueryRow(`
SELECT id, canonical_name, normalized_name, aliases, external_ids, country, genres
FROM artist WHERE normalized_name = ?`, normalized,
	).Scan(&a.ID, &a.CanonicalName, &a.NormalizedName, &a.Aliases, &externalIDs, &a.Country, &a.Genres)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artist: %w", err)
	}
	if len(externalIDs) > 0 {
		if err := json.Unmarshal(externalIDs, &a.ExternalIDs); err != nil {
			return nil, fmt.Errorf("failed to decode artist external_ids: %w", err)
		}
	}
	return a, nil
}

// GetArtistByID looks up a canonical artist by its row id. Returns
// (nil, nil) when no row matches. The Operational Materializer uses this to
// label a graph_node with its artist's canonical name.
func (s *Store) GetArtistByID(id int64) (*model.Artist, error) {
	a := &model.Artist{}
	var externalIDs []byte
	err := s.conn.QueryRow(`
SELECT id, canonical_name, normalized_name, aliases, external_ids, country, genres
FROM artist WHERE id = ?`, id,
	).Scan(&a.ID, &a.CanonicalName, &a.NormalizedName, &a.Aliases, &externalIDs, &a.Country, &a.Genres)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artist: %w", err)
	}
	if len(externalIDs) > 0 {
		if err := json.Unmarshal(externalIDs, &a.ExternalIDs); err != nil {
			return nil, fmt.Errorf("failed to decode artist external_ids: %w", err)
		}
	}
	return a, nil
}

// InsertArtist creates a new canonical artist and returns its id.
func (s *Store) InsertArtist(a *model.Artist) (int64, error) {
	externalIDs, err := json.Marshal(a.ExternalIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to encode artist external_ids: %w", err)
	}

	var id int64
	err = s.conn.QueryRow(`
INSERT INTO artist (canonical_name, normalized_name, aliases, external_ids, country, genres)
VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		a.CanonicalName, a.NormalizedName, a.Aliases, externalIDs, a.Country, a.Genres,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert artist: %w", err)
	}
	return id, nil
}

// UpdateArtistExternalIDs merges merged into the stored artist's external
// ids and persists it. Callers compute the merge via model.ExternalIDs.Merge
// so populated fields are never overwritten with nulls.
func (s *Store) UpdateArtistExternalIDs(artistID int64, merged model.ExternalIDs) error {
	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode artist external_ids: %w", err)
	}
	_, err = s.conn.Exec("UPDATE artist SET external_ids = ? WHERE id = ?", encoded, artistID)
	if err != nil {
		return fmt.Errorf("failed to update artist external_ids: %w", err)
	}
	return nil
}

// FindCanonicalTrackByExternalID looks for a track whose external_ids JSON
// has field set to value. field must be a valid model.ExternalIDs JSON key
// (e.g. "spotify", "isrc" is handled separately via FindCanonicalTrackByISRC).
func (s *Store) FindCanonicalTrackByExternalID(field, value string) (*model.CanonicalTrack, error) {
	if value == "" {
		return nil, nil
	}
	row := s.conn.QueryRow(fmt.Sprintf(`
SELECT id, title, primary_artist_id, duration, isrc, external_ids, bpm, musical_key, energy, genre, label, release_date
FROM canonical_track WHERE json_extract_string(external_ids, '$.%s') = ?`, field), value)
	return scanCanonicalTrack(row)
}

// FindCanonicalTrackByISRC looks up a track by its ISRC code.
func (s *Store) FindCanonicalTrackByISRC(isrc string) (*model.CanonicalTrack, error) {
	if isrc == "" {
		return nil, nil
	}
	row := s.conn.QueryRow(`
SELECT id, title, primary_artist_id, duration, isrc, external_ids, bpm, musical_key, energy, genre, label, release_date
FROM canonical_track WHERE isrc = ?`, isrc)
	return scanCanonicalTrack(row)
}

// FindCanonicalTracksByArtist returns every canonical track attributed to
// artistID, the candidate pool the Silver Canonicalizer fuzzy-matches
// titles against.
func (s *Store) FindCanonicalTracksByArtist(artistID int64) ([]model.CanonicalTrack, error) {
	rows, err := s.conn.Query(`
SELECT id, title, primary_artist_id, duration, isrc, external_ids, bpm, musical_key, energy, genre, label, release_date
FROM canonical_track WHERE primary_artist_id = ?`, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query canonical_track by artist: %w", err)
	}
	defer rows.Close()

	var tracks []model.CanonicalTrack
	for rows.Next() {
		t, err := scanCanonicalTrackRows(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

func scanCanonicalTrack(row *sql.Row) (*model.CanonicalTrack, error) {
	t := &model.CanonicalTrack{}
	var externalIDs []byte
	err := row.Scan(&t.ID, &t.Title, &t.PrimaryArtistID, &t.Duration, &t.ISRC, &externalIDs,
		&t.BPM, &t.MusicalKey, &t.Energy, &t.Genre, &t.Label, &t.ReleaseDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan canonical_track: %w", err)
	}
	if len(externalIDs) > 0 {
		if err := json.Unmarshal(externalIDs, &t.ExternalIDs); err != nil {
			return nil, fmt.Errorf("failed to decode canonical_track external_ids: %w", err)
		}
	}
	return t, nil
}

func scanCanonicalTrackRows(rows *sql.Rows) (*model.CanonicalTrack, error) {
	t := &model.CanonicalTrack{}
	var externalIDs []byte
	err := rows.Scan(&t.ID, &t.Title, &t.PrimaryArtistID, &t.Duration, &t.ISRC, &externalIDs,
		&t.BPM, &t.MusicalKey, &t.Energy, &t.Genre, &t.Label, &t.ReleaseDate)
	if err != nil {
		return nil, fmt.Errorf("failed to scan canonical_track: %w", err)
	}
	if len(externalIDs) > 0 {
		if err := json.Unmarshal(externalIDs, &t.ExternalIDs); err != nil {
			return nil, fmt.Errorf("failed to decode canonical_track external_ids: %w", err)
		}
	}
	return t, nil
}

// GetCanonicalTrackByID looks up a canonical track by its row id. Returns
// (nil, nil) when no row matches. The Gold Aggregator uses this to pull
// BPM/musical key/energy for the two endpoints of a transition pair.
func (s *Store) GetCanonicalTrackByID(id int64) (*model.CanonicalTrack, error) {
	row := s.conn.QueryRow(`
SELECT id, title, primary_artist_id, duration, isrc, external_ids, bpm, musical_key, energy, genre, label, release_date
FROM canonical_track WHERE id = ?`, id)
	return scanCanonicalTrack(row)
}

// InsertCanonicalTrack creates a new canonical track and returns its id.
func (s *Store) InsertCanonicalTrack(t *model.CanonicalTrack) (int64, error) {
	externalIDs, err := json.Marshal(t.ExternalIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to encode canonical_track external_ids: %w", err)
	}

	var id int64
	err = s.conn.QueryRow(`
INSERT INTO canonical_track (title, primary_artist_id, duration, isrc, external_ids, bpm, musical_key, energy, genre, label, release_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.Title, t.PrimaryArtistID, t.Duration, nullIfEmpty(t.ISRC), externalIDs,
		t.BPM, t.MusicalKey, t.Energy, t.Genre, t.Label, t.ReleaseDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert canonical_track: %w", err)
	}
	return id, nil
}

// UpdateCanonicalTrackEnrichment persists a merged external_ids/isrc/bpm/
// musical_key/energy set for an existing track, per the Silver enrichment
// merge rule (never overwrite a populated field with null).
func (s *Store) UpdateCanonicalTrackEnrichment(t *model.CanonicalTrack) error {
	externalIDs, err := json.Marshal(t.ExternalIDs)
	if err != nil {
		return fmt.Errorf("failed to encode canonical_track external_ids: %w", err)
	}
	_, err = s.conn.Exec(`
UPDATE canonical_track SET isrc = ?, external_ids = ?, bpm = ?, musical_key = ?, energy = ?, genre = ?, label = ?, release_date = ?
WHERE id = ?`,
		nullIfEmpty(t.ISRC), externalIDs, t.BPM, t.MusicalKey, t.Energy, t.Genre, t.Label, t.ReleaseDate, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update canonical_track enrichment: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// UpsertCanonicalPlaylist writes the canonical projection of a bronze
// playlist, keyed by source_url.
func (s *Store) UpsertCanonicalPlaylist(p *model.CanonicalPlaylist) (int64, error) {
	var id int64
	err := s.conn.QueryRow(`
INSERT INTO canonical_playlist (source, source_url, event_name, dj_artist_id, event_date, venue)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (source_url) DO UPDATE SET
    event_name = EXCLUDED.event_name,
    dj_artist_id = EXCLUDED.dj_artist_id,
    event_date = EXCLUDED.event_date,
    venue = EXCLUDED.venue
RETURNING id`,
		p.Source, p.SourceURL, p.EventName, p.DJArtistID, p.EventDate, p.Venue,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert canonical_playlist: %w", err)
	}
	return id, nil
}

// ReplaceAdjacencyObservations writes observations for canonicalPlaylistID
// inside one transaction, overwriting any existing row at the same position
// and deleting observations at positions >= maxPosition. This makes
// re-processing a playlist after a tracklist edit idempotent.
func (s *Store) ReplaceAdjacencyObservations(canonicalPlaylistID int64, observations []model.AdjacencyObservation, maxPosition int) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, o := range observations {
		_, err := tx.Exec(`
INSERT INTO adjacency_observation (canonical_playlist_id, position, source_track_id, target_track_id)
VALUES (?, ?, ?, ?)
ON CONFLICT (canonical_playlist_id, position) DO UPDATE SET
    source_track_id = EXCLUDED.source_track_id,
    target_track_id = EXCLUDED.target_track_id`,
			o.CanonicalPlaylistID, o.Position, o.SourceTrackID, o.TargetTrackID,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert adjacency_observation at position %d: %w", o.Position, err)
		}
	}

	_, err = tx.Exec("DELETE FROM adjacency_observation WHERE canonical_playlist_id = ? AND position >= ?", canonicalPlaylistID, maxPosition)
	if err != nil {
		return fmt.Errorf("failed to delete stale adjacency_observation rows: %w", err)
	}

	return tx.Commit()
}

// ListAdjacencyObservationsForPlaylist returns every observation recorded
// for canonicalPlaylistID, ordered by position. The dispatcher uses this
// right after Silver processes a playlist to find which (source, target)
// pairs need a Gold rebuild.
func (s *Store) ListAdjacencyObservationsForPlaylist(canonicalPlaylistID int64) ([]model.AdjacencyObservation, error) {
	rows, err := s.conn.Query(`
SELECT canonical_playlist_id, position, source_track_id, target_track_id
FROM adjacency_observation WHERE canonical_playlist_id = ? ORDER BY position`, canonicalPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjacency_observation: %w", err)
	}
	defer rows.Close()

	var out []model.AdjacencyObservation
	for rows.Next() {
		var o model.AdjacencyObservation
		if err := rows.Scan(&o.CanonicalPlaylistID, &o.Position, &o.SourceTrackID, &o.TargetTrackID); err != nil {
			return nil, fmt.Errorf("failed to scan adjacency_observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListAdjacencyObservationsForPair returns every observation where
// sourceTrackID was immediately followed by targetTrackID, across all
// playlists. The Gold Aggregator groups these by (source, target) to build
// occurrence_count and observing_playlist_ids.
func (s *Store) ListAdjacencyObservationsForPair(sourceTrackID, targetTrackID int64) ([]model.AdjacencyObservation, error) {
	rows, err := s.conn.Query(`
SELECT canonical_playlist_id, position, source_track_id, target_track_id
FROM adjacency_observation WHERE source_track_id = ? AND target_track_id = ?`, sourceTrackID, targetTrackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjacency_observation: %w", err)
	}
	defer rows.Close()

	var out []model.AdjacencyObservation
	for rows.Next() {
		var o model.AdjacencyObservation
		if err := rows.Scan(&o.CanonicalPlaylistID, &o.Position, &o.SourceTrackID, &o.TargetTrackID); err != nil {
			return nil, fmt.Errorf("failed to scan adjacency_observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListDistinctTransitionPairs returns every distinct (source, target) track
// pair with at least one adjacency observation, the work list the Gold
// Aggregator iterates to rebuild transition rows.
func (s *Store) ListDistinctTransitionPairs() ([][2]int64, error) {
	rows, err := s.conn.Query("SELECT DISTINCT source_track_id, target_track_id FROM adjacency_observation")
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct transition pairs: %w", err)
	}
	defer rows.Close()

	var pairs [][2]int64
	for rows.Next() {
		var pair [2]int64
		if err := rows.Scan(&pair[0], &pair[1]); err != nil {
			return nil, fmt.Errorf("failed to scan transition pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}
