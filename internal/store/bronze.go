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

// UpsertBronzePlaylist writes a scraped playlist and its tracks in a single
// transaction. On conflict (source, source_url) the playlist's metadata and
// raw blob are replaced but its id is kept, so downstream silver/gold rows
// that reference it by id remain valid across re-ingestion.
//
// tracks must carry a gapless 1..N position sequence; any other shape is
// rejected with model.ErrInvalidPayload and the transaction is rolled back.
// Tracks from a prior ingest whose position is > len(tracks) are deleted,
// so a playlist that shrank on re-scrape does not retain stale tail tracks.
func (s *Store) UpsertBronzePlaylist(playlist *model.BronzePlaylist, tracks []model.BronzeTrack) (int64, error) {
	if err := validatePositions(tracks); err != nil {
		return 0, err
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(`
INSERT INTO bronze_playlist (source, source_url, external_id, event_name, dj_name, venue, event_date, raw_blob, scraped_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, source_url) DO UPDATE SET
    external_id = EXCLUDED.external_id,
    event_name = EXCLUDED.event_name,
    dj_name = EXCLUDED.dj_name,
    venue = EXCLUDED.venue,
    event_date = EXCLUDED.event_date,
    raw_blob = EXCLUDED.raw_blob,
    scraped_at = EXCLUDED.scraped_at
RETURNING id`,
		playlist.Source, playlist.SourceURL, playlist.ExternalID, playlist.EventName,
		playlist.DJName, playlist.Venue, playlist.EventDate, playlist.RawBlob, playlist.ScrapedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert bronze_playlist: %w", err)
	}

	for _, t := range tracks {
		_, err = tx.Exec(`
INSERT INTO bronze_track (playlist_id, position, raw_artist, raw_title, raw_duration_ns, raw_blob, scraped_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (playlist_id, position) DO UPDATE SET
    raw_artist = EXCLUDED.raw_artist,
    raw_title = EXCLUDED.raw_title,
    raw_duration_ns = EXCLUDED.raw_duration_ns,
    raw_blob = EXCLUDED.raw_blob,
    scraped_at = EXCLUDED.scraped_at`,
			id, t.Position, t.RawArtist, t.RawTitle, t.RawDuration, t.RawBlob, t.ScrapedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert bronze_track at position %d: %w", t.Position, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM bronze_track WHERE playlist_id = ? AND position > ?", id, len(tracks)); err != nil {
		return 0, fmt.Errorf("failed to delete stale bronze_track rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bronze upsert: %w", err)
	}
	return id, nil
}

// validatePositions enforces that tracks form the gapless sequence
// 1..len(tracks), in any input order, and that every track carries at
// least an artist or a title.
func validatePositions(tracks []model.BronzeTrack) error {
	if len(tracks) == 0 {
		return fmt.Errorf("%w: playlist has no tracks", model.ErrInvalidPayload)
	}

	seen := make(map[int]bool, len(tracks))
	for _, t := range tracks {
		if t.Position < 1 || t.Position > len(tracks) {
			return fmt.Errorf("%w: position %d out of range [1,%d]", model.ErrInvalidPayload, t.Position, len(tracks))
		}
		if seen[t.Position] {
			return fmt.Errorf("%w: duplicate position %d", model.ErrInvalidPayload, t.Position)
		}
		seen[t.Position] = true

		if t.RawArtist == "" && t.RawTitle == "" {
			return fmt.Errorf("%w: track at position %d has neither artist nor title", model.ErrInvalidPayload, t.Position)
		}
	}
	return nil
}

// GetBronzePlaylist fetches a playlist by (source, source_url).
func (s *Store) GetBronzePlaylist(source model.Source, sourceURL string) (*model.BronzePlaylist, error) {
	p := &model.BronzePlaylist{}
	err := s.conn.QueryRow(`
SELECT id, source, source_url, external_id, event_name, dj_name, venue, event_date, raw_blob, scraped_at
FROM bronze_playlist WHERE source = ? AND source_url = ?`, source, sourceURL,
	).Scan(&p.ID, &p.Source, &p.SourceURL, &p.ExternalID, &p.EventName, &p.DJName, &p.Venue, &p.EventDate, &p.RawBlob, &p.ScrapedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bronze_playlist: %w", err)
	}
	return p, nil
}

// ListBronzeTracks returns every track of playlistID ordered by position.
func (s *Store) ListBronzeTracks(playlistID int64) ([]model.BronzeTrack, error) {
	rows, err := s.conn.Query(`
SELECT id, playlist_id, position, raw_artist, raw_title, raw_duration_ns, raw_blob, scraped_at
FROM bronze_track WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bronze_track: %w", err)
	}
	defer rows.Close()

	var tracks []model.BronzeTrack
	for rows.Next() {
		var t model.BronzeTrack
		if err := rows.Scan(&t.ID, &t.PlaylistID, &t.Position, &t.RawArtist, &t.RawTitle, &t.RawDuration, &t.RawBlob, &t.ScrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bronze_track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}
