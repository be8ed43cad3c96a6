// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package store

import (
	"fmt"
	"time"
)

// Migration is one versioned, idempotent schema change. Migrations are
// applied in Version order, each inside its own transaction, and recorded
// in schema_migrations so a restart never re-applies one.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
}

// getMigrations returns every migration in ascending version order. The
// medallion layers share one initial migration per layer rather than one
// per table, since bronze/silver/gold/operational each form a single unit
// of schema evolution in this pipeline.
func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "bronze_schema",
			Description: "raw scraped playlists and tracks, ordered by position",
			SQL: `
CREATE TABLE IF NOT EXISTS bronze_playlist (
    id BIGINT PRIMARY KEY DEFAULT nextval('bronze_playlist_id_seq'),
    source VARCHAR NOT NULL,
    source_url VARCHAR NOT NULL,
    external_id VARCHAR,
    event_name VARCHAR,
    dj_name VARCHAR,
    venue VARCHAR,
    event_date TIMESTAMP,
    raw_blob BLOB,
    scraped_at TIMESTAMP NOT NULL,
    UNIQUE (source, source_url)
);

CREATE TABLE IF NOT EXISTS bronze_track (
    id BIGINT PRIMARY KEY DEFAULT nextval('bronze_track_id_seq'),
    playlist_id BIGINT NOT NULL REFERENCES bronze_playlist(id),
    position INTEGER NOT NULL,
    raw_artist VARCHAR,
    raw_title VARCHAR,
    raw_duration_ns BIGINT,
    raw_blob BLOB,
    scraped_at TIMESTAMP NOT NULL,
    UNIQUE (playlist_id, position)
);

CREATE INDEX IF NOT EXISTS idx_bronze_track_playlist ON bronze_track(playlist_id);
`,
		},
		{
			Version:     2,
			Name:        "silver_schema",
			Description: "canonical artists, tracks, playlists, and adjacency observations",
			SQL: `
CREATE TABLE IF NOT EXISTS artist (
    id BIGINT PRIMARY KEY DEFAULT nextval('artist_id_seq'),
    canonical_name VARCHAR NOT NULL,
    normalized_name VARCHAR NOT NULL,
    aliases VARCHAR[],
    external_ids JSON,
    country VARCHAR,
    genres VARCHAR[],
    UNIQUE (normalized_name)
);

CREATE TABLE IF NOT EXISTS canonical_track (
    id BIGINT PRIMARY KEY DEFAULT nextval('canonical_track_id_seq'),
    title VARCHAR NOT NULL,
    primary_artist_id BIGINT NOT NULL REFERENCES artist(id),
    duration BIGINT,
    isrc VARCHAR,
    external_ids JSON,
    bpm DOUBLE,
    musical_key VARCHAR,
    energy DOUBLE,
    genre VARCHAR,
    label VARCHAR,
    release_date TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_canonical_track_isrc ON canonical_track(isrc) WHERE isrc IS NOT NULL AND isrc != '';
CREATE INDEX IF NOT EXISTS idx_canonical_track_title_artist ON canonical_track(title, primary_artist_id);

CREATE TABLE IF NOT EXISTS canonical_playlist (
    id BIGINT PRIMARY KEY DEFAULT nextval('canonical_playlist_id_seq'),
    source VARCHAR NOT NULL,
    source_url VARCHAR NOT NULL,
    event_name VARCHAR,
    dj_artist_id BIGINT REFERENCES artist(id),
    event_date TIMESTAMP,
    venue VARCHAR,
    UNIQUE (source_url)
);

CREATE TABLE IF NOT EXISTS adjacency_observation (
    canonical_playlist_id BIGINT NOT NULL REFERENCES canonical_playlist(id),
    position INTEGER NOT NULL,
    source_track_id BIGINT NOT NULL REFERENCES canonical_track(id),
    target_track_id BIGINT NOT NULL REFERENCES canonical_track(id),
    PRIMARY KEY (canonical_playlist_id, position)
);

CREATE INDEX IF NOT EXISTS idx_adjacency_source ON adjacency_observation(source_track_id);
CREATE INDEX IF NOT EXISTS idx_adjacency_target ON adjacency_observation(target_track_id);
`,
		},
		{
			Version:     3,
			Name:        "gold_schema",
			Description: "aggregated transitions and per-track stats",
			SQL: `
CREATE TABLE IF NOT EXISTS transition (
    id BIGINT PRIMARY KEY DEFAULT nextval('transition_id_seq'),
    source_track_id BIGINT NOT NULL REFERENCES canonical_track(id),
    target_track_id BIGINT NOT NULL REFERENCES canonical_track(id),
    occurrence_count INTEGER NOT NULL,
    observing_playlist_ids BIGINT[] NOT NULL,
    last_observed_at TIMESTAMP NOT NULL,
    bpm_delta_avg DOUBLE,
    key_compat_rate DOUBLE,
    energy_delta_avg DOUBLE,
    confidence DOUBLE NOT NULL,
    quality DOUBLE NOT NULL,
    UNIQUE (source_track_id, target_track_id)
);

CREATE TABLE IF NOT EXISTS track_stats (
    track_id BIGINT PRIMARY KEY REFERENCES canonical_track(id),
    appearance_count INTEGER NOT NULL DEFAULT 0,
    in_degree INTEGER NOT NULL DEFAULT 0,
    out_degree INTEGER NOT NULL DEFAULT 0,
    popularity DOUBLE NOT NULL DEFAULT 0
);
`,
		},
		{
			Version:     4,
			Name:        "operational_schema",
			Description: "read-optimized graph projection served to the visualization layer",
			SQL: `
CREATE TABLE IF NOT EXISTS graph_node (
    id BIGINT PRIMARY KEY,
    label VARCHAR NOT NULL,
    artist VARCHAR,
    title VARCHAR,
    bpm DOUBLE,
    musical_key VARCHAR,
    popularity DOUBLE NOT NULL DEFAULT 0,
    appearance_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS graph_edge (
    source_id BIGINT NOT NULL REFERENCES graph_node(id),
    target_id BIGINT NOT NULL REFERENCES graph_node(id),
    weight INTEGER NOT NULL,
    confidence DOUBLE NOT NULL,
    quality DOUBLE NOT NULL,
    avg_bpm_delta DOUBLE,
    PRIMARY KEY (source_id, target_id),
    CHECK (source_id != target_id)
);
`,
		},
	}
}

// runMigrations creates the sequence generators and schema_migrations
// tracking table if absent, then applies every migration whose version
// has not yet been recorded, each inside its own transaction.
func (s *Store) runMigrations() error {
	if err := s.createSequences(); err != nil {
		return err
	}
	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return err
	}

	for _, m := range getMigrations() {
		if applied[m.Version] {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (s *Store) createSequences() error {
	sequences := []string{
		"bronze_playlist_id_seq", "bronze_track_id_seq",
		"artist_id_seq", "canonical_track_id_seq", "canonical_playlist_id_seq",
		"transition_id_seq",
	}
	for _, seq := range sequences {
		if _, err := s.conn.Exec(fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s START 1", seq)); err != nil {
			return fmt.Errorf("failed to create sequence %s: %w", seq, err)
		}
	}
	return nil
}

func (s *Store) createMigrationsTable() error {
	_, err := s.conn.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name VARCHAR NOT NULL,
    description VARCHAR,
    applied_at TIMESTAMP NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.conn.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (s *Store) applyMigration(m Migration) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)",
		m.Version, m.Name, m.Description, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// GetCurrentSchemaVersion returns the highest applied migration version.
func (s *Store) GetCurrentSchemaVersion() (int, error) {
	var version int
	err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}
