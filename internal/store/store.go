// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package store provides the DuckDB-backed persistence layer for the
// bronze, silver, gold, and operational medallion layers. A single
// embedded database holds all four, namespaced by table prefix.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/setlistgraph/pipeline/internal/config"
)

// Store wraps the DuckDB connection shared by every pipeline stage.
type Store struct {
	conn *sql.DB

	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

// Open creates the data directory if needed, opens the DuckDB connection,
// and applies every pending migration.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s",
		cfg.Path, numThreads, cfg.MaxMemory, preserveOrder)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, stmtCache: make(map[string]*sql.Stmt)}

	if err := s.runMigrations(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close releases cached prepared statements and the underlying connection.
func (s *Store) Close() error {
	s.stmtCacheMu.Lock()
	for _, stmt := range s.stmtCache {
		_ = stmt.Close()
	}
	s.stmtCache = nil
	s.stmtCacheMu.Unlock()

	return s.conn.Close()
}

// Conn exposes the underlying *sql.DB for callers (stage processors) that
// need to run ad-hoc queries or manage their own transactions.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// prepared returns a cached prepared statement for query, preparing and
// caching it on first use. Safe for concurrent use.
func (s *Store) prepared(query string) (*sql.Stmt, error) {
	s.stmtCacheMu.RLock()
	stmt, ok := s.stmtCache[query]
	s.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	s.stmtCacheMu.Lock()
	defer s.stmtCacheMu.Unlock()
	if stmt, ok := s.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := s.conn.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	s.stmtCache[query] = stmt
	return stmt, nil
}
