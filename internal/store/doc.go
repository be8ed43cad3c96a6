// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package store provides data access for the bronze, silver, gold, and
// operational medallion layers, all held in a single embedded DuckDB
// database.
//
// # Architecture
//
//   - store.go: connection lifecycle (open, prepared-statement cache, close)
//   - migrations.go: versioned, idempotent schema migrations
//   - bronze.go: raw scraped playlist/track storage with position-integrity
//     validation and transactional upsert
//   - silver.go: canonical artist/track/playlist resolution and adjacency
//     observation storage
//   - gold.go: aggregated transition and per-track statistics storage
//   - operational.go: full-rebuild graph projection for the read path
//
// # Schema evolution
//
// Every table is created by a Migration recorded in schema_migrations.
// Migrations never alter or drop a prior migration's SQL; a schema change
// is a new Migration with the next Version. GetCurrentSchemaVersion reports
// the highest applied version for startup diagnostics.
//
// # Transactions
//
// Any write that must observe multiple rows as a unit (the bronze upsert's
// position validation, the silver re-ingest's observation replace, the
// operational full rebuild) runs inside a single *sql.Tx and rolls back on
// any error, so a partial failure never leaves a layer in a state that
// violates its invariants.
package store
