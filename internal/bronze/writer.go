// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package bronze implements the Bronze Writer stage: it takes a scraped
// model.PlaylistPayload and turns it into a validated, positioned
// bronze_playlist/bronze_track write. It does not parse or canonicalize
// anything beyond assigning positions; that's the Silver Canonicalizer's
// job.
package bronze

import (
	"fmt"
	"time"

	"github.com/setlistgraph/pipeline/internal/cache"
	"github.com/setlistgraph/pipeline/internal/logging"
	"github.com/setlistgraph/pipeline/internal/metrics"
	"github.com/setlistgraph/pipeline/internal/model"
	"github.com/setlistgraph/pipeline/internal/store"
)

const stageName = "bronze"

// Writer converts PlaylistPayloads into bronze_playlist/bronze_track rows.
type Writer struct {
	store *store.Store

	// dedup holds a cheap bloom pre-check plus an exact recently-seen LRU
	// keyed by "source:source_url". A hit within the TTL window is
	// advisory: it is logged and counted as a cache hit, and the payload
	// is still validated and upserted.
	dedup *cache.BloomLRU
}

// NewWriter builds a Writer. recentTTL controls how long a (source,
// source_url) pair is treated as "already written this run"; 0 disables
// the dedup pre-check.
func NewWriter(st *store.Store, dedupCapacity int, recentTTL time.Duration) *Writer {
	w := &Writer{store: st}
	if recentTTL > 0 {
		w.dedup = cache.NewBloomLRU(dedupCapacity, recentTTL, 0.01)
	}
	return w
}

// Write validates and persists payload, returning the bronze_playlist id.
// A payload whose track positions aren't a gapless 1..N sequence, or whose
// track is missing both artist and title, fails with model.ErrInvalidPayload
// and nothing is written.
func (w *Writer) Write(payload *model.PlaylistPayload) (int64, error) {
	key := string(payload.Source) + ":" + payload.SourceURL

	if w.dedup != nil && w.dedup.IsDuplicate(key) {
		metrics.RecordCacheHit("bronze_dedup")
		logging.Info().Str("source", string(payload.Source)).Str("url", payload.SourceURL).
			Msg("bronze write: recently seen duplicate, upserting anyway")
	} else if w.dedup != nil {
		metrics.RecordCacheMiss("bronze_dedup")
	}

	playlist := &model.BronzePlaylist{
		Source:     payload.Source,
		SourceURL:  payload.SourceURL,
		ExternalID: payload.Meta.ExternalID,
		EventName:  payload.Meta.EventName,
		DJName:     payload.Meta.DJName,
		Venue:      payload.Meta.Venue,
		EventDate:  payload.Meta.EventDate,
		RawBlob:    payload.RawBlob,
		ScrapedAt:  payload.ScrapedAt,
	}

	tracks := make([]model.BronzeTrack, 0, len(payload.TracksInOrder))
	for i, rec := range payload.TracksInOrder {
		tracks = append(tracks, model.BronzeTrack{
			Position:    i + 1, // positions are 1-indexed and assigned purely from list order
			RawArtist:   rec.RawArtist,
			RawTitle:    rec.RawTitle,
			RawDuration: int64(rec.RawDuration),
			ScrapedAt:   payload.ScrapedAt,
		})
	}

	start := time.Now()
	id, err := w.store.UpsertBronzePlaylist(playlist, tracks)
	metrics.RecordStageDuration(stageName, time.Since(start))
	if err != nil {
		metrics.RecordStageRecord(stageName, "rejected")
		return 0, fmt.Errorf("bronze write for %s: %w", payload.SourceURL, err)
	}
	metrics.RecordStageRecord(stageName, "written")

	if w.dedup != nil {
		w.dedup.Record(key)
	}
	return id, nil
}
