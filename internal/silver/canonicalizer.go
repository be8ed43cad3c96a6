// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package silver implements the Silver Canonicalizer: it resolves each raw
// bronze_track mention to a deduplicated Artist/CanonicalTrack identity,
// filters out sentinel placeholder artists, and emits the adjacency
// observations the Gold Aggregator later groups into transitions.
package silver

import (
	"fmt"
	"strings"
	"time"

	"github.com/xrash/smetrics"

	"github.com/setlistgraph/pipeline/internal/cache"
	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/logging"
	"github.com/setlistgraph/pipeline/internal/metrics"
	"github.com/setlistgraph/pipeline/internal/model"
	"github.com/setlistgraph/pipeline/internal/store"
)

const stageName = "silver"

// EnrichmentOracle is the optional external metadata lookup the
// canonicalizer consults when it creates a new canonical track. Only the
// returned external ids are merged into the track; ISRC, BPM and musical
// key are not obtained from it. Implementations must never block past
// cfg.Timeout.
type EnrichmentOracle interface {
	Enrich(artist, title string) (model.ExternalIDs, error)
}

// Canonicalizer resolves bronze records into silver identities.
type Canonicalizer struct {
	store  *store.Store
	cfg    config.SilverConfig
	oracle EnrichmentOracle // nil when enrichment is disabled

	sentinels map[string]struct{}
	aliases   *cache.AhoCorasick // alias text -> canonical artist name, built from cfg.AliasTablePath

	artistCache *cache.LFUCacheGeneric[int64] // normalized artist name -> artist id
	trackCache  *cache.LFUCacheGeneric[int64] // "artistID|normalized title" -> canonical track id

	locks *playlistLocks
}

// New builds a Canonicalizer. oracle may be nil to disable enrichment.
func New(st *store.Store, cfg config.SilverConfig, aliasTable map[string]string, oracle EnrichmentOracle) *Canonicalizer {
	sentinels := make(map[string]struct{}, len(cfg.SentinelArtists))
	for _, s := range cfg.SentinelArtists {
		sentinels[normalize(s)] = struct{}{}
	}

	var ac *cache.AhoCorasick
	if len(aliasTable) > 0 {
		ac = cache.NewAhoCorasick()
		for alias, canonical := range aliasTable {
			ac.AddPattern(normalize(alias), canonical)
		}
		ac.Build()
	}

	return &Canonicalizer{
		store:       st,
		cfg:         cfg,
		oracle:      oracle,
		sentinels:   sentinels,
		aliases:     ac,
		artistCache: cache.NewLFUCacheGeneric[int64](cfg.ArtistCacheSize, 30*time.Minute),
		trackCache:  cache.NewLFUCacheGeneric[int64](cfg.TrackCacheSize, 30*time.Minute),
		locks:       newPlaylistLocks(),
	}
}

// normalize lowercases and trims whitespace, the shared normalization rule
// for artist names, sentinel comparisons, and track-title matching.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// isSentinel reports whether the normalized artist name is a placeholder
// ("Unknown", "Unknown Artist", "Various Artists", "VA", ...), which must
// never resolve to an Artist row or participate in an adjacency observation.
func (c *Canonicalizer) isSentinel(rawArtist string) bool {
	_, ok := c.sentinels[normalize(rawArtist)]
	return ok
}

// resolveArtistName applies the alias table to rawArtist, returning the
// canonical form if a known alias matches, or rawArtist unchanged otherwise.
func (c *Canonicalizer) resolveArtistName(rawArtist string) string {
	if c.aliases == nil {
		return rawArtist
	}
	if m, ok := c.aliases.SearchFirst(normalize(rawArtist)); ok {
		if canonical, ok := m.Data.(string); ok {
			return canonical
		}
	}
	return rawArtist
}

// ProcessPlaylist canonicalizes every track of a bronze playlist and
// replaces its adjacency observations. Concurrent calls for the same
// bronzePlaylistID are serialized so a playlist is never canonicalized by
// two goroutines at once; calls for distinct playlists proceed in parallel.
func (c *Canonicalizer) ProcessPlaylist(bronzePlaylistID int64, bronze *model.BronzePlaylist, tracks []model.BronzeTrack) (int64, error) {
	unlock := c.locks.lock(bronzePlaylistID)
	defer unlock()

	start := time.Now()
	defer func() { metrics.RecordStageDuration(stageName, time.Since(start)) }()

	canonicalPlaylist := &model.CanonicalPlaylist{
		Source:    bronze.Source,
		SourceURL: bronze.SourceURL,
		EventName: bronze.EventName,
		EventDate: bronze.EventDate,
		Venue:     bronze.Venue,
	}
	if bronze.DJName != "" && !c.isSentinel(bronze.DJName) {
		djArtistID, err := c.resolveArtist(bronze.DJName)
		if err != nil {
			return 0, fmt.Errorf("resolving dj artist: %w", err)
		}
		if djArtistID != 0 {
			canonicalPlaylist.DJArtistID = &djArtistID
		}
	}

	canonicalPlaylistID, err := c.store.UpsertCanonicalPlaylist(canonicalPlaylist)
	if err != nil {
		metrics.RecordStageRecord(stageName, "rejected")
		return 0, fmt.Errorf("upserting canonical_playlist: %w", err)
	}

	resolved := make([]int64, len(tracks)) // resolved[i] == 0 means track i didn't resolve
	for i, t := range tracks {
		trackID, err := c.resolveTrack(t)
		if err != nil {
			logging.Warn().Err(err).Str("source_url", bronze.SourceURL).Int("position", t.Position).
				Msg("silver track resolution failed, skipping")
			continue
		}
		resolved[i] = trackID
	}

	var observations []model.AdjacencyObservation
	for i := 0; i+1 < len(resolved); i++ {
		if resolved[i] == 0 || resolved[i+1] == 0 {
			continue
		}
		if c.isSentinel(tracks[i].RawArtist) || c.isSentinel(tracks[i+1].RawArtist) {
			continue
		}
		observations = append(observations, model.AdjacencyObservation{
			CanonicalPlaylistID: canonicalPlaylistID,
			Position:            tracks[i].Position,
			SourceTrackID:       resolved[i],
			TargetTrackID:       resolved[i+1],
		})
	}

	maxPosition := len(tracks)
	if err := c.store.ReplaceAdjacencyObservations(canonicalPlaylistID, observations, maxPosition); err != nil {
		metrics.RecordStageRecord(stageName, "rejected")
		return 0, fmt.Errorf("replacing adjacency observations: %w", err)
	}

	metrics.RecordStageRecord(stageName, "processed")
	return canonicalPlaylistID, nil
}

// resolveArtist looks up or creates the Artist for rawArtist, consulting
// the cache before the store. Sentinel artists are never resolved and
// return (0, nil).
func (c *Canonicalizer) resolveArtist(rawArtist string) (int64, error) {
	if c.isSentinel(rawArtist) {
		return 0, nil
	}
	canonicalName := c.resolveArtistName(rawArtist)
	key := normalize(canonicalName)

	if id, ok := c.artistCache.Get(key); ok {
		metrics.RecordCacheHit("silver_artist")
		return id, nil
	}
	metrics.RecordCacheMiss("silver_artist")

	existing, err := c.store.GetArtistByNormalizedName(key)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		c.artistCache.Set(key, existing.ID)
		return existing.ID, nil
	}

	id, err := c.store.InsertArtist(&model.Artist{CanonicalName: canonicalName, NormalizedName: key})
	if err != nil {
		return 0, err
	}
	c.artistCache.Set(key, id)
	return id, nil
}

// resolveTrack resolves a single bronze track to a canonical_track id,
// trying the track cache, then a fuzzy title match within the resolved
// artist's candidate pool, then finally creating a new row. No external-id
// or ISRC lookup is made, since bronze tracks carry neither.
// Returns (0, nil) when the artist is a sentinel, since such tracks must
// never appear in an adjacency observation.
func (c *Canonicalizer) resolveTrack(t model.BronzeTrack) (int64, error) {
	if c.isSentinel(t.RawArtist) {
		return 0, nil
	}

	artistID, err := c.resolveArtist(t.RawArtist)
	if err != nil {
		return 0, fmt.Errorf("resolving artist %q: %w", t.RawArtist, err)
	}

	normTitle := normalize(t.RawTitle)
	cacheKey := fmt.Sprintf("%d|%s", artistID, normTitle)
	if id, ok := c.trackCache.Get(cacheKey); ok {
		metrics.RecordCacheHit("silver_track")
		return id, nil
	}
	metrics.RecordCacheMiss("silver_track")

	if existing, err := c.matchExistingTrack(artistID, normTitle); err != nil {
		return 0, err
	} else if existing != nil {
		c.trackCache.Set(cacheKey, existing.ID)
		return existing.ID, nil
	}

	newTrack := &model.CanonicalTrack{
		Title:           t.RawTitle,
		PrimaryArtistID: artistID,
		Duration:        t.RawDuration,
	}
	if c.oracle != nil {
		if ext, err := c.oracle.Enrich(t.RawArtist, t.RawTitle); err == nil {
			newTrack.ExternalIDs = newTrack.ExternalIDs.Merge(ext)
		}
	}

	id, err := c.store.InsertCanonicalTrack(newTrack)
	if err != nil {
		return 0, fmt.Errorf("inserting canonical_track: %w", err)
	}
	c.trackCache.Set(cacheKey, id)
	return id, nil
}

// matchExistingTrack runs the fuzzy title match within artistID's candidate
// pool; no external id is known at this point in the pipeline (bronze
// carries none).
func (c *Canonicalizer) matchExistingTrack(artistID int64, normTitle string) (*model.CanonicalTrack, error) {
	candidates, err := c.store.FindCanonicalTracksByArtist(artistID)
	if err != nil {
		return nil, fmt.Errorf("loading candidate tracks for artist %d: %w", artistID, err)
	}

	var best *model.CanonicalTrack
	bestScore := 0.0
	for i := range candidates {
		score := smetrics.JaroWinkler(normTitle, normalize(candidates[i].Title), 0.7, 4)
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	if best != nil && bestScore >= c.cfg.FuzzyThreshold {
		return best, nil
	}
	return nil, nil
}
