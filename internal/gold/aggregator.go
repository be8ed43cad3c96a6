// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package gold implements the Gold Aggregator: it groups Silver's adjacency
// observations by (source_track, target_track) pair into Transition rows
// carrying occurrence counts, derived musical metrics, and a composite
// quality score, plus the per-track rollups (track_stats) those scores
// draw popularity from.
package gold

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/setlistgraph/pipeline/internal/cache"
	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/metrics"
	"github.com/setlistgraph/pipeline/internal/model"
	"github.com/setlistgraph/pipeline/internal/store"
)

const stageName = "gold"

// recencyHalfLife sets how quickly a transition's recency quality
// component decays after its last observation; not exposed in config since
// it's a fixed modeling choice rather than an operator tunable.
const recencyHalfLife = 90 * 24 * time.Hour

// Aggregator rebuilds Gold-layer rows from Silver's adjacency observations.
type Aggregator struct {
	store *store.Store
	cfg   config.GoldConfig

	pairLocks sync.Map // (source,target) int64 pair key -> *sync.Mutex, serializes concurrent rebuilds of the same pair
}

// New builds an Aggregator.
func New(st *store.Store, cfg config.GoldConfig) *Aggregator {
	return &Aggregator{store: st, cfg: cfg}
}

func pairKey(source, target int64) int64 {
	// Pack both 32-bit-range ids into one int64 key; track ids are
	// sequence-generated and never approach 2^31 in this pipeline's scale.
	return source<<32 | (target & 0xffffffff)
}

func (a *Aggregator) lockPair(source, target int64) func() {
	key := pairKey(source, target)
	v, _ := a.pairLocks.LoadOrStore(key, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// RebuildPair recomputes and persists the Transition row for one
// (sourceTrackID, targetTrackID) pair from its current adjacency
// observations. Safe to call concurrently for distinct pairs; concurrent
// calls for the same pair are serialized.
func (a *Aggregator) RebuildPair(sourceTrackID, targetTrackID int64) (*model.Transition, error) {
	unlock := a.lockPair(sourceTrackID, targetTrackID)
	defer unlock()

	start := time.Now()
	defer func() { metrics.RecordStageDuration(stageName, time.Since(start)) }()

	observations, err := a.store.ListAdjacencyObservationsForPair(sourceTrackID, targetTrackID)
	if err != nil {
		return nil, fmt.Errorf("loading observations for (%d,%d): %w", sourceTrackID, targetTrackID, err)
	}
	if len(observations) == 0 {
		return nil, nil
	}

	playlistIDs := make(map[int64]struct{}, len(observations))
	for _, o := range observations {
		playlistIDs[o.CanonicalPlaylistID] = struct{}{}
	}
	ids := make([]int64, 0, len(playlistIDs))
	for id := range playlistIDs {
		ids = append(ids, id)
	}

	sourceTrack, err := a.store.GetCanonicalTrackByID(sourceTrackID)
	if err != nil {
		return nil, fmt.Errorf("loading source track %d: %w", sourceTrackID, err)
	}
	targetTrack, err := a.store.GetCanonicalTrackByID(targetTrackID)
	if err != nil {
		return nil, fmt.Errorf("loading target track %d: %w", targetTrackID, err)
	}

	// The previous rebuild's last_observed_at (if any) feeds this rebuild's
	// recency component; a transition with no previous row gets the neutral
	// component value instead.
	now := time.Now().UTC()
	recency := neutralComponent
	if existing, err := a.store.GetTransition(sourceTrackID, targetTrackID); err != nil {
		return nil, fmt.Errorf("loading existing transition (%d,%d): %w", sourceTrackID, targetTrackID, err)
	} else if existing != nil {
		recency = recencyScore(existing.LastObservedAt, now)
	}

	popularity := neutralComponent
	if p, err := a.averagePopularity(sourceTrackID, targetTrackID); err != nil {
		return nil, fmt.Errorf("loading track_stats for (%d,%d): %w", sourceTrackID, targetTrackID, err)
	} else if p != nil {
		popularity = *p
	}

	metricsOut := deriveMetrics(sourceTrack, targetTrack, len(ids), a.cfg, recency, popularity)

	transition := &model.Transition{
		SourceTrackID:        sourceTrackID,
		TargetTrackID:        targetTrackID,
		OccurrenceCount:      len(ids),
		ObservingPlaylistIDs: ids,
		LastObservedAt:       now,
		DerivedMetrics:       metricsOut,
	}

	id, err := a.store.UpsertTransition(transition)
	if err != nil {
		metrics.RecordStageRecord(stageName, "rejected")
		return nil, fmt.Errorf("upserting transition (%d,%d): %w", sourceTrackID, targetTrackID, err)
	}
	transition.ID = id
	metrics.RecordStageRecord(stageName, "rebuilt")
	return transition, nil
}

// deriveMetrics computes a transition's derived metrics. Components that
// can't be computed because a track is missing the underlying field (BPM,
// musical key, energy) are left nil rather than defaulted to zero, so the
// quality weighting can treat them as neutral instead of penalizing.
func deriveMetrics(source, target *model.CanonicalTrack, occurrenceCount int, cfg config.GoldConfig, recency, popularity float64) model.DerivedMetrics {
	m := model.DerivedMetrics{
		Confidence: 1 - math.Exp(-float64(occurrenceCount)/cfg.ConfidenceK),
	}

	var keyCompatRate *float64
	if source.MusicalKey != "" && target.MusicalKey != "" {
		if compatible, ok := keyCompatible(source.MusicalKey, target.MusicalKey); ok {
			rate := 0.0
			if compatible {
				rate = 1.0
			}
			keyCompatRate = &rate
		}
	}
	m.KeyCompatRate = keyCompatRate

	bpmCompat := neutralComponent
	if source.BPM != nil && target.BPM != nil {
		delta := math.Abs(*target.BPM - *source.BPM)
		m.BPMDeltaAvg = &delta
		bpmCompat = bpmCompatScore(delta, cfg.BPMTolerance)
	}

	energySmoothness := neutralComponent
	if source.Energy != nil && target.Energy != nil {
		delta := math.Abs(*target.Energy - *source.Energy)
		m.EnergyDeltaAvg = &delta
		energySmoothness = 1 - clamp01(delta)
	}

	m.Quality = weightedQuality(m, recency, popularity, bpmCompat, energySmoothness, cfg)
	return m
}

// bpmCompatScore turns a raw BPM delta into a [0,1] compatibility score: 1 at
// zero delta, decaying linearly to 0 at tolerance BPM or more apart.
func bpmCompatScore(delta, tolerance float64) float64 {
	if tolerance <= 0 {
		return neutralComponent
	}
	return clamp01(1 - delta/tolerance)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// neutralComponent is substituted for a quality component that can't be
// computed from available data, so an unscored dimension doesn't drag a
// transition's quality toward either extreme.
const neutralComponent = 0.5

func weightedQuality(m model.DerivedMetrics, recency, popularity, bpmCompat, energySmoothness float64, cfg config.GoldConfig) float64 {
	keyComponent := neutralComponent
	if m.KeyCompatRate != nil {
		keyComponent = *m.KeyCompatRate
	}

	w := cfg.QualityWeights
	total := w.Confidence + w.Recency + w.KeyCompat + w.Popularity + w.BPMCompat + w.EnergySmoothness
	if total == 0 {
		total = 1
	}

	score := w.Confidence*m.Confidence + w.Recency*recency +
		w.KeyCompat*keyComponent + w.Popularity*popularity +
		w.BPMCompat*bpmCompat + w.EnergySmoothness*energySmoothness
	return score / total
}

// averagePopularity returns the mean of both endpoints' track_stats
// popularity, or nil if neither track has a rollup yet (e.g. RebuildPair ran
// before the first RebuildTrackStats pass).
func (a *Aggregator) averagePopularity(sourceTrackID, targetTrackID int64) (*float64, error) {
	sourceStats, err := a.store.GetTrackStats(sourceTrackID)
	if err != nil {
		return nil, err
	}
	targetStats, err := a.store.GetTrackStats(targetTrackID)
	if err != nil {
		return nil, err
	}
	switch {
	case sourceStats == nil && targetStats == nil:
		return nil, nil
	case sourceStats == nil:
		return &targetStats.Popularity, nil
	case targetStats == nil:
		return &sourceStats.Popularity, nil
	default:
		avg := (sourceStats.Popularity + targetStats.Popularity) / 2
		return &avg, nil
	}
}

// recencyScore applies an exponential half-life decay to how long ago
// lastObserved was.
func recencyScore(lastObserved time.Time, now time.Time) float64 {
	age := now.Sub(lastObserved)
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * age.Hours() / recencyHalfLife.Hours())
}

// RebuildAll recomputes track_stats and every transition row from the
// current set of adjacency observations. Track stats are rebuilt first so
// RebuildPair's popularity component reflects this pass rather than the
// previous one.
func (a *Aggregator) RebuildAll() error {
	if err := a.RebuildTrackStats(); err != nil {
		return err
	}
	pairs, err := a.store.ListDistinctTransitionPairs()
	if err != nil {
		return fmt.Errorf("listing transition pairs: %w", err)
	}
	for _, pair := range pairs {
		if _, err := a.RebuildPair(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

// RebuildTrackStats recomputes appearance/in-degree/out-degree/popularity
// for every track touched by at least one adjacency observation. Each
// track's distinct-playlist appearance count is stored in a Fenwick tree
// built fresh on every call, and popularity is the min-max normalization of
// those counts (1.0 for every track when all counts are equal and nonzero).
func (a *Aggregator) RebuildTrackStats() error {
	pairs, err := a.store.ListDistinctTransitionPairs()
	if err != nil {
		return fmt.Errorf("listing transition pairs: %w", err)
	}

	index := make(map[int64]int)
	indexOf := func(trackID int64) int {
		if i, ok := index[trackID]; ok {
			return i
		}
		i := len(index)
		index[trackID] = i
		return i
	}

	type degrees struct {
		appearances map[int64]struct{} // distinct playlists this track appeared in
		in, out     int
	}
	stats := make(map[int64]*degrees)

	for _, pair := range pairs {
		source, target := pair[0], pair[1]
		indexOf(source)
		indexOf(target)

		observations, err := a.store.ListAdjacencyObservationsForPair(source, target)
		if err != nil {
			return fmt.Errorf("listing observations for (%d,%d): %w", source, target, err)
		}

		if _, ok := stats[source]; !ok {
			stats[source] = &degrees{appearances: map[int64]struct{}{}}
		}
		if _, ok := stats[target]; !ok {
			stats[target] = &degrees{appearances: map[int64]struct{}{}}
		}
		stats[source].out += len(observations)
		stats[target].in += len(observations)
		for _, o := range observations {
			stats[source].appearances[o.CanonicalPlaylistID] = struct{}{}
			stats[target].appearances[o.CanonicalPlaylistID] = struct{}{}
		}
	}

	ft := cache.NewFenwickTree(len(index))
	for trackID, idx := range index {
		ft.Set(idx, int64(len(stats[trackID].appearances)))
	}

	var maxAppearances int64
	minAppearances := int64(-1)
	for i := 0; i < ft.Size(); i++ {
		v := ft.Get(i)
		if v > maxAppearances {
			maxAppearances = v
		}
		if minAppearances < 0 || v < minAppearances {
			minAppearances = v
		}
	}

	for trackID, idx := range index {
		appearanceCount := ft.Get(idx)
		popularity := 0.0
		switch {
		case maxAppearances > minAppearances:
			popularity = float64(appearanceCount-minAppearances) / float64(maxAppearances-minAppearances)
		case maxAppearances > 0:
			popularity = 1.0
		}
		ts := &model.TrackStats{
			TrackID:         trackID,
			AppearanceCount: int(appearanceCount),
			InDegree:        stats[trackID].in,
			OutDegree:       stats[trackID].out,
			Popularity:      popularity,
		}
		if err := a.store.UpsertTrackStats(ts); err != nil {
			return fmt.Errorf("upserting track_stats for track %d: %w", trackID, err)
		}
	}

	return nil
}
