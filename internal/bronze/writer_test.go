// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package bronze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/model"
	"github.com/setlistgraph/pipeline/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePayload() *model.PlaylistPayload {
	return &model.PlaylistPayload{
		Source:    model.SourceMixesDB,
		SourceURL: "https://www.mixesdb.com/w/example",
		Meta:      model.PlaylistMeta{EventName: "Example Set"},
		TracksInOrder: []model.TrackRecord{
			{RawArtist: "Artist A", RawTitle: "Track 1"},
			{RawArtist: "Artist B", RawTitle: "Track 2"},
		},
		ScrapedAt: time.Now().UTC(),
	}
}

func TestWriter_Write_AssignsPositionsFromOrder(t *testing.T) {
	s := setupTestStore(t)
	w := NewWriter(s, 1024, time.Minute)

	id, err := w.Write(samplePayload())
	require.NoError(t, err)
	require.NotZero(t, id)

	tracks, err := s.ListBronzeTracks(id)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	require.Equal(t, 1, tracks[0].Position)
	require.Equal(t, 2, tracks[1].Position)
}

func TestWriter_Write_RejectsEmptyTracklist(t *testing.T) {
	s := setupTestStore(t)
	w := NewWriter(s, 1024, time.Minute)

	payload := samplePayload()
	payload.TracksInOrder = nil

	_, err := w.Write(payload)
	require.ErrorIs(t, err, model.ErrInvalidPayload)
}

func TestWriter_Write_ReingestShortensTracklist(t *testing.T) {
	s := setupTestStore(t)
	w := NewWriter(s, 1024, time.Minute)

	id1, err := w.Write(samplePayload())
	require.NoError(t, err)

	shortened := samplePayload()
	shortened.TracksInOrder = shortened.TracksInOrder[:1]
	id2, err := w.Write(shortened)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	tracks, err := s.ListBronzeTracks(id1)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
}
