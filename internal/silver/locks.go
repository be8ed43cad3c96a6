// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package silver

import "sync"

// playlistLocks hands out one mutex per bronze playlist id, so concurrent
// re-processing of the same playlist is serialized (single-owner-goroutine
// per key) while distinct playlists still canonicalize in parallel.
type playlistLocks struct {
	mu    sync.Mutex
	perID map[int64]*sync.Mutex
}

func newPlaylistLocks() *playlistLocks {
	return &playlistLocks{perID: make(map[int64]*sync.Mutex)}
}

// lock acquires the mutex for id, creating it on first use, and returns a
// function that releases it.
func (l *playlistLocks) lock(id int64) func() {
	l.mu.Lock()
	m, ok := l.perID[id]
	if !ok {
		m = &sync.Mutex{}
		l.perID[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
