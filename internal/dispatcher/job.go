// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package dispatcher

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/model"
)

// JobState is where a Job currently sits in its lifecycle.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
)

// Job records one submitted ScrapeRequest's execution, independent of the
// ScrapeReport returned synchronously to the caller, so GET /jobs can show
// recent activity across all callers.
type Job struct {
	ID          string
	Request     model.ScrapeRequest
	State       JobState
	Report      *model.ScrapeReport
	Err         string
	SubmittedAt time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// jobStore is an in-memory, retention-bounded record of recent jobs. It
// exists purely for the GET /jobs introspection endpoint; job results are
// also returned directly and synchronously from POST /scrape.
type jobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	order     []string
	retention time.Duration
}

func newJobStore(cfg config.DispatcherConfig) *jobStore {
	retention := cfg.JobRetention
	if retention <= 0 {
		retention = time.Hour
	}
	return &jobStore{jobs: make(map[string]*Job), retention: retention}
}

func (s *jobStore) create(req model.ScrapeRequest) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := &Job{
		ID:          uuid.New().String(),
		Request:     req,
		State:       JobQueued,
		SubmittedAt: time.Now().UTC(),
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	return j
}

func (s *jobStore) markRunning(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.State = JobRunning
	j.StartedAt = time.Now().UTC()
}

func (s *jobStore) markDone(j *Job, report *model.ScrapeReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.State = JobDone
	j.Report = report
	j.CompletedAt = time.Now().UTC()
	if err != nil {
		j.Err = err.Error()
	}
	s.prune()
}

// prune drops jobs whose retention window has elapsed. Called with the lock
// already held.
func (s *jobStore) prune() {
	cutoff := time.Now().UTC().Add(-s.retention)
	kept := s.order[:0]
	for _, id := range s.order {
		j, ok := s.jobs[id]
		if !ok {
			continue
		}
		if j.State == JobDone && j.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// list returns a snapshot of tracked jobs, most recently submitted first.
func (s *jobStore) list() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if j, ok := s.jobs[s.order[i]]; ok {
			out = append(out, *j)
		}
	}
	return out
}
