// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDBQuery(t *testing.T) {
	DBQueryErrors.Reset()
	RecordDBQuery("select", "bronze_raw_playlists", 10*time.Millisecond, nil)
	assert.Equal(t, float64(0), testutil.ToFloat64(DBQueryErrors.WithLabelValues("select", "bronze_raw_playlists")))

	RecordDBQuery("insert", "bronze_raw_playlists", 5*time.Millisecond, assertErr())
	assert.Equal(t, float64(1), testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "bronze_raw_playlists")))
}

func TestRecordAPIRequest(t *testing.T) {
	APIRequestsTotal.Reset()
	RecordAPIRequest("POST", "/scrape", "202", 20*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/scrape", "202")))
}

func TestRecordFetchAttempt(t *testing.T) {
	FetchAttemptsTotal.Reset()
	RecordFetchAttempt("mixesdb", "success", 200*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(FetchAttemptsTotal.WithLabelValues("mixesdb", "success")))
}

func TestRecordFetchRetry(t *testing.T) {
	FetchRetriesTotal.Reset()
	RecordFetchRetry("beatport")
	RecordFetchRetry("beatport")
	assert.Equal(t, float64(2), testutil.ToFloat64(FetchRetriesTotal.WithLabelValues("beatport")))
}

func TestSetRateLimiterRate(t *testing.T) {
	SetRateLimiterRate("mixesdb.com", 0.75)
	assert.Equal(t, 0.75, testutil.ToFloat64(RateLimiterTokens.WithLabelValues("mixesdb.com")))
}

func TestCircuitBreakerStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"unknown", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, circuitBreakerStateValue(tt.state))
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	CircuitBreakerTransitions.Reset()
	RecordCircuitBreakerTransition("api.setlist.fm", "closed", "open")
	assert.Equal(t, float64(1), testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("api.setlist.fm", "closed", "open")))
	assert.Equal(t, float64(2), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("api.setlist.fm")))
}

func TestRecordStageRecord(t *testing.T) {
	StageRecordsProcessed.Reset()
	RecordStageRecord("silver", "accepted")
	RecordStageRecord("silver", "rejected")
	assert.Equal(t, float64(1), testutil.ToFloat64(StageRecordsProcessed.WithLabelValues("silver", "accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(StageRecordsProcessed.WithLabelValues("silver", "rejected")))
}

func TestCacheMetrics(t *testing.T) {
	CacheHits.Reset()
	CacheMisses.Reset()
	RecordCacheHit("silver_artist")
	RecordCacheMiss("silver_artist")
	RecordCacheEviction("silver_artist")
	SetCacheSize("silver_artist", 42)
	assert.Equal(t, float64(1), testutil.ToFloat64(CacheHits.WithLabelValues("silver_artist")))
	assert.Equal(t, float64(1), testutil.ToFloat64(CacheMisses.WithLabelValues("silver_artist")))
	assert.Equal(t, float64(42), testutil.ToFloat64(CacheSize.WithLabelValues("silver_artist")))
}

func TestJobMetrics(t *testing.T) {
	JobsSubmitted.Reset()
	JobsCompleted.Reset()
	RecordJobSubmitted("discogs")
	RecordJobCompleted("discogs", "success")
	SetJobQueueDepth(3)
	assert.Equal(t, float64(1), testutil.ToFloat64(JobsSubmitted.WithLabelValues("discogs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(JobsCompleted.WithLabelValues("discogs", "success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(JobQueueDepth))
}

func assertErr() error {
	return errTest
}

var errTest = errTestType{}

type errTestType struct{}

func (errTestType) Error() string { return "test error" }
