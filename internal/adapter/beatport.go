// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/fetch"
	"github.com/setlistgraph/pipeline/internal/model"
)

// BeatportAdapter talks to Beatport's catalog API for DJ chart and release
// data. Beatport's charts are themselves a form of "set" for this pipeline's
// purposes: an ordered list of tracks a DJ or label curated, which is why
// the dispatcher can point it at a chart URL the same way it points
// MixesDB at a wiki page.
type BeatportAdapter struct {
	cfg     config.SourceConfig
	fetcher *fetch.Fetcher
	rc      *resty.Client
}

func NewBeatportAdapter(cfg config.SourceConfig, fetcher *fetch.Fetcher) *BeatportAdapter {
	return &BeatportAdapter{cfg: cfg, fetcher: fetcher, rc: resty.New()}
}

func (a *BeatportAdapter) Source() model.Source { return model.SourceBeatport }

type beatportChartSearchResponse struct {
	Results []struct {
		ChartID int    `json:"chart_id"`
		Name    string `json:"name"`
		URL     string `json:"chart_url"`
	} `json:"results"`
}

func (a *BeatportAdapter) Search(ctx context.Context, query string, limit int) ([]model.PlaylistCandidate, error) {
	searchURL := fmt.Sprintf("%s/catalog/charts/search/?q=%s&per_page=%d&client_id=%s",
		a.cfg.BaseURL, url.QueryEscape(query), limit, a.cfg.ClientID)
	body, err := a.fetcher.Do(ctx, model.SourceBeatport, searchURL)
	if err != nil {
		return nil, err
	}

	var parsed beatportChartSearchResponse
	if uerr := a.rc.JSONUnmarshal(body, &parsed); uerr != nil {
		return nil, model.NewFetchError(model.CodeMalformed, searchURL, uerr)
	}

	candidates := make([]model.PlaylistCandidate, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		if i >= limit {
			break
		}
		candidates = append(candidates, model.PlaylistCandidate{
			URL:          r.URL,
			HintMetadata: map[string]string{"name": r.Name},
		})
	}
	return candidates, nil
}

type beatportChartDetail struct {
	Name      string `json:"name"`
	PublishDate string `json:"publish_date"`
	DJName    string `json:"person_name"`
	Tracks    []struct {
		Name     string  `json:"name"`
		MixName  string  `json:"mix_name"`
		Artists  []struct {
			Name string `json:"name"`
		} `json:"artists"`
		BPM      float64 `json:"bpm"`
		Key      string  `json:"key"`
		Label    struct {
			Name string `json:"name"`
		} `json:"label"`
		LengthMS int    `json:"length_ms"`
		ISRC     string `json:"isrc"`
	} `json:"tracks"`
}

func (a *BeatportAdapter) Fetch(ctx context.Context, chartURL string) (*model.PlaylistPayload, error) {
	apiURL := chartURL
	if a.cfg.ClientID != "" {
		sep := "?"
		if strings.Contains(chartURL, "?") {
			sep = "&"
		}
		apiURL = fmt.Sprintf("%s%sclient_id=%s", chartURL, sep, a.cfg.ClientID)
	}

	body, err := a.fetcher.Do(ctx, model.SourceBeatport, apiURL)
	if err != nil {
		return nil, err
	}

	var detail beatportChartDetail
	if uerr := a.rc.JSONUnmarshal(body, &detail); uerr != nil {
		return nil, model.NewFetchError(model.CodeMalformed, chartURL, uerr)
	}
	if len(detail.Tracks) == 0 {
		return nil, model.NewFetchError(model.CodeMalformed, chartURL, fmt.Errorf("chart has no tracks"))
	}

	tracks := make([]model.TrackRecord, 0, len(detail.Tracks))
	for _, t := range detail.Tracks {
		artist := ""
		if len(t.Artists) > 0 {
			artist = t.Artists[0].Name
		}
		title := t.Name
		if t.MixName != "" && t.MixName != "Original Mix" {
			title = fmt.Sprintf("%s (%s)", t.Name, t.MixName)
		}
		var bpm *float64
		if t.BPM > 0 {
			bpmVal := t.BPM
			bpm = &bpmVal
		}
		tracks = append(tracks, model.TrackRecord{
			RawArtist:   artist,
			RawTitle:    title,
			BPM:         bpm,
			MusicalKey:  t.Key,
			Label:       t.Label.Name,
			ISRC:        t.ISRC,
			RawDuration: time.Duration(t.LengthMS) * time.Millisecond,
		})
	}

	var eventDate *time.Time
	if t, perr := time.Parse("2006-01-02", detail.PublishDate); perr == nil {
		eventDate = &t
	}

	return &model.PlaylistPayload{
		Source:    model.SourceBeatport,
		SourceURL: chartURL,
		Meta: model.PlaylistMeta{
			EventName: detail.Name,
			DJName:    detail.DJName,
			EventDate: eventDate,
		},
		TracksInOrder: tracks,
		RawBlob:       body,
		ScrapedAt:     time.Now().UTC(),
	}, nil
}
