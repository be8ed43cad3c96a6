// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/fetch"
	"github.com/setlistgraph/pipeline/internal/model"
)

// SetlistFMAdapter talks to the setlist.fm REST API. Unlike the
// HTML-scraping adapters, it builds request URLs itself and lets
// *fetch.Fetcher perform the actual GET, so the resilience stack still
// owns rate limiting and retries; resty here is used purely as a response
// decoder, not as its own HTTP client.
type SetlistFMAdapter struct {
	cfg    config.SourceConfig
	fetcher *fetch.Fetcher
	rc     *resty.Client
}

func NewSetlistFMAdapter(cfg config.SourceConfig, fetcher *fetch.Fetcher) *SetlistFMAdapter {
	return &SetlistFMAdapter{cfg: cfg, fetcher: fetcher, rc: resty.New()}
}

func (a *SetlistFMAdapter) Source() model.Source { return model.SourceSetlistFM }

type setlistFMSearchResponse struct {
	Setlist []setlistFMSetlist `json:"setlist"`
}

type setlistFMSetlist struct {
	ID       string `json:"id"`
	EventDate string `json:"eventDate"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Venue struct {
		Name string `json:"name"`
		City struct {
			Name string `json:"name"`
		} `json:"city"`
	} `json:"venue"`
	URL string `json:"url"`
}

func (a *SetlistFMAdapter) Search(ctx context.Context, query string, limit int) ([]model.PlaylistCandidate, error) {
	searchURL := fmt.Sprintf("%s/1.0/search/setlists?artistName=%s&p=1", a.cfg.BaseURL, query)
	body, err := a.fetcher.Do(ctx, model.SourceSetlistFM, searchURL)
	if err != nil {
		return nil, err
	}

	var parsed setlistFMSearchResponse
	if uerr := a.decode(body, &parsed, searchURL); uerr != nil {
		return nil, uerr
	}

	candidates := make([]model.PlaylistCandidate, 0, limit)
	for _, s := range parsed.Setlist {
		if len(candidates) >= limit {
			break
		}
		candidates = append(candidates, model.PlaylistCandidate{
			URL: s.URL,
			HintMetadata: map[string]string{
				"artist": s.Artist.Name,
				"venue":  s.Venue.Name,
				"date":   s.EventDate,
			},
		})
	}
	return candidates, nil
}

type setlistFMDetail struct {
	ID       string `json:"id"`
	EventDate string `json:"eventDate"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Venue struct {
		Name string `json:"name"`
	} `json:"venue"`
	Sets struct {
		Set []struct {
			Song []struct {
				Name string `json:"name"`
				Info string `json:"info"`
				Cover struct {
					Name string `json:"name"`
				} `json:"cover"`
			} `json:"song"`
		} `json:"set"`
	} `json:"sets"`
}

func (a *SetlistFMAdapter) Fetch(ctx context.Context, setlistURL string) (*model.PlaylistPayload, error) {
	apiURL := fmt.Sprintf("%s/1.0/setlist/%s", a.cfg.BaseURL, setlistIDFromURL(setlistURL))
	body, err := a.fetcher.Do(ctx, model.SourceSetlistFM, apiURL)
	if err != nil {
		return nil, err
	}

	var detail setlistFMDetail
	if uerr := a.decode(body, &detail, apiURL); uerr != nil {
		return nil, uerr
	}

	var tracks []model.TrackRecord
	for _, set := range detail.Sets.Set {
		for _, song := range set.Song {
			if song.Name == "" {
				continue
			}
			artist := detail.Artist.Name
			if song.Cover.Name != "" {
				artist = song.Cover.Name // the setlist entry is a cover; attribute to the original artist
			}
			tracks = append(tracks, model.TrackRecord{RawArtist: artist, RawTitle: song.Name})
		}
	}
	if len(tracks) == 0 {
		return nil, model.NewFetchError(model.CodeMalformed, setlistURL, fmt.Errorf("setlist has no songs"))
	}

	var eventDate *time.Time
	if t, perr := time.Parse("02-01-2006", detail.EventDate); perr == nil {
		eventDate = &t
	}

	return &model.PlaylistPayload{
		Source:    model.SourceSetlistFM,
		SourceURL: setlistURL,
		Meta: model.PlaylistMeta{
			ExternalID: detail.ID,
			DJName:     detail.Artist.Name,
			Venue:      detail.Venue.Name,
			EventDate:  eventDate,
		},
		TracksInOrder: tracks,
		RawBlob:       body,
		ScrapedAt:     time.Now().UTC(),
	}, nil
}

// decode unmarshals a setlist.fm JSON response via resty's shared decoder
// registry, surfacing a CodeMalformed FetchError on failure.
func (a *SetlistFMAdapter) decode(body []byte, target any, sourceURL string) error {
	if err := a.rc.JSONUnmarshal(body, target); err != nil {
		return model.NewFetchError(model.CodeMalformed, sourceURL, err)
	}
	return nil
}

// setlistIDFromURL extracts the trailing id segment from a setlist.fm
// permalink, e.g. ".../artist-name-1bc2d3e4.html" -> "1bc2d3e4".
func setlistIDFromURL(setlistURL string) string {
	trimmed := setlistURL
	if idx := lastIndexByte(trimmed, '-'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := lastIndexByte(trimmed, '.'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
