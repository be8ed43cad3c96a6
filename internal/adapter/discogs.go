// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/fetch"
	"github.com/setlistgraph/pipeline/internal/model"
)

// DiscogsAdapter uses Discogs' public JSON search and release endpoints,
// which return structured track listings directly rather than requiring
// HTML scraping. It's kept in this package alongside the HTML adapters
// because, unlike setlistfm/reddit/beatport, it needs no OAuth/bearer
// client and so doesn't warrant the resty client wrapper.
type DiscogsAdapter struct {
	cfg     config.SourceConfig
	fetcher *fetch.Fetcher
}

func NewDiscogsAdapter(cfg config.SourceConfig, fetcher *fetch.Fetcher) *DiscogsAdapter {
	return &DiscogsAdapter{cfg: cfg, fetcher: fetcher}
}

func (a *DiscogsAdapter) Source() model.Source { return model.SourceDiscogs }

type discogsSearchResult struct {
	Results []struct {
		ID           int    `json:"id"`
		Title        string `json:"title"`
		ResourceURL  string `json:"resource_url"`
		Type         string `json:"type"`
	} `json:"results"`
}

func (a *DiscogsAdapter) Search(ctx context.Context, query string, limit int) ([]model.PlaylistCandidate, error) {
	searchURL := fmt.Sprintf("%s/database/search?q=%s&type=release&token=%s&per_page=%d",
		a.cfg.BaseURL, url.QueryEscape(query), a.cfg.APIKey, limit)
	body, err := a.fetcher.Do(ctx, model.SourceDiscogs, searchURL)
	if err != nil {
		return nil, err
	}

	var parsed discogsSearchResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, model.NewFetchError(model.CodeMalformed, searchURL, err)
	}

	candidates := make([]model.PlaylistCandidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Type != "release" {
			continue
		}
		candidates = append(candidates, model.PlaylistCandidate{
			URL:          r.ResourceURL,
			HintMetadata: map[string]string{"title": r.Title},
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

type discogsRelease struct {
	Title     string `json:"title"`
	Released  string `json:"released"`
	Tracklist []struct {
		Position string `json:"position"`
		Title    string `json:"title"`
		Duration string `json:"duration"`
		Artists  []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"tracklist"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

func (a *DiscogsAdapter) Fetch(ctx context.Context, releaseURL string) (*model.PlaylistPayload, error) {
	fetchURL := releaseURL
	if a.cfg.APIKey != "" {
		sep := "?"
		if strings.Contains(releaseURL, "?") {
			sep = "&"
		}
		fetchURL = fmt.Sprintf("%s%stoken=%s", releaseURL, sep, a.cfg.APIKey)
	}

	body, err := a.fetcher.Do(ctx, model.SourceDiscogs, fetchURL)
	if err != nil {
		return nil, err
	}

	var release discogsRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return nil, model.NewFetchError(model.CodeMalformed, releaseURL, err)
	}
	if len(release.Tracklist) == 0 {
		return nil, model.NewFetchError(model.CodeMalformed, releaseURL, fmt.Errorf("release has no tracklist"))
	}

	releaseArtist := ""
	if len(release.Artists) > 0 {
		releaseArtist = release.Artists[0].Name
	}

	tracks := make([]model.TrackRecord, 0, len(release.Tracklist))
	for _, t := range release.Tracklist {
		if t.Title == "" {
			continue // index/heading rows with no real track
		}
		artist := releaseArtist
		if len(t.Artists) > 0 {
			artist = t.Artists[0].Name
		}
		tracks = append(tracks, model.TrackRecord{
			RawArtist:   artist,
			RawTitle:    t.Title,
			RawDuration: parseMinSec(t.Duration),
		})
	}

	return &model.PlaylistPayload{
		Source:        model.SourceDiscogs,
		SourceURL:     releaseURL,
		Meta:          model.PlaylistMeta{EventName: release.Title, DJName: releaseArtist},
		TracksInOrder: tracks,
		RawBlob:       body,
		ScrapedAt:     time.Now().UTC(),
	}, nil
}

// parseMinSec parses a Discogs-style "mm:ss" duration string, returning 0
// for anything that doesn't match.
func parseMinSec(s string) time.Duration {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0
	}
	d, err := time.ParseDuration(parts[0] + "m" + parts[1] + "s")
	if err != nil {
		return 0
	}
	return d
}
