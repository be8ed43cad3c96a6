// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package adapter

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/fetch"
	"github.com/setlistgraph/pipeline/internal/model"
)

// RedditAdapter reads r/DJSetlists (and similarly tagged) threads via
// Reddit's public .json listing endpoints. Most tracklist threads are
// submitted as a top-level text post with one "Artist - Title" line per
// comment or per paragraph, rather than a structured format, so this
// adapter parses the post body and, if thin, also walks top-level comments.
type RedditAdapter struct {
	cfg     config.SourceConfig
	fetcher *fetch.Fetcher
	rc      *resty.Client
}

func NewRedditAdapter(cfg config.SourceConfig, fetcher *fetch.Fetcher) *RedditAdapter {
	return &RedditAdapter{cfg: cfg, fetcher: fetcher, rc: resty.New()}
}

func (a *RedditAdapter) Source() model.Source { return model.SourceReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID        string  `json:"id"`
				Title     string  `json:"title"`
				Selftext  string  `json:"selftext"`
				Permalink string  `json:"permalink"`
				Author    string  `json:"author"`
				Created   float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *RedditAdapter) Search(ctx context.Context, query string, limit int) ([]model.PlaylistCandidate, error) {
	searchURL := fmt.Sprintf("%s/search.json?q=%s&restrict_sr=on&limit=%d&sort=relevance",
		a.cfg.BaseURL, url.QueryEscape(query), limit)
	body, err := a.fetcher.Do(ctx, model.SourceReddit, searchURL)
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if uerr := a.rc.JSONUnmarshal(body, &listing); uerr != nil {
		return nil, model.NewFetchError(model.CodeMalformed, searchURL, uerr)
	}

	candidates := make([]model.PlaylistCandidate, 0, len(listing.Data.Children))
	for i, c := range listing.Data.Children {
		if i >= limit {
			break
		}
		candidates = append(candidates, model.PlaylistCandidate{
			URL:          a.cfg.BaseURL + c.Data.Permalink,
			HintMetadata: map[string]string{"title": c.Data.Title, "author": c.Data.Author},
		})
	}
	return candidates, nil
}

type redditThread []struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Title    string `json:"title"`
				Selftext string `json:"selftext"`
				Body     string `json:"body"`
				Replies  any    `json:"replies"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

var redditTrackLine = regexp.MustCompile(`(?m)^\s*\d*[\.\):]?\s*(.+?)\s*[-–]\s*(.+?)\s*$`)

func (a *RedditAdapter) Fetch(ctx context.Context, threadURL string) (*model.PlaylistPayload, error) {
	apiURL := strings.TrimSuffix(threadURL, "/") + ".json"
	body, err := a.fetcher.Do(ctx, model.SourceReddit, apiURL)
	if err != nil {
		return nil, err
	}

	var thread redditThread
	if uerr := a.rc.JSONUnmarshal(body, &thread); uerr != nil {
		return nil, model.NewFetchError(model.CodeMalformed, threadURL, uerr)
	}
	if len(thread) == 0 || len(thread[0].Data.Children) == 0 {
		return nil, model.NewFetchError(model.CodeMalformed, threadURL, fmt.Errorf("thread listing is empty"))
	}

	post := thread[0].Data.Children[0].Data
	tracks := parseTrackLines(post.Selftext)

	// A thin self-text post often means the tracklist lives in the top
	// comment instead; fall back to scanning first-level comment bodies.
	if len(tracks) == 0 && len(thread) > 1 {
		for _, c := range thread[1].Data.Children {
			if c.Kind != "t1" {
				continue
			}
			tracks = append(tracks, parseTrackLines(c.Data.Body)...)
		}
	}

	if len(tracks) == 0 {
		return nil, model.NewFetchError(model.CodeMalformed, threadURL, fmt.Errorf("no parseable track lines found"))
	}

	return &model.PlaylistPayload{
		Source:        model.SourceReddit,
		SourceURL:     threadURL,
		Meta:          model.PlaylistMeta{EventName: post.Title},
		TracksInOrder: tracks,
		RawBlob:       body,
		ScrapedAt:     time.Now().UTC(),
	}, nil
}

func parseTrackLines(text string) []model.TrackRecord {
	var tracks []model.TrackRecord
	for _, line := range strings.Split(text, "\n") {
		m := redditTrackLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		artist, title := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if artist == "" || title == "" {
			continue
		}
		tracks = append(tracks, model.TrackRecord{RawArtist: artist, RawTitle: title})
	}
	return tracks
}
