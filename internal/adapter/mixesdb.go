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

	"golang.org/x/net/html"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/fetch"
	"github.com/setlistgraph/pipeline/internal/model"
)

// MixesDBAdapter scrapes MixesDB's wiki-style tracklist pages. Tracklist
// entries there are lines like "01. Artist - Title" inside a <pre> or list
// block; this adapter is deliberately tolerant of the exact markup since
// MixesDB's wiki template varies by decade of content.
type MixesDBAdapter struct {
	cfg     config.SourceConfig
	fetcher *fetch.Fetcher
}

// NewMixesDBAdapter builds the MixesDB adapter.
func NewMixesDBAdapter(cfg config.SourceConfig, fetcher *fetch.Fetcher) *MixesDBAdapter {
	return &MixesDBAdapter{cfg: cfg, fetcher: fetcher}
}

func (a *MixesDBAdapter) Source() model.Source { return model.SourceMixesDB }

func (a *MixesDBAdapter) Search(ctx context.Context, query string, limit int) ([]model.PlaylistCandidate, error) {
	searchURL := fmt.Sprintf("%s/w/index.php?search=%s&limit=%d", a.cfg.BaseURL, url.QueryEscape(query), limit)
	body, err := a.fetcher.Do(ctx, model.SourceMixesDB, searchURL)
	if err != nil {
		return nil, err
	}

	var candidates []model.PlaylistCandidate
	walkLinks(body, func(href, text string) {
		if len(candidates) >= limit {
			return
		}
		if !strings.Contains(href, "/w/") {
			return
		}
		candidates = append(candidates, model.PlaylistCandidate{
			URL:          resolveURL(a.cfg.BaseURL, href),
			HintMetadata: map[string]string{"title": text},
		})
	})
	return candidates, nil
}

var mixesDBTrackLine = regexp.MustCompile(`^\s*\d+[\.\)]\s*(.+?)\s*[-–]\s*(.+?)\s*$`)

func (a *MixesDBAdapter) Fetch(ctx context.Context, pageURL string) (*model.PlaylistPayload, error) {
	body, err := a.fetcher.Do(ctx, model.SourceMixesDB, pageURL)
	if err != nil {
		return nil, err
	}

	lines := extractTextLines(body)
	var tracks []model.TrackRecord
	for _, line := range lines {
		m := mixesDBTrackLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		tracks = append(tracks, model.TrackRecord{RawArtist: strings.TrimSpace(m[1]), RawTitle: strings.TrimSpace(m[2])})
	}

	if len(tracks) == 0 {
		return nil, model.NewFetchError(model.CodeMalformed, pageURL, fmt.Errorf("no tracklist lines found"))
	}

	return &model.PlaylistPayload{
		Source:        model.SourceMixesDB,
		SourceURL:     pageURL,
		Meta:          model.PlaylistMeta{EventName: extractTitle(body)},
		TracksInOrder: tracks,
		RawBlob:       body,
		ScrapedAt:     time.Now().UTC(),
	}, nil
}

// resolveURL joins a possibly-relative href against base.
func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// walkLinks invokes fn for every <a href="..."> in body, with fn's text
// argument set to the anchor's text content.
func walkLinks(body []byte, fn func(href, text string)) {
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))
	var href string
	var capturing bool
	var text strings.Builder

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := tokenizer.Token()
			if tok.Data == "a" {
				href = ""
				for _, attr := range tok.Attr {
					if attr.Key == "href" {
						href = attr.Val
					}
				}
				if href != "" {
					capturing = true
					text.Reset()
				}
			}
		case html.TextToken:
			if capturing {
				text.WriteString(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			tok := tokenizer.Token()
			if tok.Data == "a" && capturing {
				fn(href, strings.TrimSpace(text.String()))
				capturing = false
			}
		}
	}
}

// extractTextLines returns every non-empty text node in body as a trimmed line.
func extractTextLines(body []byte) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))
	var lines []string
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return lines
		}
		if tt == html.TextToken {
			for _, raw := range strings.Split(string(tokenizer.Text()), "\n") {
				line := strings.TrimSpace(raw)
				if line != "" {
					lines = append(lines, line)
				}
			}
		}
	}
}

// extractTitle returns the document's <title> text, or "" if absent.
func extractTitle(body []byte) string {
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			if tokenizer.Token().Data == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		}
	}
}
