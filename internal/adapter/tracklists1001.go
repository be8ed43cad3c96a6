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
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/fetch"
	"github.com/setlistgraph/pipeline/internal/model"
)

// Tracklists1001Adapter scrapes 1001tracklists.com set pages. Each tracklist
// row carries a track number, the artist/title, and often a "w/ <b>[mm:ss]"
// timestamp and a cue-point-derived BPM; this adapter extracts what it can
// and leaves the rest for the enrichment oracle.
type Tracklists1001Adapter struct {
	cfg     config.SourceConfig
	fetcher *fetch.Fetcher
}

func NewTracklists1001Adapter(cfg config.SourceConfig, fetcher *fetch.Fetcher) *Tracklists1001Adapter {
	return &Tracklists1001Adapter{cfg: cfg, fetcher: fetcher}
}

func (a *Tracklists1001Adapter) Source() model.Source { return model.SourceTracklists1001 }

func (a *Tracklists1001Adapter) Search(ctx context.Context, query string, limit int) ([]model.PlaylistCandidate, error) {
	searchURL := fmt.Sprintf("%s/search.php?q=%s", a.cfg.BaseURL, url.QueryEscape(query))
	body, err := a.fetcher.Do(ctx, model.SourceTracklists1001, searchURL)
	if err != nil {
		return nil, err
	}

	var candidates []model.PlaylistCandidate
	walkLinks(body, func(href, text string) {
		if len(candidates) >= limit {
			return
		}
		if !strings.Contains(href, "/tracklist/") {
			return
		}
		candidates = append(candidates, model.PlaylistCandidate{
			URL:          resolveURL(a.cfg.BaseURL, href),
			HintMetadata: map[string]string{"title": text},
		})
	})
	return candidates, nil
}

// trackLine1001 matches "12. Artist - Title [w/ Other Artist]" rows, with
// the bracketed collaborator clause optional.
var trackLine1001 = regexp.MustCompile(`^\s*(\d+)[\.\)]\s*(.+?)\s*[-–]\s*(.+?)\s*$`)
var bpmAnnotation = regexp.MustCompile(`(\d{2,3}(?:\.\d)?)\s*BPM`)

func (a *Tracklists1001Adapter) Fetch(ctx context.Context, pageURL string) (*model.PlaylistPayload, error) {
	body, err := a.fetcher.Do(ctx, model.SourceTracklists1001, pageURL)
	if err != nil {
		return nil, err
	}

	lines := extractTextLines(body)
	var tracks []model.TrackRecord
	for _, line := range lines {
		m := trackLine1001.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rec := model.TrackRecord{RawArtist: strings.TrimSpace(m[2]), RawTitle: strings.TrimSpace(m[3])}
		if bm := bpmAnnotation.FindStringSubmatch(line); bm != nil {
			if bpm, perr := strconv.ParseFloat(bm[1], 64); perr == nil {
				rec.BPM = &bpm
			}
		}
		tracks = append(tracks, rec)
	}

	if len(tracks) == 0 {
		return nil, model.NewFetchError(model.CodeMalformed, pageURL, fmt.Errorf("no tracklist rows found"))
	}

	return &model.PlaylistPayload{
		Source:        model.SourceTracklists1001,
		SourceURL:     pageURL,
		Meta:          model.PlaylistMeta{EventName: extractTitle(body), DJName: extractDJName(body)},
		TracksInOrder: tracks,
		RawBlob:       body,
		ScrapedAt:     time.Now().UTC(),
	}, nil
}

// extractDJName pulls the first <h1> text, which 1001tracklists templates
// as "<DJ name> @ <event>".
func extractDJName(body []byte) string {
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))
	inH1 := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			if tokenizer.Token().Data == "h1" {
				inH1 = true
			}
		case html.TextToken:
			if inH1 {
				text := strings.TrimSpace(string(tokenizer.Text()))
				if idx := strings.Index(text, "@"); idx > 0 {
					return strings.TrimSpace(text[:idx])
				}
				return text
			}
		}
	}
}
