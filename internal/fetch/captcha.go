// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/metrics"
)

// Challenge is an opaque CAPTCHA challenge extracted from a blocked
// response body by a source adapter.
type Challenge struct {
	Source  string
	Payload []byte
}

// Solution is the oracle's answer to a Challenge.
type Solution struct {
	Answer     string
	Confidence float64
}

// CaptchaOracle solves a CAPTCHA challenge. Implementations may call out to
// a human-in-the-loop service, a third-party solving API, or a local model;
// the fetch substrate only cares about the returned confidence.
type CaptchaOracle interface {
	Solve(ctx context.Context, challenge Challenge) (Solution, error)
}

// httpCaptchaOracle posts the challenge to a configured HTTP endpoint and
// expects a JSON {answer, confidence} response.
type httpCaptchaOracle struct {
	cfg    config.CaptchaConfig
	client *http.Client
}

func newHTTPCaptchaOracle(cfg config.CaptchaConfig) *httpCaptchaOracle {
	return &httpCaptchaOracle{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (o *httpCaptchaOracle) Solve(ctx context.Context, challenge Challenge) (Solution, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.OracleURL, bytes.NewReader(challenge.Payload))
	if err != nil {
		return Solution{}, fmt.Errorf("failed to build captcha oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := o.client.Do(req)
	if err != nil {
		return Solution{}, fmt.Errorf("captcha oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	var sol Solution
	if err := json.NewDecoder(resp.Body).Decode(&sol); err != nil {
		return Solution{}, fmt.Errorf("failed to decode captcha oracle response: %w", err)
	}
	return sol, nil
}

// resolveChallenge solves challenge against the configured oracle and
// reports whether the solution clears the confidence threshold tau. A
// disabled or failing oracle is treated as an automatic miss.
func resolveChallenge(ctx context.Context, oracle CaptchaOracle, cfg config.CaptchaConfig, source string, challenge Challenge) (Solution, bool) {
	if !cfg.Enabled || oracle == nil {
		return Solution{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	sol, err := oracle.Solve(ctx, challenge)
	if err != nil {
		metrics.RecordCaptchaDetection(source)
		return Solution{}, false
	}

	if sol.Confidence < cfg.ConfidenceThreshold {
		metrics.RecordCaptchaDetection(source)
		return sol, false
	}
	return sol, true
}
