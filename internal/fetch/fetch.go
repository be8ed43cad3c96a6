// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package fetch implements the resilient fetch substrate shared by every
// source adapter: per-host adaptive rate limiting, retry with jittered
// backoff, proxy selection, header rotation, a pluggable CAPTCHA oracle,
// and a per-host circuit breaker. Source adapters call Fetcher.Do and never
// manage rate limiting, retries, or proxies themselves.
package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/logging"
	"github.com/setlistgraph/pipeline/internal/metrics"
	"github.com/setlistgraph/pipeline/internal/model"
)

// Fetcher executes HTTP fetches through the full resilience stack.
type Fetcher struct {
	cfg    config.FetchConfig
	client *http.Client

	limiters *limiterRegistry
	breakers *breakerRegistry
	proxies  *proxyPool
	headers  *headerRotator

	captchaCfg config.CaptchaConfig
	oracle     CaptchaOracle
}

// New builds a Fetcher. oracle may be nil when captchaCfg.Enabled is false.
func New(cfg config.FetchConfig, proxyCfg config.ProxyConfig, headerCfg config.HeaderConfig, captchaCfg config.CaptchaConfig, oracle CaptchaOracle) *Fetcher {
	return &Fetcher{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		limiters:   newLimiterRegistry(cfg),
		breakers:   newBreakerRegistry(cfg),
		proxies:    newProxyPool(proxyCfg),
		headers:    newHeaderRotator(headerCfg),
		captchaCfg: captchaCfg,
		oracle:     oracle,
	}
}

// Do fetches rawURL, honoring the per-host rate limiter and circuit
// breaker, retrying CodeTransient/CodeBlocked/CodeRateLimited failures up
// to cfg.MaxRetries times with jittered backoff, and failing the whole
// fetch with CodeDeadlineExceeded if cfg.HardDeadline elapses first.
// source labels metrics and identifies the adapter for CAPTCHA resolution.
func (f *Fetcher) Do(ctx context.Context, source model.Source, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, model.NewFetchError(model.CodeMalformed, rawURL, err)
	}
	host := u.Host

	ctx, cancel := context.WithTimeout(ctx, f.cfg.HardDeadline)
	defer cancel()

	limiter := f.limiters.forHost(host)

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := limiter.lim.Wait(ctx); err != nil {
			return nil, model.NewFetchError(model.CodeDeadlineExceeded, rawURL, err)
		}

		start := time.Now()
		body, err := f.attempt(ctx, source, host, rawURL)
		duration := time.Since(start)

		if err == nil {
			metrics.RecordFetchAttempt(string(source), "success", duration)
			limiter.widen()
			return body, nil
		}

		code, classified := model.ErrorCodeOf(err)
		metrics.RecordFetchAttempt(string(source), string(code), duration)
		lastErr = err

		if ctx.Err() != nil {
			return nil, model.NewFetchError(model.CodeDeadlineExceeded, rawURL, ctx.Err())
		}
		if !classified || !code.IsRetryable() {
			return nil, err
		}

		if code == model.CodeBlocked || code == model.CodeRateLimited {
			limiter.narrow()
		}
		if code == model.CodeBlocked {
			f.headers.Rotate(host)

			var fe *model.FetchError
			if errors.As(err, &fe) && len(fe.Challenge) > 0 {
				if _, solved := resolveChallenge(ctx, f.oracle, f.captchaCfg, string(source), Challenge{Source: string(source), Payload: fe.Challenge}); solved {
					continue // oracle cleared the challenge, retry immediately without extra backoff
				}
			}
		}

		if attempt == f.cfg.MaxRetries {
			break
		}

		metrics.RecordFetchRetry(string(source))
		logging.Warn().Str("source", string(source)).Str("url", rawURL).Str("code", string(code)).Int("attempt", attempt).Msg("fetch retrying")

		select {
		case <-time.After(backoffDelay(f.cfg, attempt)):
		case <-ctx.Done():
			return nil, model.NewFetchError(model.CodeDeadlineExceeded, rawURL, ctx.Err())
		}
	}

	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, source model.Source, host, rawURL string) ([]byte, error) {
	return f.breakers.execute(host, rawURL, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, model.NewFetchError(model.CodeMalformed, rawURL, err)
		}

		hs := f.headers.ForHost(host)
		if hs.UserAgent != "" {
			req.Header.Set("User-Agent", hs.UserAgent)
		}
		if hs.AcceptLanguage != "" {
			req.Header.Set("Accept-Language", hs.AcceptLanguage)
		}

		if proxyAddr, perr := f.proxies.Select(); perr == nil && proxyAddr != "" {
			if proxyURL, uerr := url.Parse(proxyAddr); uerr == nil {
				client := *f.client
				transport := &http.Transport{Proxy: http.ProxyURL(proxyURL)}
				client.Transport = transport
				resp, err := client.Do(req)
				if err != nil {
					f.proxies.RecordFailure(proxyAddr)
					return nil, model.NewFetchError(model.CodeTransient, rawURL, err)
				}
				defer resp.Body.Close()
				body, err := classifyResponse(resp, rawURL)
				if err != nil {
					f.proxies.RecordFailure(proxyAddr)
					return nil, err
				}
				f.proxies.RecordSuccess(proxyAddr)
				return body, nil
			}
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, model.NewFetchError(model.CodeTransient, rawURL, err)
		}
		defer resp.Body.Close()
		return classifyResponse(resp, rawURL)
	})
}

// classifyResponse maps an HTTP response's status code to the error
// taxonomy, or returns the body on 2xx success.
func classifyResponse(resp *http.Response, rawURL string) ([]byte, error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, model.NewFetchError(model.CodeTransient, rawURL, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, model.NewFetchError(model.CodeNotFound, rawURL, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, model.NewFetchError(model.CodeRateLimited, rawURL, nil)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		challenge, _ := io.ReadAll(resp.Body)
		return nil, &model.FetchError{Code: model.CodeBlocked, URL: rawURL, Challenge: challenge}
	case resp.StatusCode >= 500:
		return nil, model.NewFetchError(model.CodeTransient, rawURL, nil)
	default:
		return nil, model.NewFetchError(model.CodeMalformed, rawURL, nil)
	}
}
