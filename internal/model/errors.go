// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package model

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a fetch or pipeline failure by the effect it should
// have on the caller: retry, report, reject, or abort.
type ErrorCode string

const (
	// Recoverable: retried by the fetch substrate, invisible upstream
	// unless the retry budget is exhausted.
	CodeTransient   ErrorCode = "Transient"
	CodeBlocked     ErrorCode = "Blocked"
	CodeRateLimited ErrorCode = "RateLimited"

	// Reportable: surfaced to the caller in ScrapeReport.errors, does not
	// fail the whole request.
	CodeNotFound         ErrorCode = "NotFound"
	CodeMalformed        ErrorCode = "Malformed"
	CodeUnsolvable       ErrorCode = "Unsolvable"
	CodeDeadlineExceeded ErrorCode = "DeadlineExceeded"
	CodeCancelled        ErrorCode = "Cancelled"

	// Structural: the whole write is rejected and rolled back.
	CodeInvalidPayload ErrorCode = "InvalidPayload"
)

// IsRetryable reports whether the fetch substrate should retry a failure
// carrying this code, rather than surface or reject it.
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case CodeTransient, CodeBlocked, CodeRateLimited:
		return true
	default:
		return false
	}
}

// FetchError is a classified failure from a source adapter or the fetch
// substrate. URL identifies the offending request so the dispatcher can
// attach it to the per-URL ScrapeReport.errors list.
type FetchError struct {
	Code ErrorCode
	URL  string
	Err  error

	// Challenge carries the raw CAPTCHA challenge body when Code is
	// CodeBlocked and the response looked like a CAPTCHA page, so the
	// fetch substrate can offer it to the configured CaptchaOracle.
	Challenge []byte
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.URL)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError constructs a FetchError.
func NewFetchError(code ErrorCode, url string, cause error) *FetchError {
	return &FetchError{Code: code, URL: url, Err: cause}
}

// ErrorCodeOf extracts the ErrorCode carried by err, if any, walking the
// unwrap chain. Returns the empty code and false when err is not a
// classified FetchError; the Fetcher does not retry such an error.
func ErrorCodeOf(err error) (ErrorCode, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	return "", false
}

// ErrInvalidPayload is returned by the Bronze Writer when a playlist's
// positions are not a gapless 1..N sequence, or a track is missing both
// artist and title.
var ErrInvalidPayload = errors.New("invalid payload: position integrity or required fields violated")

// ErrUnknownSource is returned by the dispatcher when a ScrapeRequest names
// a source outside model.ValidSources.
var ErrUnknownSource = errors.New("unknown source")
