// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package dispatcher

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/creasty/defaults"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/setlistgraph/pipeline/internal/logging"
	"github.com/setlistgraph/pipeline/internal/middleware"
	"github.com/setlistgraph/pipeline/internal/model"
	"github.com/setlistgraph/pipeline/internal/validation"
)

// chiMiddleware adapts an http.HandlerFunc middleware to chi's
// func(http.Handler) http.Handler, so the existing middleware package
// works unchanged with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Server is the dispatcher's HTTP control surface: POST /scrape,
// GET /health, GET /stats, GET /jobs, GET /metrics.
type Server struct {
	dispatcher *Dispatcher
	perf       *middleware.PerformanceMonitor
}

// NewServer builds a Server around an already-wired Dispatcher.
func NewServer(d *Dispatcher) *Server {
	return &Server{dispatcher: d, perf: middleware.NewPerformanceMonitor(1000)}
}

// Handler returns the fully routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.Compression))
	r.Use(s.perf.Middleware)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Post("/scrape", s.handleScrape)
		r.Get("/stats", s.handleStats)
		r.Get("/jobs", s.handleJobs)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req model.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if err := defaults.Set(&req); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("applying request defaults failed")
	}
	if err := defaults.Set(&req.Options); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("applying options defaults failed")
	}

	if verr := validation.ValidateStruct(req); verr != nil {
		writeJSON(w, http.StatusBadRequest, verr.ToAPIError())
		return
	}

	report, err := s.dispatcher.Submit(r.Context(), req)
	if errors.Is(err, ErrQueueFull) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "dispatcher at capacity, retry later"})
		return
	}
	if errors.Is(err, model.ErrUnknownSource) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown source"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dispatcher.Stats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Jobs())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
