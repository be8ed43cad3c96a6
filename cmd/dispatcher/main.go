// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

// Package main is the entry point for the dispatcher process.
//
// The process initializes components in the following order:
//
//  1. Configuration: Koanf v2, layered over defaults/config file/env vars.
//  2. Logging: zerolog, configured from Logging.
//  3. Store: an embedded DuckDB database backing all four medallion layers.
//  4. Fetch substrate and source adapters (mixesdb, 1001tracklists,
//     beatport, setlistfm, reddit, discogs), one per enabled source.
//  5. Medallion stages: bronze.Writer, silver.Canonicalizer, gold.Aggregator,
//     operational.Materializer.
//  6. Dispatcher: wires the stages into a bounded-concurrency Pipeline and
//     the HTTP control surface (POST /scrape, GET /health, GET /stats,
//     GET /jobs, GET /metrics).
//
// Signal Handling
//
// SIGINT and SIGTERM cancel the root context, which the supervisor tree
// translates into an ordered shutdown: the HTTP server stops accepting new
// connections and drains in-flight requests (bounded by the API service's
// shutdown timeout) before the store is closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"

	"github.com/setlistgraph/pipeline/internal/adapter"
	"github.com/setlistgraph/pipeline/internal/bronze"
	"github.com/setlistgraph/pipeline/internal/config"
	"github.com/setlistgraph/pipeline/internal/dispatcher"
	"github.com/setlistgraph/pipeline/internal/fetch"
	"github.com/setlistgraph/pipeline/internal/gold"
	"github.com/setlistgraph/pipeline/internal/logging"
	"github.com/setlistgraph/pipeline/internal/operational"
	"github.com/setlistgraph/pipeline/internal/silver"
	"github.com/setlistgraph/pipeline/internal/store"
	"github.com/setlistgraph/pipeline/internal/supervisor"
	"github.com/setlistgraph/pipeline/internal/supervisor/services"
)

var (
	app        = kingpin.New("setlistgraph-dispatcher", "DJ setlist ingestion and transition graph dispatcher")
	configPath = app.Flag("config", "path to config.yaml (overrides CONFIG_PATH)").Short('c').String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	if *configPath != "" {
		_ = os.Setenv(config.ConfigPathEnvVar, *configPath)
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("db_path", cfg.Database.Path).Msg("starting dispatcher")

	st, err := store.Open(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing store")
		}
	}()

	fetcher := fetch.New(cfg.Fetch, cfg.Proxies, cfg.Headers, cfg.Captcha, nil)
	registry := buildRegistry(cfg, fetcher)

	bronzeWriter := bronze.NewWriter(st, 10000, time.Hour)

	aliasTable, err := loadAliasTable(cfg.Silver.AliasTablePath)
	if err != nil {
		logging.Warn().Err(err).Str("path", cfg.Silver.AliasTablePath).Msg("failed to load alias table, continuing without aliases")
	}
	canonicalizer := silver.New(st, cfg.Silver, aliasTable, nil)

	aggregator := gold.New(st, cfg.Gold)
	materializer := operational.New(st, cfg.Operational)

	pipeline := dispatcher.NewPipeline(registry, st, bronzeWriter, canonicalizer, aggregator, materializer, cfg.Dispatcher)
	disp := dispatcher.New(pipeline, st, cfg.Dispatcher)
	srv := dispatcher.NewServer(disp)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.WriteTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.WriteTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", httpServer.Addr).Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
		}
	}
	logging.Info().Msg("dispatcher stopped gracefully")
}

// buildRegistry constructs one adapter per enabled source in
// cfg.Sources, sharing a single resilient Fetcher across all of them.
func buildRegistry(cfg *config.Config, fetcher *fetch.Fetcher) *adapter.Registry {
	var adapters []adapter.Adapter
	if cfg.Sources.MixesDB.Enabled {
		adapters = append(adapters, adapter.NewMixesDBAdapter(cfg.Sources.MixesDB, fetcher))
	}
	if cfg.Sources.Tracklists1001.Enabled {
		adapters = append(adapters, adapter.NewTracklists1001Adapter(cfg.Sources.Tracklists1001, fetcher))
	}
	if cfg.Sources.Beatport.Enabled {
		adapters = append(adapters, adapter.NewBeatportAdapter(cfg.Sources.Beatport, fetcher))
	}
	if cfg.Sources.SetlistFM.Enabled {
		adapters = append(adapters, adapter.NewSetlistFMAdapter(cfg.Sources.SetlistFM, fetcher))
	}
	if cfg.Sources.Reddit.Enabled {
		adapters = append(adapters, adapter.NewRedditAdapter(cfg.Sources.Reddit, fetcher))
	}
	if cfg.Sources.Discogs.Enabled {
		adapters = append(adapters, adapter.NewDiscogsAdapter(cfg.Sources.Discogs, fetcher))
	}
	return adapter.NewRegistry(adapters...)
}

// loadAliasTable reads a YAML map of known aliases to their canonical
// artist name from path. An empty path disables alias resolution.
func loadAliasTable(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alias table: %w", err)
	}
	var table map[string]string
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parsing alias table: %w", err)
	}
	return table, nil
}
