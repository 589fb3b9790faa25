// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

// Command server runs the Reelsage recommendation service: the HTTP API,
// the learning-signal consumer and the weight-config watcher, all under one
// supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelsage/reelsage/internal/api"
	"github.com/reelsage/reelsage/internal/behavior"
	"github.com/reelsage/reelsage/internal/config"
	"github.com/reelsage/reelsage/internal/history"
	"github.com/reelsage/reelsage/internal/logging"
	"github.com/reelsage/reelsage/internal/movies"
	"github.com/reelsage/reelsage/internal/recommend"
	"github.com/reelsage/reelsage/internal/signals"
	"github.com/reelsage/reelsage/internal/supervisor"
	"github.com/reelsage/reelsage/internal/supervisor/services"
	"github.com/reelsage/reelsage/internal/weights"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reelsage: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})
	logger := logging.Logger()
	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Str("weights_path", cfg.Weights.Path).
		Str("catalog_path", cfg.Catalog.Path).
		Msg("starting reelsage")

	// Interaction history store.
	store, err := history.NewBadgerStore(history.BadgerOptions{
		Path:     cfg.History.Path,
		InMemory: cfg.History.InMemory,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("closing history store")
		}
	}()

	// Tunable scoring weights.
	weightStore := weights.NewStore(weights.StoreOptions{
		Path: cfg.Weights.Path,
		TTL:  cfg.Weights.CacheTTL,
	}, logger)

	// Movie catalog behind a rate limiter and circuit breaker. A missing
	// catalog file is survivable; the engine degrades to empty results.
	catalogMovies, err := movies.LoadFile(cfg.Catalog.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("catalog unavailable at startup, serving empty catalog")
	}
	catalog := movies.NewClient(movies.NewCatalog(catalogMovies), movies.ClientOptions{
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		Burst:             cfg.Catalog.Burst,
		BreakerTimeout:    cfg.Catalog.BreakerTimeout,
	}, logger)

	// Recommendation pipeline.
	analyzer := behavior.NewAnalyzer(store, behavior.Options{
		ProfileCacheTTL:  cfg.Engine.ProfileCacheTTL,
		ProfileCacheSize: cfg.Engine.ProfileCacheSize,
	}, logger)
	filter := recommend.NewFilter(store, nil, logger)

	bus := signals.NewBus(logger)
	defer bus.Close()

	engine := recommend.NewEngine(catalog, analyzer, weightStore, filter, bus, nil, logger)

	// HTTP surface.
	handler := api.NewHandler(engine, weightStore, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision tree: data layer first so the consumer is draining before
	// the API starts accepting signals.
	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), treeConfig)

	tree.AddDataService(signals.NewConsumer(bus, store, logger))
	if cfg.Weights.Watch {
		tree.AddDataService(services.NewWatchService("weights-watcher", weightStore, logger))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("reelsage stopped")
	return nil
}
