// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Command server runs the recommendation service: the HTTP/websocket
// surface, the serving pipeline, and the background workers (interest-graph
// refresher, push engine, popularity refresher) under one supervisor.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/cadenzalabs/cadenza/internal/api"
	"github.com/cadenzalabs/cadenza/internal/cache"
	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/events"
	"github.com/cadenzalabs/cadenza/internal/interestgraph"
	"github.com/cadenzalabs/cadenza/internal/logging"
	"github.com/cadenzalabs/cadenza/internal/pipeline"
	"github.com/cadenzalabs/cadenza/internal/push"
	"github.com/cadenzalabs/cadenza/internal/store"
	"github.com/cadenzalabs/cadenza/internal/taste"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logging.Info().Str("addr", cfg.Server.Addr()).Msg("starting cadenza")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage and cache.
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Store.Migrate {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
	}

	kv, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()

	// Event bus and engines.
	bus := events.NewBus(logger)
	defer func() { _ = bus.Close() }()

	graphs := interestgraph.NewEngine(st, cfg.Recommend, logger)
	tasteEngine := taste.NewEngine(st, logger)

	var graphProvider pipeline.GraphProvider
	if cfg.Recommend.InterestGraphEnabled {
		graphProvider = graphs
	}
	pipe := pipeline.New(st, kv, graphProvider, tasteEngine, cfg.Recommend, logger)

	registry := push.NewRegistry()
	pushEngine := push.NewEngine(registry, pipe, bus, cfg.Push, cfg.Recommend.DefaultLimit, logger)
	refresher := interestgraph.NewRefresher(graphs, bus, cfg.Recommend.GraphRefreshTimeout, logger)
	popularity := store.NewPopularityRefresher(st, cfg.Store.PopularityRefreshInterval, logger)

	// HTTP surface.
	handler := api.NewHandler(st, pipe, graphs, bus, pushEngine, cfg)
	router := api.NewRouter(handler, cfg)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision tree: background workers and the HTTP server restart
	// independently; the registry and engines are plain values they share.
	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()
	root := suture.New("cadenza", suture.Spec{
		EventHook:        hook,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          cfg.Server.ShutdownTimeout,
	})

	root.Add(refresher)
	root.Add(pushEngine)
	root.Add(popularity)
	root.Add(&httpService{server: server, shutdownTimeout: cfg.Server.ShutdownTimeout})

	err = root.Serve(ctx)

	registry.CloseAll()
	logging.Info().Msg("cadenza stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// httpService adapts http.Server to the supervisor's Serve contract.
type httpService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// Serve listens until ctx is done, then drains connections within the
// shutdown timeout.
func (s *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("http shutdown incomplete")
			_ = s.server.Close()
		}
		<-errCh
		return ctx.Err()
	}
}
