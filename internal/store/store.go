// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package store is the track & interaction store gateway: the only place in
// the service that issues SQL. Every operation is parameterized, surfaces a
// typed store error, and propagates the caller's context deadline. Callers
// never retry at this layer.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/errs"
	"github.com/cadenzalabs/cadenza/internal/logging"
)

// Store is the relational gateway backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects the pool and registers the vector type codec on every
// connection. The pool is bounded by cfg.MaxConns.
func New(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "parse store url", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "connect store", err)
	}

	s := &Store{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logging.Info().Int32("max_conns", cfg.MaxConns).Msg("store connected")
	return s, nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// wrapErr classifies a query error: deadline and cancellation map to the
// timeout kind, everything else to the store kind.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindTimeout, op, err)
	}
	return errs.Wrap(errs.KindStore, op, err)
}

// windowSeconds converts a duration to whole seconds for make_interval,
// rounding up so sub-second windows still cover something.
func windowSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
