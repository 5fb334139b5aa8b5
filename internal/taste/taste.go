// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package taste maintains the per-user 256-dimensional profile embedding.
// The vector is derived, never user-supplied; the weighted mean over recent
// interactions is computed inside the store so candidate vectors never cross
// the wire, and the database transaction provides ordering for concurrent
// recomputes.
package taste

import (
	"context"

	"github.com/rs/zerolog"
)

// Store is the gateway surface the engine needs.
type Store interface {
	UpsertProfileEmbedding(ctx context.Context, userID string) error
}

// Engine recomputes profile embeddings.
type Engine struct {
	store  Store
	logger zerolog.Logger
}

// NewEngine creates a taste engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(store Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With().Str("component", "taste").Logger(),
	}
}

// Recompute refreshes the user's profile embedding. Idempotent and safe to
// call concurrently; a user without qualifying interactions keeps their
// previous embedding (or none). After Recompute returns, a profile reload
// reflects the new vector.
func (e *Engine) Recompute(ctx context.Context, userID string) error {
	if err := e.store.UpsertProfileEmbedding(ctx, userID); err != nil {
		return err
	}
	e.logger.Debug().Str("user_id", userID).Msg("profile embedding recomputed")
	return nil
}
