// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package store

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/cadenzalabs/cadenza/internal/models"
)

// GetInterestGraph returns the user's interest-graph document, or nil when
// none has been computed yet.
func (s *Store) GetInterestGraph(ctx context.Context, userID string) (*models.InterestGraph, error) {
	var (
		raw     []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT graph, version
		FROM user_interest_graph
		WHERE external_user_id = $1`,
		userID).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get interest graph", err)
	}

	graph := &models.InterestGraph{}
	if err := json.Unmarshal(raw, graph); err != nil {
		return nil, wrapErr("decode interest graph", err)
	}
	graph.Version = version
	return graph, nil
}

// UpsertInterestGraph replaces the user's document and increments the
// monotonic version counter atomically. Returns the new version.
func (s *Store) UpsertInterestGraph(ctx context.Context, userID string, graph *models.InterestGraph) (int64, error) {
	raw, err := json.Marshal(graph)
	if err != nil {
		return 0, wrapErr("encode interest graph", err)
	}

	var version int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO user_interest_graph (external_user_id, graph)
		VALUES ($1, $2)
		ON CONFLICT (external_user_id)
		DO UPDATE SET graph      = EXCLUDED.graph,
		              version    = user_interest_graph.version + 1,
		              updated_at = now()
		RETURNING version`,
		userID, raw).Scan(&version)
	if err != nil {
		return 0, wrapErr("upsert interest graph", err)
	}
	return version, nil
}
