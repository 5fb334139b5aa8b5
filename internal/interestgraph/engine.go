// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package interestgraph derives the compact per-user bias document from
// recent interaction history: top and avoid sets over artists and genres,
// weighted by event type and normalized so each map's maximum is 1.
package interestgraph

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/models"
)

// generatorTag identifies the heuristic generator in persisted documents.
const generatorTag = "heuristic"

// eventWeights bias the accumulation per event kind.
var eventWeights = map[models.EventType]float64{
	models.EventLike:    2.0,
	models.EventPlay:    1.0,
	models.EventSkip:    -1.0,
	models.EventDislike: -2.0,
}

// computeKinds are the event kinds the graph is computed from.
var computeKinds = []models.EventType{
	models.EventPlay, models.EventLike, models.EventSkip, models.EventDislike,
}

// Store is the gateway surface the engine needs.
type Store interface {
	RecentInteractionsWithTrackMeta(ctx context.Context, userID string, limit, windowDays int, kinds []models.EventType) ([]models.InteractionWithTrack, error)
	GetInterestGraph(ctx context.Context, userID string) (*models.InterestGraph, error)
	UpsertInterestGraph(ctx context.Context, userID string, graph *models.InterestGraph) (int64, error)
}

// Engine computes and persists interest-graph documents.
type Engine struct {
	store           Store
	windowDays      int
	maxInteractions int
	logger          zerolog.Logger
}

// NewEngine creates an interest-graph engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(store Store, cfg config.RecommendConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		store:           store,
		windowDays:      cfg.InterestGraphWindowDays,
		maxInteractions: cfg.InterestGraphMaxInteractions,
		logger:          logger.With().Str("component", "interestgraph").Logger(),
	}
}

// GetOrCompute returns the stored document unchanged when one exists;
// otherwise it computes, persists, and returns a fresh one. Returns nil
// (no error) for users without usable history.
func (e *Engine) GetOrCompute(ctx context.Context, userID string) (*models.InterestGraph, error) {
	existing, err := e.store.GetInterestGraph(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return e.Refresh(ctx, userID)
}

// Refresh always recomputes the document and persists it when non-nil.
func (e *Engine) Refresh(ctx context.Context, userID string) (*models.InterestGraph, error) {
	graph, err := e.Compute(ctx, userID)
	if err != nil {
		return nil, err
	}
	if graph == nil {
		return nil, nil
	}

	version, err := e.store.UpsertInterestGraph(ctx, userID, graph)
	if err != nil {
		return nil, err
	}
	graph.Version = version

	e.logger.Debug().
		Str("user_id", userID).
		Int64("version", version).
		Int("top_artists", len(graph.TopArtists)).
		Int("avoid_artists", len(graph.AvoidArtists)).
		Msg("interest graph refreshed")

	return graph, nil
}

// Compute builds the document from the user's recent history without
// persisting it. Returns nil when the user has no qualifying interactions.
func (e *Engine) Compute(ctx context.Context, userID string) (*models.InterestGraph, error) {
	rows, err := e.store.RecentInteractionsWithTrackMeta(ctx, userID, e.maxInteractions, e.windowDays, computeKinds)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	artistScores := make(map[string]float64)
	genreScores := make(map[string]float64)

	for _, row := range rows {
		weight := eventWeights[row.EventType]
		if weight == 0 {
			continue
		}
		// Rows with a missing artist or genre do not contribute to that axis.
		if row.Artist != "" {
			artistScores[row.Artist] += weight
		}
		if row.Genre != "" {
			genreScores[row.Genre] += weight
		}
	}

	return &models.InterestGraph{
		SchemaVersion: models.InterestGraphSchemaVersion,
		GeneratedBy:   generatorTag,
		WindowDays:    e.windowDays,
		TopArtists:    topNormalized(artistScores),
		TopGenres:     topNormalized(genreScores),
		AvoidArtists:  avoidNormalized(artistScores),
		AvoidGenres:   avoidNormalized(genreScores),
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

// topNormalized keeps the highest-scoring entries (at most
// models.InterestGraphMaxEntries) and divides by the maximum score. When the
// maximum is <= 0 every emitted value is 0.
func topNormalized(scores map[string]float64) map[string]float64 {
	return normalizeEntries(collectEntries(scores))
}

// avoidNormalized keeps only entries with a negative raw score, flips them
// positive, then applies the same top-N + normalize procedure.
func avoidNormalized(scores map[string]float64) map[string]float64 {
	negative := make(map[string]float64)
	for name, score := range scores {
		if score < 0 {
			negative[name] = -score
		}
	}
	return normalizeEntries(collectEntries(negative))
}

type entry struct {
	name  string
	score float64
}

// collectEntries sorts entries by score descending, name ascending on ties,
// keeping at most the map cap. The name tiebreak keeps output deterministic
// across map iteration orders.
func collectEntries(scores map[string]float64) []entry {
	entries := make([]entry, 0, len(scores))
	for name, score := range scores {
		entries = append(entries, entry{name: name, score: score})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].name < entries[j].name
	})

	if len(entries) > models.InterestGraphMaxEntries {
		entries = entries[:models.InterestGraphMaxEntries]
	}
	return entries
}

// normalizeEntries divides by the maximum score, rounding to 4 decimal
// places. A non-positive maximum emits all zeros.
func normalizeEntries(entries []entry) map[string]float64 {
	out := make(map[string]float64, len(entries))
	if len(entries) == 0 {
		return out
	}

	max := entries[0].score
	for _, en := range entries {
		if max <= 0 {
			out[en.name] = 0
			continue
		}
		out[en.name] = math.Round(en.score/max*10000) / 10000
	}
	return out
}
