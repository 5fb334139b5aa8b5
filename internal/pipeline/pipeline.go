// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package pipeline orchestrates recommendation serving: cache lookup,
// cold-start vs personalized candidate generation, avoid filtering, context
// reranking, artist-diversity enforcement, and the skip-burst side duty on
// the interaction write-path.
//
// Degradation rules: cache errors are a miss (read) or dropped (write);
// interest-graph and taste-recompute failures downgrade silently to "no
// bias" / "existing embedding"; store errors inside a request surface to the
// caller.
package pipeline

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/cadenzalabs/cadenza/internal/cache"
	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/metrics"
	"github.com/cadenzalabs/cadenza/internal/models"
)

// Store is the gateway surface the pipeline needs.
type Store interface {
	FindOrCreateProfile(ctx context.Context, userID string) (models.UserProfile, error)
	InteractionStats(ctx context.Context, userID string) (models.InteractionStats, error)
	RecentSkipTrackIDs(ctx context.Context, userID string, window time.Duration, limit int) ([]string, error)
	ANNCandidatesByEmbedding(ctx context.Context, embedding []float32, excludeIDs []string, limit int) ([]models.Track, error)
	PopularByGenre(ctx context.Context, genres, excludeIDs []string, limit int) ([]models.Track, error)
	PopularGlobal(ctx context.Context, limit int) ([]models.Track, error)
	CountRecentSkips(ctx context.Context, userID string, window time.Duration) (int, error)
}

// Cache is the recommendation cache surface.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	InvalidateUser(ctx context.Context, userID string) error
}

// GraphProvider supplies the per-user interest graph, best-effort.
type GraphProvider interface {
	GetOrCompute(ctx context.Context, userID string) (*models.InterestGraph, error)
}

// TasteEngine recomputes the profile embedding, best-effort.
type TasteEngine interface {
	Recompute(ctx context.Context, userID string) error
}

// Request is one recommendation request.
type Request struct {
	Context *models.Context
	Limit   int
}

// Response is the ranked result. A cache hit returns the stored response
// unchanged, including its original GeneratedAt.
type Response struct {
	Tracks      []models.Track  `json:"tracks"`
	Context     *models.Context `json:"context,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Pipeline composes the store gateway, the cache, and the taste engines.
type Pipeline struct {
	store  Store
	cache  Cache
	graphs GraphProvider
	taste  TasteEngine
	cfg    config.RecommendConfig
	logger zerolog.Logger
}

// New creates a pipeline. graphs may be nil when the interest-graph
// integration is disabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(store Store, c Cache, graphs GraphProvider, taste TasteEngine, cfg config.RecommendConfig, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		cache:  c,
		graphs: graphs,
		taste:  taste,
		cfg:    cfg,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// GetRecommendations produces the ordered, diverse, context-adjusted track
// list for a (user, context) request. An empty candidate pool yields an
// empty list, never an error.
func (p *Pipeline) GetRecommendations(ctx context.Context, userID string, req Request) (*Response, error) {
	start := time.Now()
	limit := p.clampLimit(req.Limit)
	reqCtx := req.Context.Normalize()
	key := cache.UserKey(userID, Fingerprint(reqCtx))

	if resp := p.cacheLookup(ctx, key); resp != nil {
		metrics.ObservePipeline("cache_hit", time.Since(start))
		return resp, nil
	}

	profile, err := p.store.FindOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := p.store.InteractionStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		candidates []models.Track
		branch     string
	)
	if isColdStart(profile, stats) {
		candidates, err = p.coldStartCandidates(ctx, profile, limit)
		branch = "cold_start"
	} else {
		candidates, branch, err = p.personalizedCandidates(ctx, userID, limit)
	}
	if err != nil {
		return nil, err
	}
	metrics.PipelineCandidates.Observe(float64(len(candidates)))

	if reqCtx != nil {
		candidates = rerankByContext(candidates, reqCtx)
	}
	candidates = enforceArtistDiversity(candidates, p.cfg.MaxSameArtistRun)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	resp := &Response{
		Tracks:      candidates,
		Context:     reqCtx,
		GeneratedAt: time.Now().UTC(),
	}
	p.cacheStore(ctx, key, resp)

	metrics.ObservePipeline(branch, time.Since(start))
	p.logger.Debug().
		Str("user_id", userID).
		Str("branch", branch).
		Int("returned", len(resp.Tracks)).
		Dur("elapsed", time.Since(start)).
		Msg("recommendations generated")

	return resp, nil
}

// Invalidate removes every cache entry under the user's prefix.
func (p *Pipeline) Invalidate(ctx context.Context, userID string) error {
	metrics.CacheInvalidations.Inc()
	return p.cache.InvalidateUser(ctx, userID)
}

// CheckSkipBurst runs after a SKIP append: when the rolling-window skip
// count reaches the threshold it invalidates the user's cache and reports
// that a refresh push should be triggered.
func (p *Pipeline) CheckSkipBurst(ctx context.Context, userID string) (bool, error) {
	count, err := p.store.CountRecentSkips(ctx, userID, p.cfg.SkipWindow)
	if err != nil {
		return false, err
	}
	if count < p.cfg.SkipThreshold {
		return false, nil
	}

	metrics.SkipBursts.Inc()
	if err := p.Invalidate(ctx, userID); err != nil {
		// The refresh push recomputes and re-caches anyway.
		p.logger.Warn().Err(err).Str("user_id", userID).Msg("cache invalidate failed during skip burst")
	}
	return true, nil
}

// clampLimit applies the default and the [1, max] bounds.
func (p *Pipeline) clampLimit(limit int) int {
	if limit == 0 {
		return p.cfg.DefaultLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > p.cfg.MaxLimit {
		return p.cfg.MaxLimit
	}
	return limit
}

// isColdStart reports whether the user has no usable taste signal: no
// interactions at all, or neither preferred genres nor a profile embedding.
func isColdStart(profile models.UserProfile, stats models.InteractionStats) bool {
	if stats.Total == 0 {
		return true
	}
	return len(profile.PreferredGenres) == 0 && !profile.HasEmbedding()
}

// coldStartCandidates serves the popularity path.
func (p *Pipeline) coldStartCandidates(ctx context.Context, profile models.UserProfile, limit int) ([]models.Track, error) {
	fetch := limit * p.cfg.PopularCandidateMultiplier
	if len(profile.PreferredGenres) > 0 {
		return p.store.PopularByGenre(ctx, profile.PreferredGenres, nil, fetch)
	}
	return p.store.PopularGlobal(ctx, fetch)
}

// personalizedCandidates recomputes the taste embedding, builds the skip
// exclusion list, and fetches ANN candidates (or the popularity fallback
// when no embedding exists yet).
func (p *Pipeline) personalizedCandidates(ctx context.Context, userID string, limit int) ([]models.Track, string, error) {
	// Best-effort: a failed recompute leaves the previous embedding in place.
	if err := p.taste.Recompute(ctx, userID); err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID).Msg("profile embedding recompute failed")
	}

	exclusions, err := p.store.RecentSkipTrackIDs(ctx, userID, p.cfg.SkipExclusionWindow, p.cfg.SkipExclusionLimit)
	if err != nil {
		return nil, "", err
	}

	// Reload to pick up the freshly written embedding.
	profile, err := p.store.FindOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	if !profile.HasEmbedding() {
		tracks, err := p.store.PopularByGenre(ctx, profile.PreferredGenres, exclusions, limit*p.cfg.PopularCandidateMultiplier)
		return tracks, "popular_fallback", err
	}

	candidates, err := p.store.ANNCandidatesByEmbedding(ctx, profile.ProfileEmbedding, exclusions, limit*p.cfg.ANNCandidateMultiplier)
	if err != nil {
		return nil, "", err
	}

	candidates = filterDislikedGenres(candidates, profile)
	candidates = p.filterAvoided(ctx, userID, candidates)
	return candidates, "personalized", nil
}

// filterDislikedGenres drops candidates whose genre is in the profile's
// disliked set.
func filterDislikedGenres(tracks []models.Track, profile models.UserProfile) []models.Track {
	if len(profile.DislikedGenres) == 0 {
		return tracks
	}
	out := tracks[:0]
	for _, t := range tracks {
		if !profile.DislikesGenre(t.Genre) {
			out = append(out, t)
		}
	}
	return out
}

// filterAvoided drops candidates whose artist or genre carries an
// interest-graph avoid score at or above the threshold. Graph failures
// downgrade to "no bias".
func (p *Pipeline) filterAvoided(ctx context.Context, userID string, tracks []models.Track) []models.Track {
	if p.graphs == nil || !p.cfg.InterestGraphEnabled {
		return tracks
	}

	graph, err := p.graphs.GetOrCompute(ctx, userID)
	if err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID).Msg("interest graph unavailable, serving without bias")
		return tracks
	}
	if graph == nil {
		return tracks
	}

	out := tracks[:0]
	for _, t := range tracks {
		if graph.AvoidScore(t.Artist, t.Genre) < p.cfg.AvoidThreshold {
			out = append(out, t)
		}
	}
	return out
}

// cacheLookup returns the stored response on a hit; errors degrade to a miss.
func (p *Pipeline) cacheLookup(ctx context.Context, key string) *Response {
	raw, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		metrics.CacheMisses.Inc()
		return nil
	}
	if !ok {
		metrics.CacheMisses.Inc()
		return nil
	}

	resp := &Response{}
	if err := json.Unmarshal(raw, resp); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("cache entry corrupt, treating as miss")
		metrics.CacheMisses.Inc()
		return nil
	}
	metrics.CacheHits.Inc()
	return resp
}

// cacheStore writes the response; failures are dropped.
func (p *Pipeline) cacheStore(ctx context.Context, key string, resp *Response) {
	raw, err := json.Marshal(resp)
	if err != nil {
		p.logger.Error().Err(err).Msg("encode response for cache")
		return
	}
	if err := p.cache.Set(ctx, key, raw); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("cache write dropped")
	}
}
