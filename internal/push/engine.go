// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package push

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/events"
	"github.com/cadenzalabs/cadenza/internal/metrics"
	"github.com/cadenzalabs/cadenza/internal/models"
	"github.com/cadenzalabs/cadenza/internal/pipeline"
)

// EventRecommendationsUpdate is the server-to-client push event.
const EventRecommendationsUpdate = "recommendations:update"

// refreshTimeout bounds one pipeline rerun during a push refresh.
const refreshTimeout = 5 * time.Second

// UpdatePayload is the recommendations:update payload.
type UpdatePayload struct {
	Tracks []models.Track       `json:"tracks"`
	Reason events.RefreshReason `json:"reason"`
}

// Recommender is the pipeline surface the engine needs.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID string, req pipeline.Request) (*pipeline.Response, error)
	Invalidate(ctx context.Context, userID string) error
}

// Engine reruns the pipeline and fans recommendations:update out to a
// user's live sessions. Triggers are serialized per user; refreshes for
// distinct users run concurrently.
type Engine struct {
	registry    *Registry
	recommender Recommender
	bus         *events.Bus
	cfg         config.PushConfig
	limit       int
	locks       *userLocks
	logger      zerolog.Logger
}

// NewEngine creates the push engine. limit is the track count of pushed
// refreshes (the pipeline default).
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(registry *Registry, recommender Recommender, bus *events.Bus, cfg config.PushConfig, limit int, logger zerolog.Logger) *Engine {
	return &Engine{
		registry:    registry,
		recommender: recommender,
		bus:         bus,
		cfg:         cfg,
		limit:       limit,
		locks:       newUserLocks(),
		logger:      logger.With().Str("component", "push").Logger(),
	}
}

// Registry exposes the session registry for the transport layer.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// RequestRefresh handles a client-initiated refresh from a session: it
// enqueues a manual refresh for the session's user. Errors are logged; the
// push channel never surfaces pipeline errors to clients.
func (e *Engine) RequestRefresh(s Session) {
	if err := e.bus.PublishRefresh(events.RefreshRequested{
		UserID: s.UserID(),
		Reason: events.ReasonManualRefresh,
	}); err != nil {
		e.logger.Warn().Err(err).Str("user_id", s.UserID()).Msg("enqueue manual refresh failed")
	}
}

// Serve consumes refresh requests until ctx is done. Each request runs on
// its own goroutine so refreshes for distinct users overlap; the per-user
// lock keeps same-user triggers sequential. Designed for suture supervision.
func (e *Engine) Serve(ctx context.Context) error {
	msgs, err := e.bus.SubscribeRefreshes(ctx)
	if err != nil {
		return err
	}

	e.logger.Info().Msg("push engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("push engine stopped")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			// Ack before processing: the bus delivers the next message
			// only after the ack, and refreshes for distinct users must
			// not wait on each other.
			ev, err := events.DecodeRefresh(msg)
			msg.Ack()
			if err != nil {
				e.logger.Warn().Err(err).Msg("undecodable refresh request")
				continue
			}
			if !ev.Reason.Valid() {
				ev.Reason = events.ReasonManualRefresh
			}
			// Detached from the triggering request: the interaction
			// response never waits on the fan-out.
			go e.TriggerRefresh(context.Background(), ev.UserID, ev.Reason)
		}
	}
}

// TriggerRefresh invalidates the user's cache, reruns the pipeline with the
// default limit and no context, and emits the fresh list to every session
// currently registered for the user. Per-session delivery is best-effort: a
// failing emit never blocks the others and nothing bubbles out.
func (e *Engine) TriggerRefresh(ctx context.Context, userID string, reason events.RefreshReason) {
	unlock := e.locks.lock(userID)
	defer unlock()

	metrics.PushRefreshes.WithLabelValues(string(reason)).Inc()

	refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if err := e.recommender.Invalidate(refreshCtx, userID); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("cache invalidate failed during refresh")
	}

	resp, err := e.recommender.GetRecommendations(refreshCtx, userID, pipeline.Request{Limit: e.limit})
	if err != nil {
		// Sessions stay silent until the next successful trigger.
		e.logger.Error().Err(err).Str("user_id", userID).Str("reason", string(reason)).Msg("refresh pipeline failed")
		return
	}

	payload := UpdatePayload{Tracks: resp.Tracks, Reason: reason}
	sessions := e.registry.SessionsFor(userID)
	for _, s := range sessions {
		e.emit(s, payload)
	}

	e.logger.Debug().
		Str("user_id", userID).
		Str("reason", string(reason)).
		Int("sessions", len(sessions)).
		Int("tracks", len(payload.Tracks)).
		Msg("refresh fanned out")
}

// emit delivers to one session under the configured emit deadline.
func (e *Engine) emit(s Session, payload UpdatePayload) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.EmitTimeout)
	defer cancel()

	if err := s.Emit(ctx, EventRecommendationsUpdate, payload); err != nil {
		metrics.PushEmits.WithLabelValues("dropped").Inc()
		e.logger.Warn().
			Err(err).
			Str("user_id", s.UserID()).
			Uint64("session_id", s.ID()).
			Msg("push emit dropped")
		return
	}
	metrics.PushEmits.WithLabelValues("ok").Inc()
}
