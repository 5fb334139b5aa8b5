// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/events"
	"github.com/cadenzalabs/cadenza/internal/logging"
	"github.com/cadenzalabs/cadenza/internal/models"
	"github.com/cadenzalabs/cadenza/internal/pipeline"
	"github.com/cadenzalabs/cadenza/internal/push"
	"github.com/cadenzalabs/cadenza/internal/validation"
)

// ProfileStore is the gateway surface the handlers need.
type ProfileStore interface {
	FindOrCreateProfile(ctx context.Context, userID string) (models.UserProfile, error)
	UpdatePreferences(ctx context.Context, userID string, preferredGenres []string) (models.UserProfile, error)
	InteractionStats(ctx context.Context, userID string) (models.InteractionStats, error)
	AppendInteraction(ctx context.Context, in models.Interaction) (models.Interaction, error)
}

// Recommender is the pipeline surface the handlers need.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID string, req pipeline.Request) (*pipeline.Response, error)
	CheckSkipBurst(ctx context.Context, userID string) (bool, error)
}

// GraphReader exposes the user's interest-graph document.
type GraphReader interface {
	GetOrCompute(ctx context.Context, userID string) (*models.InterestGraph, error)
}

// Handler carries the components the HTTP surface composes.
type Handler struct {
	store       ProfileStore
	recommender Recommender
	graphs      GraphReader
	bus         *events.Bus
	pushEngine  *push.Engine
	cfg         *config.Config
}

// NewHandler creates the HTTP handler set.
func NewHandler(store ProfileStore, recommender Recommender, graphs GraphReader, bus *events.Bus, pushEngine *push.Engine, cfg *config.Config) *Handler {
	return &Handler{
		store:       store,
		recommender: recommender,
		graphs:      graphs,
		bus:         bus,
		pushEngine:  pushEngine,
		cfg:         cfg,
	}
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ProfileResponse is the GET /me payload: the profile plus all-time stats.
type ProfileResponse struct {
	models.UserProfile
	Stats models.InteractionStats `json:"stats"`
}

// GetMe handles GET /me: fetch-or-create the caller's profile.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	profile, err := h.store.FindOrCreateProfile(r.Context(), userID)
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	stats, err := h.store.InteractionStats(r.Context(), userID)
	if err != nil {
		respondKindError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ProfileResponse{UserProfile: profile, Stats: stats})
}

// UpdatePreferences handles PUT /me/preferences.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", verr.Error(), verr.Details())
		return
	}

	profile, err := h.store.UpdatePreferences(r.Context(), UserIDFromContext(r.Context()), req.PreferredGenres)
	if err != nil {
		respondKindError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// GetRecommendations handles GET /recommendations. A websocket upgrade on
// the same path joins the push channel instead.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	if isWebSocketUpgrade(r) {
		h.ServeWS(w, r)
		return
	}

	q, err := parseRecommendationQuery(r)
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", verr.Error(), verr.Details())
		return
	}

	resp, err := h.recommender.GetRecommendations(r.Context(), UserIDFromContext(r.Context()), pipeline.Request{
		Context: q.context(),
		Limit:   q.Limit,
	})
	if err != nil {
		respondKindError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// InteractionResponse is the POST /interactions payload.
type InteractionResponse struct {
	Success          bool               `json:"success"`
	Interaction      models.Interaction `json:"interaction"`
	RefreshTriggered bool               `json:"refreshTriggered"`
}

// RecordInteraction handles POST /interactions: append the event, kick the
// best-effort background work, and run the skip-burst check. The response
// never waits on the interest-graph refresh or the push fan-out.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", verr.Error(), verr.Details())
		return
	}

	userID := UserIDFromContext(r.Context())
	interaction, err := h.store.AppendInteraction(r.Context(), models.Interaction{
		UserID:     userID,
		TrackID:    req.TrackID,
		EventType:  models.EventType(req.EventType),
		EventValue: req.EventValue,
		Context:    req.Context.ToModel(),
		ClientTs:   req.ClientTs,
	})
	if err != nil {
		respondKindError(w, r, err)
		return
	}

	if err := h.bus.PublishInteraction(events.InteractionRecorded{
		UserID:     userID,
		TrackID:    interaction.TrackID,
		EventType:  interaction.EventType,
		OccurredAt: interaction.CreatedAt,
	}); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("enqueue interaction event failed")
	}

	refreshTriggered := false
	if interaction.EventType == models.EventSkip {
		burst, err := h.recommender.CheckSkipBurst(r.Context(), userID)
		if err != nil {
			// The interaction is already persisted; a failed window count
			// only costs this round's refresh.
			logging.Ctx(r.Context()).Warn().Err(err).Msg("skip-burst check failed")
		} else if burst {
			refreshTriggered = true
			if err := h.bus.PublishRefresh(events.RefreshRequested{
				UserID: userID,
				Reason: events.ReasonSkipDetected,
			}); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("enqueue refresh failed")
			}
		}
	}

	respondJSON(w, http.StatusCreated, InteractionResponse{
		Success:          true,
		Interaction:      interaction,
		RefreshTriggered: refreshTriggered,
	})
}

// GetInterestGraph handles GET /me/interest-graph: the caller's current
// bias document, computed on first access.
func (h *Handler) GetInterestGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := h.graphs.GetOrCompute(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	if graph == nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "no interaction history yet", nil)
		return
	}
	respondJSON(w, http.StatusOK, graph)
}
