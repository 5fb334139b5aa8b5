// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cadenzalabs/cadenza/internal/config"
)

// NewRouter assembles the HTTP surface. Liveness, metrics, and the push
// channel handshake sit outside the identity group; everything else
// requires the edge-verified external user ID.
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDWithLogging())
	r.Use(securityHeaders())
	r.Use(observeRequests())
	r.Use(corsMiddleware(cfg.Security))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Push channel: identity travels in the handshake query string.
	r.Get("/ws/recommendations", h.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(cfg.Security))
		r.Use(identity(cfg.Security))
		r.Use(requestTimeout(cfg.Server.RequestTimeout))

		r.Get("/me", h.GetMe)
		r.Get("/me/interest-graph", h.GetInterestGraph)
		r.Put("/me/preferences", h.UpdatePreferences)
		r.Get("/recommendations", h.GetRecommendations)
		r.With(writeRateLimit(cfg.Security)).Post("/interactions", h.RecordInteraction)
	})

	return r
}
