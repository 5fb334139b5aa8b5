// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadenzalabs/cadenza/internal/logging"
	"github.com/cadenzalabs/cadenza/internal/models"
	"github.com/cadenzalabs/cadenza/internal/push"
)

// isWebSocketUpgrade reports whether the request asks for a websocket.
func isWebSocketUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// upgrader builds the websocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates browser origins against the configured
// list. Requests without an Origin header (host-platform backends, native
// clients) are allowed; the handshake identity check still applies.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// ServeWS joins the push channel. The handshake carries the edge-verified
// external user ID in the query string (userId); the authenticated identity
// is accepted as a fallback when the edge injects it on the upgrade request.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		userID = UserIDFromContext(r.Context())
	}
	if userID == "" || len(userID) > models.MaxExternalUserIDLen {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "connect handshake without user id", nil)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := push.NewWSSession(conn, userID, h.cfg.Push.SendBuffer)
	registry := h.pushEngine.Registry()
	if err := registry.OnConnect(session); err != nil {
		_ = conn.Close()
		return
	}

	// Blocks for the lifetime of the connection; the registry entry is
	// gone before Run returns.
	session.Run(registry, h.pushEngine)
}

// sanitizeLogValue strips control characters that could forge log lines.
func sanitizeLogValue(v string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, v)
}
