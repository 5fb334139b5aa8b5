// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/models"
)

// identityContextKey carries the authenticated external user ID.
type identityContextKey struct{}

// UserIDFromContext returns the authenticated external user ID, or "".
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(identityContextKey{}).(string); ok {
		return id
	}
	return ""
}

// contextWithUserID attaches the external user ID for handlers downstream.
func contextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityContextKey{}, userID)
}

// identity extracts the edge-verified external user ID per the configured
// mode and rejects requests without one. The service never authenticates;
// it trusts the gateway header or the signature the edge issued.
func identity(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := extractUserID(r, cfg)
			if userID == "" || len(userID) > models.MaxExternalUserIDLen {
				respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "identity not established", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(contextWithUserID(r.Context(), userID)))
		})
	}
}

// extractUserID reads the identity per auth mode.
func extractUserID(r *http.Request, cfg config.SecurityConfig) string {
	switch cfg.AuthMode {
	case "jwt":
		return subjectFromBearer(r, cfg.JWTSecret)
	default:
		return strings.TrimSpace(r.Header.Get(cfg.TrustedHeader))
	}
}

// subjectFromBearer validates the bearer token's HMAC signature and returns
// its sub claim.
func subjectFromBearer(r *http.Request, secret string) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}

	token, err := jwt.Parse(strings.TrimPrefix(auth, prefix), func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return ""
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return subject
}
