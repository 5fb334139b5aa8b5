// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package api provides the HTTP surface: the chi router, middleware, and the
// thin handlers that decode a request, call a component, and encode the
// documented response shape. Success payloads are the contract types
// themselves; errors share one structured envelope with a machine-readable
// code and the request ID for tracing.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/cadenzalabs/cadenza/internal/errs"
	"github.com/cadenzalabs/cadenza/internal/logging"
)

// ErrorBody is the error envelope for every non-2xx response.
type ErrorBody struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// APIError carries the machine-readable error.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// respondJSON writes a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("encode JSON response")
	}
}

// respondError writes the error envelope.
func respondError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, details any) {
	respondJSON(w, statusCode, ErrorBody{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

// respondKindError maps a classified error onto its HTTP status and code.
// Internal details are logged, not leaked.
func respondKindError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	if kind == errs.KindInternal || kind == errs.KindPipeline || kind == errs.KindStore {
		logging.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	} else {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("request rejected")
	}

	message := publicMessage(kind)
	respondError(w, r, kind.HTTPStatus(), kind.Code(), message, nil)
}

// publicMessage keeps outward-facing error text short and cause-free.
func publicMessage(kind errs.Kind) string {
	switch kind {
	case errs.KindValidation:
		return "request failed validation"
	case errs.KindNotFound:
		return "resource not found"
	case errs.KindUnauthorized:
		return "identity not established"
	case errs.KindStore:
		return "storage temporarily unavailable"
	case errs.KindTimeout:
		return "request deadline exceeded"
	default:
		return "internal error"
	}
}
