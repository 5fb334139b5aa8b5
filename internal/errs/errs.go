// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package errs defines the typed error sum used across the service.
//
// Every error that crosses a component boundary is classified by Kind, which
// carries a machine-readable code and the HTTP status it maps to. Errors are
// compatible with errors.Is/errors.As, so callers can branch on Kind without
// string matching:
//
//	if errs.KindOf(err) == errs.KindTimeout { ... }
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	// KindInternal is an unexpected failure. Maps to 500.
	KindInternal Kind = iota

	// KindValidation means input failed schema or bounds checks. Maps to 400.
	KindValidation

	// KindNotFound means the addressed entity does not exist or is not
	// owned by the caller. Maps to 404.
	KindNotFound

	// KindUnauthorized means identity was not established at the edge. Maps to 401.
	KindUnauthorized

	// KindStore means the store was unreachable or a constraint failed for
	// reasons not attributable to input. Maps to 503.
	KindStore

	// KindTimeout means a deadline was exceeded on a store or cache call. Maps to 504.
	KindTimeout

	// KindPipeline is an unrecoverable composition failure in the
	// recommendation pipeline. Maps to 500.
	KindPipeline
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindStore:
		return "store"
	case KindTimeout:
		return "timeout"
	case KindPipeline:
		return "pipeline"
	default:
		return "internal"
	}
}

// Code returns the machine-readable error code for API responses.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_FAILED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindStore:
		return "STORE_UNAVAILABLE"
	case KindTimeout:
		return "TIMEOUT"
	case KindPipeline:
		return "PIPELINE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// HTTPStatus returns the HTTP status code the kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindStore:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. Returns nil when err is nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain. Context deadline and
// cancellation errors classify as KindTimeout; anything unclassified is
// KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
