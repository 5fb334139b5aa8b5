// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cadenzalabs/cadenza/internal/errs"
	"github.com/cadenzalabs/cadenza/internal/models"
)

// PreferencesRequest sets the user's preferred genres.
type PreferencesRequest struct {
	PreferredGenres []string `json:"preferredGenres" validate:"required,min=1,max=10,dive,min=1,max=64"`
}

// ContextPayload is the optional listening context on requests.
type ContextPayload struct {
	Mood       string `json:"mood" validate:"omitempty,mood"`
	Activity   string `json:"activity" validate:"omitempty,activity"`
	TimeBucket string `json:"timeBucket" validate:"omitempty,timebucket"`
}

// ToModel converts a payload to the domain context (nil when absent).
func (c *ContextPayload) ToModel() *models.Context {
	if c == nil {
		return nil
	}
	return (&models.Context{
		Mood:       models.Mood(c.Mood),
		Activity:   models.Activity(c.Activity),
		TimeBucket: models.TimeBucket(c.TimeBucket),
	}).Normalize()
}

// InteractionRequest records one interaction event. The external user ID in
// the body, if any, is ignored in favor of the authenticated identity.
type InteractionRequest struct {
	TrackID    string          `json:"trackId" validate:"required,min=1,max=128"`
	EventType  string          `json:"eventType" validate:"required,eventtype"`
	EventValue *int            `json:"eventValue" validate:"omitempty,gte=0"`
	Context    *ContextPayload `json:"context"`
	ClientTs   *time.Time      `json:"clientTs"`
}

// recommendationQuery is the parsed GET /recommendations query string.
type recommendationQuery struct {
	Mood       string `validate:"omitempty,mood"`
	Activity   string `validate:"omitempty,activity"`
	TimeBucket string `validate:"omitempty,timebucket"`
	Limit      int
}

// parseRecommendationQuery validates the enums and parses the limit. The
// limit is clamped downstream; a non-numeric limit is a validation error.
func parseRecommendationQuery(r *http.Request) (recommendationQuery, error) {
	q := r.URL.Query()
	out := recommendationQuery{
		Mood:       q.Get("mood"),
		Activity:   q.Get("activity"),
		TimeBucket: q.Get("timeBucket"),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return out, errs.New(errs.KindValidation, "limit must be an integer")
		}
		out.Limit = limit
	}

	return out, nil
}

// context converts the query's context fields (nil when none set).
func (q recommendationQuery) context() *models.Context {
	return (&models.Context{
		Mood:       models.Mood(q.Mood),
		Activity:   models.Activity(q.Activity),
		TimeBucket: models.TimeBucket(q.TimeBucket),
	}).Normalize()
}
