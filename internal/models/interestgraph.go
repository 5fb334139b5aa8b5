// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package models

import "time"

// InterestGraphSchemaVersion is the current document schema version.
const InterestGraphSchemaVersion = 1

// InterestGraphMaxEntries caps each top/avoid map.
const InterestGraphMaxEntries = 20

// InterestGraph is the compact per-user bias document derived from recent
// interaction history. Scores are normalized so the maximum in each map is 1
// (or every value is 0 when the input had no positive mass); avoid maps hold
// only entries whose raw accumulated score was negative.
type InterestGraph struct {
	SchemaVersion int                `json:"version"`
	GeneratedBy   string             `json:"generatedBy"`
	WindowDays    int                `json:"windowDays"`
	TopArtists    map[string]float64 `json:"topArtists"`
	TopGenres     map[string]float64 `json:"topGenres"`
	AvoidArtists  map[string]float64 `json:"avoidArtists"`
	AvoidGenres   map[string]float64 `json:"avoidGenres"`
	UpdatedAt     time.Time          `json:"updatedAt"`

	// Version is the monotonic write counter maintained by the store.
	Version int64 `json:"graphVersion,omitempty"`
}

// AvoidScore returns the avoid weight for an artist/genre pair: the maximum
// of the two axes, 0 when neither is present.
func (g *InterestGraph) AvoidScore(artist, genre string) float64 {
	if g == nil {
		return 0
	}
	score := 0.0
	if s, ok := g.AvoidArtists[artist]; ok && s > score {
		score = s
	}
	if s, ok := g.AvoidGenres[genre]; ok && s > score {
		score = s
	}
	return score
}
