// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package models

import "time"

// MaxExternalUserIDLen bounds the opaque identifier supplied by the host
// platform. The service never mints user IDs.
const MaxExternalUserIDLen = 255

// MaxPreferredGenres bounds the preferred-genre set a user may configure.
const MaxPreferredGenres = 10

// UserProfile is the per-user taste state. Exactly one profile exists per
// external user ID; it is created on first observation and never deleted.
type UserProfile struct {
	UserID          string    `json:"externalUserId"`
	PreferredGenres []string  `json:"preferredGenres"`
	DislikedGenres  []string  `json:"dislikedGenres"`
	LastActiveAt    time.Time `json:"lastActiveAt"`

	// ProfileEmbedding is the 256-d taste vector recomputed from recent
	// interactions, nil until the user has qualifying history.
	ProfileEmbedding []float32 `json:"-"`
}

// HasEmbedding reports whether the profile carries a usable taste vector.
func (p *UserProfile) HasEmbedding() bool {
	return len(p.ProfileEmbedding) == EmbeddingDim
}

// DislikesGenre reports whether the genre is in the profile's disliked set.
func (p *UserProfile) DislikesGenre(genre string) bool {
	for _, g := range p.DislikedGenres {
		if g == genre {
			return true
		}
	}
	return false
}
