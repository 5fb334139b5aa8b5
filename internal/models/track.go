// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package models

import "math"

// EmbeddingDim is the fixed dimensionality of track and profile embeddings.
const EmbeddingDim = 256

// Track is a recommendable piece of music. Tracks are created by ingestion
// and are immutable to this service; interactions and playlists reference
// them by ID.
type Track struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Artist        string         `json:"artist"`
	Genre         string         `json:"genre"`
	DurationSec   int            `json:"durationSec"`
	URL           string         `json:"url"`
	PreviewURL    *string        `json:"previewUrl,omitempty"`
	AudioFeatures *AudioFeatures `json:"audioFeatures,omitempty"`

	// Embedding is a 256-dimensional content vector, nil for tracks the
	// ingestion pipeline has not embedded yet. Only embedded tracks are
	// eligible as ANN candidates.
	Embedding []float32 `json:"-"`
}

// AudioFeatures is the per-track audio descriptor bag. All ratio features
// (energy, valence, danceability, speechiness, acousticness,
// instrumentalness, liveness) lie in [0,1]; tempo is BPM, loudness dB,
// key 0-11, mode 0/1, time signature 3-7.
type AudioFeatures struct {
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Danceability     float64 `json:"danceability"`
	Tempo            float64 `json:"tempo"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"timeSignature"`
}

// ValidEmbedding reports whether v is a well-formed profile or track
// embedding: exactly EmbeddingDim finite values.
func ValidEmbedding(v []float32) bool {
	if len(v) != EmbeddingDim {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
