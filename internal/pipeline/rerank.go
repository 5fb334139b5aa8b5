// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package pipeline

import (
	"sort"

	"github.com/cadenzalabs/cadenza/internal/models"
)

// contextScore sums the per-feature bonuses for one track under the given
// context. Tracks without an audio-feature bag score 0; a bag missing a
// relevant field contributes that field's zero value.
func contextScore(t *models.Track, ctx *models.Context) float64 {
	if t.AudioFeatures == nil || ctx == nil {
		return 0
	}
	af := t.AudioFeatures
	score := 0.0

	switch ctx.Activity {
	case models.ActivityExercise:
		score += 10 * af.Energy
	case models.ActivityRelax:
		score += 8 * (1 - af.Energy)
	case models.ActivityParty:
		score += 10 * af.Danceability
	}

	switch ctx.Mood {
	case models.MoodCalm:
		score += 10 * (1 - af.Energy)
	case models.MoodEnergetic:
		score += 10 * af.Energy
	case models.MoodHappy:
		score += 10 * af.Valence
	case models.MoodSad:
		score += 10 * (1 - af.Valence)
	}

	return score
}

// rerankByContext orders candidates by descending context score. The sort is
// stable: ties keep the incoming (ANN or popularity) order.
func rerankByContext(tracks []models.Track, ctx *models.Context) []models.Track {
	scores := make([]float64, len(tracks))
	for i := range tracks {
		scores[i] = contextScore(&tracks[i], ctx)
	}

	idx := make([]int, len(tracks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	out := make([]models.Track, len(tracks))
	for i, j := range idx {
		out[i] = tracks[j]
	}
	return out
}
