// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package pipeline

import (
	"testing"

	"github.com/cadenzalabs/cadenza/internal/models"
)

func featureTrack(id string, af *models.AudioFeatures) models.Track {
	return models.Track{ID: id, Artist: id, AudioFeatures: af}
}

func TestContextScore(t *testing.T) {
	af := &models.AudioFeatures{Energy: 0.8, Valence: 0.3, Danceability: 0.6}

	tests := []struct {
		name string
		ctx  *models.Context
		want float64
	}{
		{"exercise", &models.Context{Activity: models.ActivityExercise}, 8},
		{"relax", &models.Context{Activity: models.ActivityRelax}, 8 * 0.2},
		{"party", &models.Context{Activity: models.ActivityParty}, 6},
		{"calm", &models.Context{Mood: models.MoodCalm}, 10 * 0.2},
		{"energetic", &models.Context{Mood: models.MoodEnergetic}, 8},
		{"happy", &models.Context{Mood: models.MoodHappy}, 3},
		{"sad", &models.Context{Mood: models.MoodSad}, 7},
		{
			"activity and mood sum",
			&models.Context{Activity: models.ActivityExercise, Mood: models.MoodEnergetic},
			16,
		},
		{"time bucket alone contributes nothing", &models.Context{TimeBucket: models.TimeMorning}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := featureTrack("t", af)
			got := contextScore(&tr, tt.ctx)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("contextScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextScoreWithoutFeatures(t *testing.T) {
	tr := featureTrack("bare", nil)
	ctx := &models.Context{Activity: models.ActivityExercise, Mood: models.MoodHappy}
	if got := contextScore(&tr, ctx); got != 0 {
		t.Errorf("featureless track score = %v, want 0", got)
	}
}

func TestRerankByContextStable(t *testing.T) {
	tracks := []models.Track{
		featureTrack("low1", &models.AudioFeatures{Energy: 0.2}),
		featureTrack("high", &models.AudioFeatures{Energy: 0.9}),
		featureTrack("low2", &models.AudioFeatures{Energy: 0.2}),
	}

	out := rerankByContext(tracks, &models.Context{Activity: models.ActivityExercise})

	want := []string{"high", "low1", "low2"}
	for i, w := range want {
		if out[i].ID != w {
			t.Fatalf("order = %v, want %v", trackIDs(out), want)
		}
	}
}

func TestRerankDoesNotMutateInput(t *testing.T) {
	tracks := []models.Track{
		featureTrack("a", &models.AudioFeatures{Energy: 0.1}),
		featureTrack("b", &models.AudioFeatures{Energy: 0.9}),
	}

	_ = rerankByContext(tracks, &models.Context{Activity: models.ActivityExercise})

	if tracks[0].ID != "a" || tracks[1].ID != "b" {
		t.Error("input slice order should be preserved")
	}
}
