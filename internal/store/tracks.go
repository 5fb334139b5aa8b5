// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package store

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/cadenzalabs/cadenza/internal/models"
)

// trackColumns is the shared select list for track rows.
const trackColumns = `t.id, t.title, t.artist, t.genre, t.duration_sec, t.url, t.preview_url, t.audio_features, t.embedding`

// ANNCandidatesByEmbedding returns tracks ordered by ascending cosine
// distance to the given embedding. Only tracks with a non-null embedding are
// eligible; excludeIDs are filtered out in the query.
func (s *Store) ANNCandidatesByEmbedding(ctx context.Context, embedding []float32, excludeIDs []string, limit int) ([]models.Track, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+trackColumns+`
		FROM tracks t
		WHERE t.embedding IS NOT NULL
		  AND NOT (t.id = ANY($2))
		ORDER BY t.embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(embedding), excludeIDs, limit)
	if err != nil {
		return nil, wrapErr("ann candidates", err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

// PopularByGenre returns tracks in the given genres ordered by descending
// popularity score from the materialized aggregate.
func (s *Store) PopularByGenre(ctx context.Context, genres, excludeIDs []string, limit int) ([]models.Track, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+trackColumns+`
		FROM tracks t
		JOIN popular_tracks p ON p.track_id = t.id
		WHERE t.genre = ANY($1)
		  AND NOT (t.id = ANY($2))
		ORDER BY p.popularity_score DESC, t.id
		LIMIT $3`,
		genres, excludeIDs, limit)
	if err != nil {
		return nil, wrapErr("popular by genre", err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

// PopularGlobal returns the most popular tracks across all genres.
func (s *Store) PopularGlobal(ctx context.Context, limit int) ([]models.Track, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+trackColumns+`
		FROM tracks t
		JOIN popular_tracks p ON p.track_id = t.id
		ORDER BY p.popularity_score DESC, t.id
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, wrapErr("popular global", err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

// scanTracks collects track rows, decoding the audio-feature bag and the
// embedding vector.
func scanTracks(rows pgx.Rows) ([]models.Track, error) {
	tracks := make([]models.Track, 0, 32)

	for rows.Next() {
		var (
			t        models.Track
			features []byte
			emb      *pgvector.Vector
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Genre, &t.DurationSec, &t.URL, &t.PreviewURL, &features, &emb); err != nil {
			return nil, wrapErr("scan track", err)
		}
		if len(features) > 0 {
			af := &models.AudioFeatures{}
			if err := json.Unmarshal(features, af); err == nil {
				t.AudioFeatures = af
			}
		}
		if emb != nil {
			t.Embedding = emb.Slice()
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate tracks", err)
	}
	return tracks, nil
}
