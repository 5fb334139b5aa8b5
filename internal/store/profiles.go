// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package store

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/cadenzalabs/cadenza/internal/models"
)

// FindOrCreateProfile returns the user's profile, creating it with default
// state on first observation. The single-statement upsert tolerates
// concurrent first access: both callers land on the same row.
func (s *Store) FindOrCreateProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var (
		p   models.UserProfile
		emb *pgvector.Vector
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_profiles (external_user_id)
		VALUES ($1)
		ON CONFLICT (external_user_id)
		DO UPDATE SET last_active_at = now()
		RETURNING external_user_id, preferred_genres, disliked_genres, last_active_at, profile_embedding`,
		userID).Scan(&p.UserID, &p.PreferredGenres, &p.DislikedGenres, &p.LastActiveAt, &emb)
	if err != nil {
		return models.UserProfile{}, wrapErr("find or create profile", err)
	}
	if emb != nil {
		p.ProfileEmbedding = emb.Slice()
	}
	return p, nil
}

// UpdatePreferences replaces the user's preferred genres, creating the
// profile if it does not exist yet.
func (s *Store) UpdatePreferences(ctx context.Context, userID string, preferredGenres []string) (models.UserProfile, error) {
	var (
		p   models.UserProfile
		emb *pgvector.Vector
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_profiles (external_user_id, preferred_genres)
		VALUES ($1, $2)
		ON CONFLICT (external_user_id)
		DO UPDATE SET preferred_genres = EXCLUDED.preferred_genres,
		              last_active_at   = now(),
		              updated_at       = now()
		RETURNING external_user_id, preferred_genres, disliked_genres, last_active_at, profile_embedding`,
		userID, preferredGenres).Scan(&p.UserID, &p.PreferredGenres, &p.DislikedGenres, &p.LastActiveAt, &emb)
	if err != nil {
		return models.UserProfile{}, wrapErr("update preferences", err)
	}
	if emb != nil {
		p.ProfileEmbedding = emb.Slice()
	}
	return p, nil
}

// upsertProfileEmbeddingSQL weights LIKE +2.0, PLAY +1.0, SKIP -0.5, applied to the
// track embeddings of the user's last 50 qualifying interactions within
// 90 days and averaged in-store. Rows whose track lacks an embedding are
// excluded; when nothing qualifies the statement is a no-op and the previous
// embedding survives.
const upsertProfileEmbeddingSQL = `
	UPDATE user_profiles p
	SET profile_embedding = sub.emb,
	    updated_at        = now()
	FROM (
		SELECT AVG(w.weight * t.embedding) AS emb
		FROM (
			SELECT i.track_id,
			       CASE i.event_type
			           WHEN 'LIKE' THEN  2.0
			           WHEN 'PLAY' THEN  1.0
			           WHEN 'SKIP' THEN -0.5
			           ELSE 0.0
			       END AS weight
			FROM interactions i
			WHERE i.external_user_id = $1
			  AND i.event_type IN ('LIKE', 'PLAY', 'SKIP')
			  AND i.created_at > now() - interval '90 days'
			ORDER BY i.created_at DESC
			LIMIT 50
		) w
		JOIN tracks t ON t.id = w.track_id AND t.embedding IS NOT NULL
	) sub
	WHERE p.external_user_id = $1
	  AND sub.emb IS NOT NULL`

// UpsertProfileEmbedding recomputes the user's taste embedding inside the
// store. The computation never transfers candidate vectors over the wire and
// runs as a single statement, so concurrent calls serialize on the row.
func (s *Store) UpsertProfileEmbedding(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, upsertProfileEmbeddingSQL, userID); err != nil {
		return wrapErr("upsert profile embedding", err)
	}
	return nil
}
