// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package store

import (
	"context"
)

// schemaStatements bootstrap the schema the gateway's queries rely on.
// Statements are idempotent; database migration tooling owns anything beyond
// this baseline.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS tracks (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		artist         TEXT NOT NULL DEFAULT '',
		genre          TEXT NOT NULL DEFAULT '',
		duration_sec   INTEGER NOT NULL DEFAULT 0,
		url            TEXT NOT NULL DEFAULT '',
		preview_url    TEXT,
		audio_features JSONB,
		embedding      vector(256),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS user_profiles (
		external_user_id  VARCHAR(255) PRIMARY KEY,
		preferred_genres  TEXT[] NOT NULL DEFAULT '{}',
		disliked_genres   TEXT[] NOT NULL DEFAULT '{}',
		last_active_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		profile_embedding vector(256),
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS interactions (
		id               BIGSERIAL PRIMARY KEY,
		external_user_id VARCHAR(255) NOT NULL,
		track_id         TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
		event_type       TEXT NOT NULL,
		event_value      INTEGER,
		context          JSONB,
		client_ts        TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS playlists (
		id               BIGSERIAL PRIMARY KEY,
		external_user_id VARCHAR(255) NOT NULL,
		name             TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id BIGINT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		track_id    TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL DEFAULT 0,
		added_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (playlist_id, track_id)
	)`,

	`CREATE TABLE IF NOT EXISTS user_interest_graph (
		external_user_id VARCHAR(255) PRIMARY KEY,
		graph            JSONB NOT NULL,
		version          BIGINT NOT NULL DEFAULT 1,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// Per-user history scans
	`CREATE INDEX IF NOT EXISTS idx_interactions_user_created
		ON interactions (external_user_id, created_at DESC)`,

	// Keeps the 60-second skip-window count O(log n)
	`CREATE INDEX IF NOT EXISTS idx_interactions_user_skip
		ON interactions (external_user_id, event_type, created_at DESC)
		WHERE event_type = 'SKIP'`,

	// ANN over track and profile embeddings, cosine
	`CREATE INDEX IF NOT EXISTS idx_tracks_embedding_hnsw
		ON tracks USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_embedding_hnsw
		ON user_profiles USING hnsw (profile_embedding vector_cosine_ops)`,

	// Popularity aggregate: PLAY + LIKE across all users, refreshed
	// out-of-band via RefreshPopularTracks
	`CREATE MATERIALIZED VIEW IF NOT EXISTS popular_tracks AS
		SELECT
			track_id,
			COUNT(*) FILTER (WHERE event_type IN ('PLAY', 'LIKE')) AS popularity_score,
			COUNT(*) FILTER (WHERE event_type = 'SKIP')             AS skip_count
		FROM interactions
		GROUP BY track_id`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_popular_tracks_track
		ON popular_tracks (track_id)`,
}

// Migrate applies the schema bootstrap.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return wrapErr("migrate", err)
		}
	}
	return nil
}

// RefreshPopularTracks rebuilds the popularity aggregate. CONCURRENTLY keeps
// candidate reads unblocked during the rebuild.
func (s *Store) RefreshPopularTracks(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY popular_tracks`); err != nil {
		return wrapErr("refresh popular_tracks", err)
	}
	return nil
}
