// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package store

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/cadenzalabs/cadenza/internal/models"
)

// AppendInteraction persists one interaction event. The store clock assigns
// the authoritative timestamp; clientTs is carried through untouched.
func (s *Store) AppendInteraction(ctx context.Context, in models.Interaction) (models.Interaction, error) {
	var contextJSON []byte
	if !in.Context.Empty() {
		var err error
		if contextJSON, err = json.Marshal(in.Context); err != nil {
			return models.Interaction{}, wrapErr("encode interaction context", err)
		}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO interactions (external_user_id, track_id, event_type, event_value, context, client_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		in.UserID, in.TrackID, in.EventType, in.EventValue, contextJSON, in.ClientTs).
		Scan(&in.ID, &in.CreatedAt)
	if err != nil {
		return models.Interaction{}, wrapErr("append interaction", err)
	}

	return in, nil
}

// CountRecentSkips counts SKIP events for the user inside (now-window, now].
func (s *Store) CountRecentSkips(ctx context.Context, userID string, window time.Duration) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM interactions
		WHERE external_user_id = $1
		  AND event_type = 'SKIP'
		  AND created_at > now() - make_interval(secs => $2)`,
		userID, windowSeconds(window)).Scan(&count)
	if err != nil {
		return 0, wrapErr("count recent skips", err)
	}
	return count, nil
}

// RecentSkipTrackIDs returns the distinct track IDs the user skipped within
// the window, most recently skipped first, bounded by limit. This is the
// exclusion list for personalized candidates.
func (s *Store) RecentSkipTrackIDs(ctx context.Context, userID string, window time.Duration, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT track_id
		FROM (
			SELECT track_id, MAX(created_at) AS last_skip
			FROM interactions
			WHERE external_user_id = $1
			  AND event_type = 'SKIP'
			  AND created_at > now() - make_interval(secs => $2)
			GROUP BY track_id
		) skips
		ORDER BY last_skip DESC
		LIMIT $3`,
		userID, windowSeconds(window), limit)
	if err != nil {
		return nil, wrapErr("recent skip track ids", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("scan skip track id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate skip track ids", err)
	}
	return ids, nil
}

// InteractionStats returns all-time event counts for the user.
func (s *Store) InteractionStats(ctx context.Context, userID string) (models.InteractionStats, error) {
	var stats models.InteractionStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE event_type = 'LIKE'),
			COUNT(*) FILTER (WHERE event_type = 'SKIP'),
			COUNT(*) FILTER (WHERE event_type = 'PLAY')
		FROM interactions
		WHERE external_user_id = $1`,
		userID).Scan(&stats.Total, &stats.LikeCount, &stats.SkipCount, &stats.PlayCount)
	if err != nil {
		return models.InteractionStats{}, wrapErr("interaction stats", err)
	}
	return stats, nil
}

// RecentInteractionsWithTrackMeta returns (kind, timestamp, artist, genre)
// rows for the user, newest first. Rows for deleted tracks keep empty
// artist/genre and are skipped by the interest-graph accumulation.
func (s *Store) RecentInteractionsWithTrackMeta(ctx context.Context, userID string, limit, windowDays int, kinds []models.EventType) ([]models.InteractionWithTrack, error) {
	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT i.event_type, i.created_at, COALESCE(t.artist, ''), COALESCE(t.genre, '')
		FROM interactions i
		LEFT JOIN tracks t ON t.id = i.track_id
		WHERE i.external_user_id = $1
		  AND i.created_at > now() - make_interval(days => $2)
		  AND i.event_type = ANY($3)
		ORDER BY i.created_at DESC
		LIMIT $4`,
		userID, windowDays, kindStrs, limit)
	if err != nil {
		return nil, wrapErr("recent interactions with track meta", err)
	}
	defer rows.Close()

	out := make([]models.InteractionWithTrack, 0, limit)
	for rows.Next() {
		var row models.InteractionWithTrack
		if err := rows.Scan(&row.EventType, &row.CreatedAt, &row.Artist, &row.Genre); err != nil {
			return nil, wrapErr("scan interaction row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate interaction rows", err)
	}
	return out, nil
}

// RecentTrackIDsForUser returns the user's recent track IDs in chronological
// order (oldest first). Reserved for sequence-aware rerankers.
func (s *Store) RecentTrackIDsForUser(ctx context.Context, userID string, limit int, kinds []models.EventType) ([]string, error) {
	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT track_id
		FROM interactions
		WHERE external_user_id = $1
		  AND event_type = ANY($2)
		ORDER BY created_at DESC
		LIMIT $3`,
		userID, kindStrs, limit)
	if err != nil {
		return nil, wrapErr("recent track ids", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("scan track id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate track ids", err)
	}

	// Query reads newest-first for the index; callers want oldest-first.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}
