// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// refreshCallTimeout bounds one materialized-view rebuild.
const refreshCallTimeout = 60 * time.Second

// PopularityRefresher periodically rebuilds the popular_tracks aggregate so
// the cold-start path serves current popularity. Designed for suture
// supervision.
type PopularityRefresher struct {
	store    *Store
	interval time.Duration
	logger   zerolog.Logger
}

// NewPopularityRefresher creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPopularityRefresher(store *Store, interval time.Duration, logger zerolog.Logger) *PopularityRefresher {
	return &PopularityRefresher{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("component", "popularity-refresher").Logger(),
	}
}

// Serve refreshes once at start, then on every interval tick, until ctx is
// done. Refresh failures are logged and retried next tick.
func (p *PopularityRefresher) Serve(ctx context.Context) error {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *PopularityRefresher) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, refreshCallTimeout)
	defer cancel()

	start := time.Now()
	if err := p.store.RefreshPopularTracks(refreshCtx); err != nil {
		p.logger.Warn().Err(err).Msg("popularity refresh failed")
		return
	}
	p.logger.Debug().Dur("elapsed", time.Since(start)).Msg("popularity aggregate refreshed")
}
