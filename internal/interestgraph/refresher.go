// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package interestgraph

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/cadenzalabs/cadenza/internal/events"
	"github.com/cadenzalabs/cadenza/internal/metrics"
)

// Refresher is the best-effort worker that recomputes a user's interest
// graph after each interaction. Failures are logged, never surfaced; each
// refresh runs detached from the triggering request under its own deadline.
type Refresher struct {
	engine  *Engine
	bus     *events.Bus
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRefresher creates the worker.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRefresher(engine *Engine, bus *events.Bus, timeout time.Duration, logger zerolog.Logger) *Refresher {
	return &Refresher{
		engine:  engine,
		bus:     bus,
		timeout: timeout,
		logger:  logger.With().Str("component", "interestgraph-refresher").Logger(),
	}
}

// Serve consumes interaction events until ctx is done. Designed for suture
// supervision: it returns ctx.Err() on shutdown.
func (r *Refresher) Serve(ctx context.Context) error {
	msgs, err := r.bus.SubscribeInteractions(ctx)
	if err != nil {
		return err
	}

	r.logger.Info().Msg("interest graph refresher started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("interest graph refresher stopped")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			r.handle(msg)
		}
	}
}

// handle refreshes the graph for one interaction. The message is acked up
// front: refresh is best-effort and redelivery would not help, while a held
// ack would stall the bus behind a slow refresh.
func (r *Refresher) handle(msg *message.Message) {
	ev, err := events.DecodeInteraction(msg)
	msg.Ack()
	if err != nil {
		r.logger.Warn().Err(err).Msg("undecodable interaction event")
		return
	}

	// Detached deadline: cancelling the triggering request must not cancel
	// the refresh, but the refresh may not run unbounded either.
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	graph, err := r.engine.Refresh(ctx, ev.UserID)
	switch {
	case err != nil:
		metrics.InterestGraphRefreshes.WithLabelValues("error").Inc()
		r.logger.Warn().Err(err).Str("user_id", ev.UserID).Msg("interest graph refresh failed")
	case graph == nil:
		metrics.InterestGraphRefreshes.WithLabelValues("empty").Inc()
	default:
		metrics.InterestGraphRefreshes.WithLabelValues("ok").Inc()
	}
}
