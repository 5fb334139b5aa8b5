// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package events is the in-process event bus between the interaction
// write-path and the background workers. The interaction handler publishes
// and returns; the interest-graph refresher and the push engine consume on
// their own goroutines with their own deadlines, so the HTTP response never
// waits on best-effort work.
//
// The transport is Watermill's gochannel Pub/Sub: in-memory, at-most-once.
// Durable queueing is deliberately out of scope.
package events

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/cadenzalabs/cadenza/internal/models"
)

// Topics.
const (
	// TopicInteractionRecorded fires after every persisted interaction.
	TopicInteractionRecorded = "interaction.recorded"

	// TopicRefreshRequested fires when a user's recommendations should be
	// recomputed and pushed (skip burst, client request).
	TopicRefreshRequested = "recommendations.refresh"
)

// RefreshReason enumerates why a refresh push runs.
type RefreshReason string

const (
	ReasonSkipDetected  RefreshReason = "skip_detected"
	ReasonContextChange RefreshReason = "context_change"
	ReasonManualRefresh RefreshReason = "manual_refresh"
)

// Valid reports whether the reason is a known value.
func (r RefreshReason) Valid() bool {
	switch r {
	case ReasonSkipDetected, ReasonContextChange, ReasonManualRefresh:
		return true
	}
	return false
}

// InteractionRecorded is the payload of TopicInteractionRecorded.
type InteractionRecorded struct {
	UserID     string           `json:"userId"`
	TrackID    string           `json:"trackId"`
	EventType  models.EventType `json:"eventType"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// RefreshRequested is the payload of TopicRefreshRequested.
type RefreshRequested struct {
	UserID string        `json:"userId"`
	Reason RefreshReason `json:"reason"`
}

// Bus wraps the gochannel Pub/Sub.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates the in-process bus.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			newWatermillLogger(logger),
		),
	}
}

// PublishInteraction emits an interaction event. Publishing to a bus with no
// subscribers succeeds and drops the message.
func (b *Bus) PublishInteraction(ev InteractionRecorded) error {
	return b.publish(TopicInteractionRecorded, ev)
}

// PublishRefresh emits a refresh request.
func (b *Bus) PublishRefresh(ev RefreshRequested) error {
	return b.publish(TopicRefreshRequested, ev)
}

func (b *Bus) publish(topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), raw))
}

// SubscribeInteractions returns the interaction event stream. The channel
// closes when ctx is done.
func (b *Bus) SubscribeInteractions(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicInteractionRecorded)
}

// SubscribeRefreshes returns the refresh request stream.
func (b *Bus) SubscribeRefreshes(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicRefreshRequested)
}

// Close shuts the bus down; pending messages are dropped.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// DecodeInteraction unmarshals an interaction event payload.
func DecodeInteraction(msg *message.Message) (InteractionRecorded, error) {
	var ev InteractionRecorded
	err := json.Unmarshal(msg.Payload, &ev)
	return ev, err
}

// DecodeRefresh unmarshals a refresh request payload.
func DecodeRefresh(msg *message.Message) (RefreshRequested, error) {
	var ev RefreshRequested
	err := json.Unmarshal(msg.Payload, &ev)
	return ev, err
}
