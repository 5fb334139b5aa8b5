// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package models

import "time"

// EventType is the kind of a recorded interaction.
type EventType string

const (
	EventPlay          EventType = "PLAY"
	EventSkip          EventType = "SKIP"
	EventLike          EventType = "LIKE"
	EventDislike       EventType = "DISLIKE"
	EventAddToPlaylist EventType = "ADD_TO_PLAYLIST"
)

// Valid reports whether the event type is one of the known kinds.
func (e EventType) Valid() bool {
	switch e {
	case EventPlay, EventSkip, EventLike, EventDislike, EventAddToPlaylist:
		return true
	}
	return false
}

// Mood is the listener's self-reported mood at interaction time.
type Mood string

const (
	MoodCalm      Mood = "CALM"
	MoodHappy     Mood = "HAPPY"
	MoodSad       Mood = "SAD"
	MoodEnergetic Mood = "ENERGETIC"
)

// Valid reports whether the mood is a known value.
func (m Mood) Valid() bool {
	switch m {
	case MoodCalm, MoodHappy, MoodSad, MoodEnergetic:
		return true
	}
	return false
}

// Activity is what the listener is doing.
type Activity string

const (
	ActivityWork     Activity = "WORK"
	ActivityExercise Activity = "EXERCISE"
	ActivityRelax    Activity = "RELAX"
	ActivityParty    Activity = "PARTY"
)

// Valid reports whether the activity is a known value.
func (a Activity) Valid() bool {
	switch a {
	case ActivityWork, ActivityExercise, ActivityRelax, ActivityParty:
		return true
	}
	return false
}

// TimeBucket is the coarse time-of-day bucket.
type TimeBucket string

const (
	TimeMorning   TimeBucket = "MORNING"
	TimeAfternoon TimeBucket = "AFTERNOON"
	TimeEvening   TimeBucket = "EVENING"
	TimeNight     TimeBucket = "NIGHT"
)

// Valid reports whether the time bucket is a known value.
func (b TimeBucket) Valid() bool {
	switch b {
	case TimeMorning, TimeAfternoon, TimeEvening, TimeNight:
		return true
	}
	return false
}

// Context is the optional listening context attached to interactions and
// recommendation requests. A nil *Context and a zero Context mean the same
// thing everywhere: no context.
type Context struct {
	Mood       Mood       `json:"mood,omitempty"`
	Activity   Activity   `json:"activity,omitempty"`
	TimeBucket TimeBucket `json:"timeBucket,omitempty"`
}

// Empty reports whether no context field is set.
func (c *Context) Empty() bool {
	return c == nil || (c.Mood == "" && c.Activity == "" && c.TimeBucket == "")
}

// Normalize drops unknown enum values and returns nil when nothing remains,
// so a missing context and an empty one are indistinguishable downstream.
func (c *Context) Normalize() *Context {
	if c == nil {
		return nil
	}
	out := Context{}
	if c.Mood.Valid() {
		out.Mood = c.Mood
	}
	if c.Activity.Valid() {
		out.Activity = c.Activity
	}
	if c.TimeBucket.Valid() {
		out.TimeBucket = c.TimeBucket
	}
	if out.Empty() {
		return nil
	}
	return &out
}

// Interaction is one append-only user event against a track. CreatedAt is
// assigned by the store's clock and is the authoritative ordering; ClientTs
// is carried through the API but never used for decisions.
type Interaction struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"externalUserId"`
	TrackID    string     `json:"trackId"`
	EventType  EventType  `json:"eventType"`
	EventValue *int       `json:"eventValue,omitempty"`
	Context    *Context   `json:"context,omitempty"`
	ClientTs   *time.Time `json:"clientTs,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// InteractionStats are all-time per-user event counts, used to detect the
// cold-start branch.
type InteractionStats struct {
	Total     int `json:"total"`
	LikeCount int `json:"likes"`
	SkipCount int `json:"skips"`
	PlayCount int `json:"plays"`
}

// InteractionWithTrack is an interaction row joined to the track metadata
// the interest-graph engine aggregates over.
type InteractionWithTrack struct {
	EventType EventType
	CreatedAt time.Time
	Artist    string
	Genre     string
}
