// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package pipeline

import (
	"strings"

	"github.com/cadenzalabs/cadenza/internal/models"
)

// noContextFingerprint keys requests without a listening context. A missing
// context and an empty one normalize to the same fingerprint.
const noContextFingerprint = "none"

// Fingerprint serializes a normalized context into the deterministic cache
// key segment. Fields render in a fixed order, absent fields are omitted.
func Fingerprint(ctx *models.Context) string {
	if ctx.Empty() {
		return noContextFingerprint
	}

	parts := make([]string, 0, 3)
	if ctx.Mood != "" {
		parts = append(parts, "mood="+string(ctx.Mood))
	}
	if ctx.Activity != "" {
		parts = append(parts, "activity="+string(ctx.Activity))
	}
	if ctx.TimeBucket != "" {
		parts = append(parts, "time="+string(ctx.TimeBucket))
	}
	return strings.Join(parts, "|")
}
