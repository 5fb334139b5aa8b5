// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package models defines the domain types shared across the service: tracks,
// user profiles, interactions, listening contexts, and the interest-graph
// document. JSON tags follow the wire format consumed by host platforms
// (camelCase), so these types serialize directly in API responses and push
// payloads.
package models
