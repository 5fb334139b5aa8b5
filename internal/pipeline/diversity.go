// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package pipeline

import "github.com/cadenzalabs/cadenza/internal/models"

// enforceArtistDiversity walks the ranked list and appends each track unless
// it would extend a same-artist run past maxRun. Skipped tracks are
// discarded, not reordered later.
func enforceArtistDiversity(tracks []models.Track, maxRun int) []models.Track {
	if maxRun < 1 || len(tracks) == 0 {
		return tracks
	}

	out := make([]models.Track, 0, len(tracks))
	run := 0
	for _, t := range tracks {
		if len(out) > 0 && out[len(out)-1].Artist == t.Artist {
			if run >= maxRun {
				continue
			}
			run++
		} else {
			run = 1
		}
		out = append(out, t)
	}
	return out
}
