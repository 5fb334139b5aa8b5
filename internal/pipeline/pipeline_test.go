// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/models"
)

// fakeStore implements Store in memory with recorded calls.
type fakeStore struct {
	profile models.UserProfile
	stats   models.InteractionStats

	skipIDs       []string
	annTracks     []models.Track
	popularTracks []models.Track
	skipCount     int

	annLimit      int
	annExclusions []string
	popularLimit  int
	popularGenres []string

	profileErr error
	statsErr   error
	annErr     error
	popularErr error
	countErr   error
}

func (f *fakeStore) FindOrCreateProfile(_ context.Context, _ string) (models.UserProfile, error) {
	return f.profile, f.profileErr
}

func (f *fakeStore) InteractionStats(_ context.Context, _ string) (models.InteractionStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeStore) RecentSkipTrackIDs(_ context.Context, _ string, _ time.Duration, limit int) ([]string, error) {
	if len(f.skipIDs) > limit {
		return f.skipIDs[:limit], nil
	}
	return f.skipIDs, nil
}

func (f *fakeStore) ANNCandidatesByEmbedding(_ context.Context, _ []float32, excludeIDs []string, limit int) ([]models.Track, error) {
	f.annLimit = limit
	f.annExclusions = excludeIDs
	if f.annErr != nil {
		return nil, f.annErr
	}
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	out := []models.Track{}
	for _, t := range f.annTracks {
		if !excluded[t.ID] {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) PopularByGenre(_ context.Context, genres, excludeIDs []string, limit int) ([]models.Track, error) {
	f.popularLimit = limit
	f.popularGenres = genres
	if f.popularErr != nil {
		return nil, f.popularErr
	}
	wanted := make(map[string]bool, len(genres))
	for _, g := range genres {
		wanted[g] = true
	}
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	out := []models.Track{}
	for _, t := range f.popularTracks {
		if wanted[t.Genre] && !excluded[t.ID] {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) PopularGlobal(_ context.Context, limit int) ([]models.Track, error) {
	f.popularLimit = limit
	if f.popularErr != nil {
		return nil, f.popularErr
	}
	out := f.popularTracks
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CountRecentSkips(_ context.Context, _ string, _ time.Duration) (int, error) {
	return f.skipCount, f.countErr
}

// fakeCache implements Cache in memory.
type fakeCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error

	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}

func (f *fakeCache) InvalidateUser(_ context.Context, userID string) error {
	f.invalidated = append(f.invalidated, userID)
	prefix := "recommendations:" + userID + ":"
	for k := range f.entries {
		if strings.HasPrefix(k, prefix) {
			delete(f.entries, k)
		}
	}
	return nil
}

// fakeGraphs implements GraphProvider.
type fakeGraphs struct {
	graph *models.InterestGraph
	err   error
}

func (f *fakeGraphs) GetOrCompute(_ context.Context, _ string) (*models.InterestGraph, error) {
	return f.graph, f.err
}

// fakeTaste implements TasteEngine; onRecompute simulates the in-store
// embedding write the reload observes.
type fakeTaste struct {
	onRecompute func()
	err         error
	calls       int
}

func (f *fakeTaste) Recompute(_ context.Context, _ string) error {
	f.calls++
	if f.onRecompute != nil {
		f.onRecompute()
	}
	return f.err
}

func testRecommendConfig() config.RecommendConfig {
	return config.RecommendConfig{
		DefaultLimit:                 20,
		MaxLimit:                     50,
		MaxSameArtistRun:             3,
		ANNCandidateMultiplier:       3,
		PopularCandidateMultiplier:   2,
		SkipWindow:                   60 * time.Second,
		SkipThreshold:                2,
		SkipExclusionWindow:          24 * time.Hour,
		SkipExclusionLimit:           20,
		AvoidThreshold:               0.6,
		InterestGraphEnabled:         true,
		InterestGraphWindowDays:      90,
		InterestGraphMaxInteractions: 500,
	}
}

func newTestPipeline(fs *fakeStore, fc *fakeCache, fg *fakeGraphs, ft *fakeTaste) *Pipeline {
	if fc == nil {
		fc = newFakeCache()
	}
	if fg == nil {
		fg = &fakeGraphs{}
	}
	if ft == nil {
		ft = &fakeTaste{}
	}
	return New(fs, fc, fg, ft, testRecommendConfig(), zerolog.Nop())
}

func track(id, artist, genre string, energy float64) models.Track {
	return models.Track{
		ID:            id,
		Title:         id,
		Artist:        artist,
		Genre:         genre,
		AudioFeatures: &models.AudioFeatures{Energy: energy, Valence: 0.5, Danceability: 0.5},
	}
}

func embeddedProfile(genres ...string) models.UserProfile {
	return models.UserProfile{
		UserID:           "u1",
		PreferredGenres:  genres,
		ProfileEmbedding: make([]float32, models.EmbeddingDim),
	}
}

func trackIDs(tracks []models.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

func assertOrder(t *testing.T, got []models.Track, want ...string) {
	t.Helper()
	ids := trackIDs(got)
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestColdStartWithPreferredGenres(t *testing.T) {
	// Seed scenario S1: no interactions, preferred genres set.
	fs := &fakeStore{
		profile: models.UserProfile{UserID: "u1", PreferredGenres: []string{"Pop", "Electronic"}},
		popularTracks: []models.Track{
			track("p1", "A", "Pop", 0.5),
			track("p2", "B", "Electronic", 0.5),
			track("p3", "C", "Pop", 0.5),
			track("p4", "D", "Rock", 0.5),
			track("p5", "E", "Electronic", 0.5),
			track("p6", "F", "Pop", 0.5),
		},
	}

	p := newTestPipeline(fs, nil, nil, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}

	if len(resp.Tracks) != 5 {
		t.Fatalf("returned %d tracks, want 5", len(resp.Tracks))
	}
	for _, tr := range resp.Tracks {
		if tr.Genre != "Pop" && tr.Genre != "Electronic" {
			t.Errorf("track %s has genre %s outside preferred set", tr.ID, tr.Genre)
		}
	}
	// Popularity order preserved (fake returns in popularity order).
	assertOrder(t, resp.Tracks, "p1", "p2", "p3", "p5", "p6")
	if fs.popularLimit != 10 {
		t.Errorf("over-fetch = %d, want 2*limit = 10", fs.popularLimit)
	}
}

func TestColdStartWithoutPreferences(t *testing.T) {
	// Seed scenario S2: empty preferences fall back to global popularity.
	fs := &fakeStore{
		profile: models.UserProfile{UserID: "u2"},
		popularTracks: []models.Track{
			track("g1", "A", "Jazz", 0.5),
			track("g2", "B", "Rock", 0.5),
			track("g3", "C", "Pop", 0.5),
		},
	}

	p := newTestPipeline(fs, nil, nil, nil)
	resp, err := p.GetRecommendations(context.Background(), "u2", Request{Limit: 3})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	assertOrder(t, resp.Tracks, "g1", "g2", "g3")
}

func TestContextRerank(t *testing.T) {
	// Seed scenario S4: EXERCISE context orders by energy, stable on ties.
	fs := &fakeStore{
		profile: embeddedProfile(),
		stats:   models.InteractionStats{Total: 10},
		annTracks: []models.Track{
			track("T1", "A1", "Pop", 0.9),
			track("T2", "A2", "Pop", 0.2),
			track("T3", "A3", "Pop", 0.5),
		},
	}

	p := newTestPipeline(fs, nil, nil, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{
		Limit:   3,
		Context: &models.Context{Activity: models.ActivityExercise},
	})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	assertOrder(t, resp.Tracks, "T1", "T3", "T2")
}

func TestRerankStableOnTies(t *testing.T) {
	// Tracks without features score 0 and keep ANN order among themselves.
	bare := func(id string) models.Track {
		return models.Track{ID: id, Artist: id, Genre: "Pop"}
	}
	fs := &fakeStore{
		profile:   embeddedProfile(),
		stats:     models.InteractionStats{Total: 5},
		annTracks: []models.Track{bare("n1"), track("hot", "H", "Pop", 1.0), bare("n2"), bare("n3")},
	}

	p := newTestPipeline(fs, nil, nil, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{
		Limit:   4,
		Context: &models.Context{Mood: models.MoodEnergetic},
	})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	assertOrder(t, resp.Tracks, "hot", "n1", "n2", "n3")
}

func TestArtistDiversityCap(t *testing.T) {
	// Seed scenario S5: A,A,A,A,B with cap 3 yields A,A,A,B.
	fs := &fakeStore{
		profile: embeddedProfile(),
		stats:   models.InteractionStats{Total: 5},
		annTracks: []models.Track{
			track("a1", "A", "Pop", 0.5),
			track("a2", "A", "Pop", 0.5),
			track("a3", "A", "Pop", 0.5),
			track("a4", "A", "Pop", 0.5),
			track("b1", "B", "Pop", 0.5),
		},
	}

	p := newTestPipeline(fs, nil, nil, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	assertOrder(t, resp.Tracks, "a1", "a2", "a3", "b1")

	// Invariant: no run of 4 in any returned list.
	for i := 0; i+3 < len(resp.Tracks); i++ {
		a := resp.Tracks[i].Artist
		if a == resp.Tracks[i+1].Artist && a == resp.Tracks[i+2].Artist && a == resp.Tracks[i+3].Artist {
			t.Errorf("artist run of 4 at index %d", i)
		}
	}
}

func TestDislikedGenreFilter(t *testing.T) {
	// Seed scenario S6: Metal is disliked; the Metal ANN candidate is dropped.
	profile := embeddedProfile("Pop")
	profile.DislikedGenres = []string{"Metal"}
	fs := &fakeStore{
		profile: profile,
		stats:   models.InteractionStats{Total: 5},
		annTracks: []models.Track{
			track("m1", "A", "Metal", 0.5),
			track("p1", "B", "Pop", 0.5),
		},
	}

	p := newTestPipeline(fs, nil, nil, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	assertOrder(t, resp.Tracks, "p1")
}

func TestSkipExclusionSoundness(t *testing.T) {
	fs := &fakeStore{
		profile: embeddedProfile(),
		stats:   models.InteractionStats{Total: 5},
		skipIDs: []string{"skipped1", "skipped2"},
		annTracks: []models.Track{
			track("skipped1", "A", "Pop", 0.5),
			track("fresh", "B", "Pop", 0.5),
		},
	}

	p := newTestPipeline(fs, nil, nil, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	for _, tr := range resp.Tracks {
		if tr.ID == "skipped1" || tr.ID == "skipped2" {
			t.Errorf("recently skipped track %s in personalized response", tr.ID)
		}
	}
	if len(fs.annExclusions) != 2 {
		t.Errorf("exclusions passed to ANN = %v, want both skip IDs", fs.annExclusions)
	}
}

func TestInterestGraphAvoidFilter(t *testing.T) {
	fs := &fakeStore{
		profile: embeddedProfile(),
		stats:   models.InteractionStats{Total: 5},
		annTracks: []models.Track{
			track("hard", "AvoidMe", "Pop", 0.5),
			track("soft", "Borderline", "Pop", 0.5),
			track("keep", "Fine", "Pop", 0.5),
		},
	}
	fg := &fakeGraphs{graph: &models.InterestGraph{
		AvoidArtists: map[string]float64{"AvoidMe": 0.9, "Borderline": 0.59},
	}}

	p := newTestPipeline(fs, nil, fg, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	// 0.9 >= 0.6 dropped; 0.59 < 0.6 kept.
	assertOrder(t, resp.Tracks, "soft", "keep")
}

func TestAvoidFilterAtThresholdBoundary(t *testing.T) {
	fs := &fakeStore{
		profile:   embeddedProfile(),
		stats:     models.InteractionStats{Total: 5},
		annTracks: []models.Track{track("edge", "Edge", "Pop", 0.5)},
	}
	fg := &fakeGraphs{graph: &models.InterestGraph{
		AvoidArtists: map[string]float64{"Edge": 0.6},
	}}

	p := newTestPipeline(fs, nil, fg, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if len(resp.Tracks) != 0 {
		t.Errorf("score exactly at threshold must be dropped, got %v", trackIDs(resp.Tracks))
	}
}

func TestGraphFailureDowngradesToNoBias(t *testing.T) {
	fs := &fakeStore{
		profile:   embeddedProfile(),
		stats:     models.InteractionStats{Total: 5},
		annTracks: []models.Track{track("t1", "A", "Pop", 0.5)},
	}
	fg := &fakeGraphs{err: errors.New("graph store down")}

	p := newTestPipeline(fs, nil, fg, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("graph failure must not fail the request: %v", err)
	}
	assertOrder(t, resp.Tracks, "t1")
}

func TestTasteRecomputeFailureTolerated(t *testing.T) {
	fs := &fakeStore{
		profile:   embeddedProfile(),
		stats:     models.InteractionStats{Total: 5},
		annTracks: []models.Track{track("t1", "A", "Pop", 0.5)},
	}
	ft := &fakeTaste{err: errors.New("recompute failed")}

	p := newTestPipeline(fs, nil, nil, ft)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("recompute failure must not fail the request: %v", err)
	}
	if ft.calls != 1 {
		t.Errorf("recompute calls = %d, want 1", ft.calls)
	}
	if len(resp.Tracks) != 1 {
		t.Errorf("pipeline should continue with existing embedding")
	}
}

func TestPersonalizedFallbackWithoutEmbedding(t *testing.T) {
	// History exists and preferred genres are set, but no embedding: the
	// popularity path runs with the skip exclusions applied.
	fs := &fakeStore{
		profile: models.UserProfile{UserID: "u1", PreferredGenres: []string{"Pop"}},
		stats:   models.InteractionStats{Total: 7},
		skipIDs: []string{"p2"},
		popularTracks: []models.Track{
			track("p1", "A", "Pop", 0.5),
			track("p2", "B", "Pop", 0.5),
		},
	}

	p := newTestPipeline(fs, nil, nil, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	assertOrder(t, resp.Tracks, "p1")
	if fs.popularLimit != 10 {
		t.Errorf("popular over-fetch = %d, want 10", fs.popularLimit)
	}
}

func TestEmptyCandidatesReturnEmptyList(t *testing.T) {
	fs := &fakeStore{
		profile: embeddedProfile(),
		stats:   models.InteractionStats{Total: 5},
	}

	p := newTestPipeline(fs, nil, nil, nil)
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("empty candidate set must not error: %v", err)
	}
	if len(resp.Tracks) != 0 {
		t.Errorf("tracks = %v, want empty", trackIDs(resp.Tracks))
	}
}

func TestLimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, 20},
		{"negative clamps to 1", -5, 1},
		{"above max clamps to max", 100, 50},
		{"in range passes through", 7, 7},
	}

	cfg := testRecommendConfig()
	p := New(&fakeStore{}, newFakeCache(), nil, &fakeTaste{}, cfg, zerolog.Nop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.clampLimit(tt.limit); got != tt.want {
				t.Errorf("clampLimit(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestCacheHitReturnsStoredResponse(t *testing.T) {
	fs := &fakeStore{
		profile:       models.UserProfile{UserID: "u1", PreferredGenres: []string{"Pop"}},
		popularTracks: []models.Track{track("p1", "A", "Pop", 0.5)},
	}
	fc := newFakeCache()
	p := newTestPipeline(fs, fc, nil, nil)

	first, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("first request: %v", err)
	}

	// Mutate the store; a second identical request must not see it.
	fs.popularTracks = []models.Track{track("p9", "Z", "Pop", 0.5)}

	second, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	assertOrder(t, second.Tracks, "p1")
	if !second.GeneratedAt.Equal(first.GeneratedAt) {
		t.Error("cache hit must return the stored response unchanged")
	}
}

func TestCacheCoherenceAfterInvalidate(t *testing.T) {
	// Property 1: populate, invalidate, then the next request misses.
	fs := &fakeStore{
		profile:       models.UserProfile{UserID: "u1", PreferredGenres: []string{"Pop"}},
		popularTracks: []models.Track{track("p1", "A", "Pop", 0.5)},
	}
	fc := newFakeCache()
	p := newTestPipeline(fs, fc, nil, nil)

	if _, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5}); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if len(fc.entries) != 1 {
		t.Fatalf("cache entries = %d, want 1", len(fc.entries))
	}

	if err := p.Invalidate(context.Background(), "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if len(fc.entries) != 0 {
		t.Fatal("user prefix should be empty after invalidate")
	}

	fs.popularTracks = []models.Track{track("p2", "B", "Pop", 0.5)}
	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("post-invalidate request: %v", err)
	}
	assertOrder(t, resp.Tracks, "p2")
}

func TestCacheKeyDistinguishesContexts(t *testing.T) {
	fs := &fakeStore{
		profile:       models.UserProfile{UserID: "u1", PreferredGenres: []string{"Pop"}},
		popularTracks: []models.Track{track("p1", "A", "Pop", 0.5)},
	}
	fc := newFakeCache()
	p := newTestPipeline(fs, fc, nil, nil)

	requests := []Request{
		{Limit: 5},
		{Limit: 5, Context: &models.Context{Mood: models.MoodHappy}},
		{Limit: 5, Context: &models.Context{Activity: models.ActivityParty}},
	}
	for _, req := range requests {
		if _, err := p.GetRecommendations(context.Background(), "u1", req); err != nil {
			t.Fatalf("request: %v", err)
		}
	}
	if len(fc.entries) != 3 {
		t.Errorf("cache entries = %d, want 3 distinct keys", len(fc.entries))
	}
}

func TestUnknownContextSharesKeyWithNoContext(t *testing.T) {
	fs := &fakeStore{
		profile:       models.UserProfile{UserID: "u1", PreferredGenres: []string{"Pop"}},
		popularTracks: []models.Track{track("p1", "A", "Pop", 0.5)},
	}
	fc := newFakeCache()
	p := newTestPipeline(fs, fc, nil, nil)

	if _, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := p.GetRecommendations(context.Background(), "u1", Request{
		Limit:   5,
		Context: &models.Context{Mood: "GRUMPY"},
	}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(fc.entries) != 1 {
		t.Errorf("cache entries = %d, want 1 shared key", len(fc.entries))
	}
}

func TestCacheReadErrorIsAMiss(t *testing.T) {
	fs := &fakeStore{
		profile:       models.UserProfile{UserID: "u1", PreferredGenres: []string{"Pop"}},
		popularTracks: []models.Track{track("p1", "A", "Pop", 0.5)},
	}
	fc := newFakeCache()
	fc.getErr = errors.New("cache down")
	p := newTestPipeline(fs, fc, nil, nil)

	resp, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5})
	if err != nil {
		t.Fatalf("cache failure must not fail the request: %v", err)
	}
	assertOrder(t, resp.Tracks, "p1")
}

func TestCacheWriteErrorDropped(t *testing.T) {
	fs := &fakeStore{
		profile:       models.UserProfile{UserID: "u1", PreferredGenres: []string{"Pop"}},
		popularTracks: []models.Track{track("p1", "A", "Pop", 0.5)},
	}
	fc := newFakeCache()
	fc.setErr = errors.New("cache down")
	p := newTestPipeline(fs, fc, nil, nil)

	if _, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5}); err != nil {
		t.Fatalf("cache write failure must not fail the request: %v", err)
	}
}

func TestStoreErrorSurfaces(t *testing.T) {
	fs := &fakeStore{profileErr: errors.New("store down")}
	p := newTestPipeline(fs, nil, nil, nil)

	if _, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 5}); err == nil {
		t.Error("store failure on the request path must surface")
	}
}

func TestCheckSkipBurst(t *testing.T) {
	t.Run("below threshold", func(t *testing.T) {
		fs := &fakeStore{skipCount: 1}
		fc := newFakeCache()
		p := newTestPipeline(fs, fc, nil, nil)

		triggered, err := p.CheckSkipBurst(context.Background(), "u1")
		if err != nil {
			t.Fatalf("CheckSkipBurst() error = %v", err)
		}
		if triggered {
			t.Error("one skip must not trigger")
		}
		if len(fc.invalidated) != 0 {
			t.Error("cache must stay intact below threshold")
		}
	})

	t.Run("at threshold", func(t *testing.T) {
		fs := &fakeStore{skipCount: 2}
		fc := newFakeCache()
		fc.entries["recommendations:u1:none"] = []byte("{}")
		p := newTestPipeline(fs, fc, nil, nil)

		triggered, err := p.CheckSkipBurst(context.Background(), "u1")
		if err != nil {
			t.Fatalf("CheckSkipBurst() error = %v", err)
		}
		if !triggered {
			t.Error("two skips in the window must trigger")
		}
		if len(fc.entries) != 0 {
			t.Error("user cache prefix should be empty after the burst")
		}
	})

	t.Run("count error surfaces", func(t *testing.T) {
		fs := &fakeStore{countErr: errors.New("store down")}
		p := newTestPipeline(fs, nil, nil, nil)

		if _, err := p.CheckSkipBurst(context.Background(), "u1"); err == nil {
			t.Error("count failure should surface to the caller")
		}
	})
}

func TestANNOverfetchMultiplier(t *testing.T) {
	fs := &fakeStore{
		profile:   embeddedProfile(),
		stats:     models.InteractionStats{Total: 5},
		annTracks: []models.Track{track("t1", "A", "Pop", 0.5)},
	}
	p := newTestPipeline(fs, nil, nil, nil)

	if _, err := p.GetRecommendations(context.Background(), "u1", Request{Limit: 10}); err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if fs.annLimit != 30 {
		t.Errorf("ANN over-fetch = %d, want 3*limit = 30", fs.annLimit)
	}
}
