// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package push tracks live push sessions per user and fans
// recommendations:update events out to them. The registry is the only
// in-process shared mutable structure of interest; it is sharded by user-ID
// hash so fan-outs to distinct users never contend.
package push

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/cadenzalabs/cadenza/internal/errs"
	"github.com/cadenzalabs/cadenza/internal/logging"
	"github.com/cadenzalabs/cadenza/internal/metrics"
)

// registryShards must be a power of two.
const registryShards = 32

// Session is one live push connection. The registry holds the only strong
// references to session handles; sessions reference their user by value.
type Session interface {
	// ID is unique per connection and monotonically increasing, used for
	// deterministic fan-out order.
	ID() uint64

	// UserID is the owning external user ID, attached at connect time.
	UserID() string

	// Emit delivers one event to the session, bounded by ctx.
	Emit(ctx context.Context, event string, payload any) error

	// Close tears the connection down. Safe to call more than once.
	Close()
}

// Registry maps userID -> set of sessions, sharded for parallel fan-outs.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	users map[string]map[uint64]Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].users = make(map[string]map[uint64]Session)
	}
	return r
}

func (r *Registry) shard(userID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &r.shards[h.Sum32()&(registryShards-1)]
}

// OnConnect inserts the session into its user's set. A session without a
// user ID is rejected: the handshake must carry the edge-verified identity.
func (r *Registry) OnConnect(s Session) error {
	userID := s.UserID()
	if userID == "" {
		return errs.New(errs.KindUnauthorized, "push connect without user id")
	}

	shard := r.shard(userID)
	shard.mu.Lock()
	set, ok := shard.users[userID]
	if !ok {
		set = make(map[uint64]Session)
		shard.users[userID] = set
	}
	set[s.ID()] = s
	shard.mu.Unlock()

	metrics.PushSessions.Inc()
	logging.Debug().Str("user_id", userID).Uint64("session_id", s.ID()).Msg("push session connected")
	return nil
}

// OnDisconnect removes the session from its user's set, dropping the user
// entry when the set empties. Safe to call twice.
func (r *Registry) OnDisconnect(s Session) {
	userID := s.UserID()
	if userID == "" {
		return
	}

	shard := r.shard(userID)
	shard.mu.Lock()
	set, ok := shard.users[userID]
	removed := false
	if ok {
		if _, present := set[s.ID()]; present {
			delete(set, s.ID())
			removed = true
		}
		if len(set) == 0 {
			delete(shard.users, userID)
		}
	}
	shard.mu.Unlock()

	if removed {
		metrics.PushSessions.Dec()
		logging.Debug().Str("user_id", userID).Uint64("session_id", s.ID()).Msg("push session disconnected")
	}
}

// SessionsFor returns a snapshot of the user's sessions in connect order.
// Emits against the snapshot never hold the shard lock.
func (r *Registry) SessionsFor(userID string) []Session {
	shard := r.shard(userID)
	shard.mu.RLock()
	set := shard.users[userID]
	out := make([]Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	shard.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// SessionCount returns the total number of registered sessions. Eventually
// consistent under concurrent mutation; intended for metrics.
func (r *Registry) SessionCount() int {
	total := 0
	for i := range r.shards {
		r.shards[i].mu.RLock()
		for _, set := range r.shards[i].users {
			total += len(set)
		}
		r.shards[i].mu.RUnlock()
	}
	return total
}

// CloseAll tears down every session, for shutdown.
func (r *Registry) CloseAll() {
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.Lock()
		for _, set := range shard.users {
			for _, s := range set {
				s.Close()
			}
		}
		shard.users = make(map[string]map[uint64]Session)
		shard.mu.Unlock()
	}
	metrics.PushSessions.Set(0)
}
