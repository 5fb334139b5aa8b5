// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/cadenzalabs/cadenza/internal/errs"
)

func TestUserKey(t *testing.T) {
	tests := []struct {
		name        string
		userID      string
		fingerprint string
		want        string
	}{
		{"no context", "u1", "none", "recommendations:u1:none"},
		{"with context", "u2", "activity=EXERCISE", "recommendations:u2:activity=EXERCISE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserKey(tt.userID, tt.fingerprint); got != tt.want {
				t.Errorf("UserKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserPrefixCoversUserKeys(t *testing.T) {
	prefix := UserPrefix("u3")
	key := UserKey("u3", "mood=HAPPY")
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		t.Errorf("key %q should start with prefix %q", key, prefix)
	}

	otherKey := UserKey("u30", "mood=HAPPY")
	if otherKey[:len(prefix)] == prefix {
		t.Errorf("prefix %q must not cover other users' keys (%q)", prefix, otherKey)
	}
}

func TestWrapErrClassification(t *testing.T) {
	if !errs.IsKind(wrapErr("get", context.DeadlineExceeded), errs.KindTimeout) {
		t.Error("deadline should classify as timeout")
	}
	if !errs.IsKind(wrapErr("get", errors.New("broken pipe")), errs.KindStore) {
		t.Error("transport errors should classify as store")
	}
}
