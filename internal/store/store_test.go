// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cadenzalabs/cadenza/internal/errs"
)

func TestWindowSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{60 * time.Second, 60},
		{time.Minute, 60},
		{24 * time.Hour, 86400},
		{1500 * time.Millisecond, 2},
		{time.Millisecond, 1},
		{0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := windowSeconds(tt.in); got != tt.want {
				t.Errorf("windowSeconds(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestWrapErr(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		if wrapErr("op", nil) != nil {
			t.Error("wrapErr(nil) should be nil")
		}
	})

	t.Run("deadline classifies as timeout", func(t *testing.T) {
		err := wrapErr("query", context.DeadlineExceeded)
		if !errs.IsKind(err, errs.KindTimeout) {
			t.Errorf("kind = %v, want timeout", errs.KindOf(err))
		}
	})

	t.Run("cancellation classifies as timeout", func(t *testing.T) {
		err := wrapErr("query", context.Canceled)
		if !errs.IsKind(err, errs.KindTimeout) {
			t.Errorf("kind = %v, want timeout", errs.KindOf(err))
		}
	})

	t.Run("other errors classify as store", func(t *testing.T) {
		err := wrapErr("query", errors.New("connection refused"))
		if !errs.IsKind(err, errs.KindStore) {
			t.Errorf("kind = %v, want store", errs.KindOf(err))
		}
	})
}
