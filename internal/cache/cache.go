// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package cache provides the recommendation cache on a Redis-compatible
// key-value store. All keys live under the per-user prefix
// "recommendations:{userID}:", which is also the invalidation granularity.
//
// Calls run through a circuit breaker so a struggling cache degrades to
// misses quickly instead of adding latency to every request; the pipeline
// treats every error here as a miss (reads) or drops it (writes).
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/errs"
	"github.com/cadenzalabs/cadenza/internal/logging"
)

// keyPrefix is the namespace all recommendation cache keys share.
const keyPrefix = "recommendations:"

// scanBatch bounds one SCAN page during prefix invalidation.
const scanBatch = 100

// Cache is the Redis-backed recommendation cache.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// New connects the Redis client and verifies connectivity.
func New(ctx context.Context, cfg config.CacheConfig) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "parse cache url", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errs.Wrap(errs.KindStore, "connect cache", err)
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "recommendation-cache",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache breaker state change")
		},
	})

	logging.Info().Dur("ttl", cfg.TTL).Msg("cache connected")
	return &Cache{client: client, ttl: cfg.TTL, breaker: breaker}, nil
}

// UserKey builds a cache key under the user's prefix from a context
// fingerprint.
func UserKey(userID, fingerprint string) string {
	return keyPrefix + userID + ":" + fingerprint
}

// UserPrefix returns the invalidation prefix for a user.
func UserPrefix(userID string) string {
	return keyPrefix + userID + ":"
}

// Get returns the cached value and whether it was present. A missing key is
// (nil, false, nil); any transport failure is an error the caller treats as
// a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.breaker.Execute(func() ([]byte, error) {
		return c.client.Get(ctx, key).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapErr("cache get", err)
	}
	return val, true, nil
}

// Set stores the value under the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	_, err := c.breaker.Execute(func() ([]byte, error) {
		return nil, c.client.SetEx(ctx, key, value, c.ttl).Err()
	})
	if err != nil {
		return wrapErr("cache set", err)
	}
	return nil
}

// InvalidateUser deletes every key under the user's prefix. A delete that
// completes before a subsequent Get guarantees that Get misses.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	pattern := UserPrefix(userID) + "*"

	_, err := c.breaker.Execute(func() ([]byte, error) {
		var cursor uint64
		for {
			keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
			if err != nil {
				return nil, err
			}
			if len(keys) > 0 {
				if err := c.client.Del(ctx, keys...).Err(); err != nil {
					return nil, err
				}
			}
			if next == 0 {
				return nil, nil
			}
			cursor = next
		}
	})
	if err != nil {
		return wrapErr("cache invalidate", err)
	}
	return nil
}

// Ping verifies connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return wrapErr("cache ping", err)
	}
	return nil
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// wrapErr classifies cache transport failures.
func wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindTimeout, op, err)
	}
	return errs.Wrap(errs.KindStore, op, err)
}
