// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package metrics provides Prometheus instrumentation for the serving
// pipeline, the recommendation cache, the skip-burst detector, and the push
// channel. Collectors are registered with the default registry and exposed
// at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Recommendation pipeline metrics
	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total recommendation pipeline runs by branch",
		},
		[]string{"branch"}, // "cache_hit", "cold_start", "personalized", "popular_fallback"
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.3, 0.5, 1, 2},
		},
		[]string{"branch"},
	)

	PipelineCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidates",
			Help:    "Candidate count entering ranking, after avoid filtering",
			Buckets: []float64{0, 5, 10, 20, 40, 60, 100, 150},
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_hits_total",
			Help: "Recommendation cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_misses_total",
			Help: "Recommendation cache misses, including degraded reads",
		},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_invalidations_total",
			Help: "User-prefix cache invalidations",
		},
	)

	// Skip-burst detection
	SkipBursts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skip_bursts_total",
			Help: "Skip bursts that triggered a refresh push",
		},
	)

	// Interest graph
	InterestGraphRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interest_graph_refreshes_total",
			Help: "Best-effort interest-graph refreshes by outcome",
		},
		[]string{"outcome"}, // "ok", "empty", "error"
	)

	// Push channel
	PushSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_sessions",
			Help: "Currently registered push sessions",
		},
	)

	PushEmits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_emits_total",
			Help: "Per-session emit attempts during fan-out",
		},
		[]string{"outcome"}, // "ok", "dropped"
	)

	PushRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_refreshes_total",
			Help: "Trigger-refresh invocations by reason",
		},
		[]string{"reason"},
	)
)

// ObserveAPIRequest records one completed HTTP request.
func ObserveAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObservePipeline records one pipeline run.
func ObservePipeline(branch string, duration time.Duration) {
	PipelineRequests.WithLabelValues(branch).Inc()
	PipelineDuration.WithLabelValues(branch).Observe(duration.Seconds())
}
