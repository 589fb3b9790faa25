// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

// Package metrics provides Prometheus instrumentation for the
// recommendation pipeline. Metrics are exposed at /metrics in Prometheus
// text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendationRequests counts recommendation requests by outcome
	// (ok, empty, error).
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	// ScoringDuration tracks end-to-end pipeline latency per request.
	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_scoring_duration_seconds",
			Help:    "End-to-end recommendation pipeline duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// CandidatesScored tracks how many candidates each request scored.
	CandidatesScored = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidates_scored",
			Help:    "Candidates scored per recommendation request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// DegradedAnalyses counts behavior analyses that fell back to empty
	// results.
	DegradedAnalyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "behavior_degraded_analyses_total",
			Help: "Behavior analyses degraded to empty results",
		},
		[]string{"analysis"},
	)

	// WeightCacheLoads counts weight config loads by source
	// (cache, resource, default).
	WeightCacheLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weight_config_loads_total",
			Help: "Weight configuration loads by source",
		},
		[]string{"source"},
	)

	// NoveltyPenalties counts recommendations discounted for recency
	// overlap.
	NoveltyPenalties = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_novelty_penalties_total",
			Help: "Recommendations discounted by the novelty penalty",
		},
	)

	// LearningSignals counts learning signals by action and publish result.
	LearningSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learning_signals_total",
			Help: "Learning signals recorded by action and result",
		},
		[]string{"action", "result"},
	)

	// CatalogBreakerState tracks the movie catalog circuit breaker
	// (0=closed, 1=open, 2=half-open).
	CatalogBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_circuit_breaker_state",
			Help: "Movie catalog circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// APIRequestsTotal counts HTTP requests by method, route and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// APIRequestDuration tracks HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)
