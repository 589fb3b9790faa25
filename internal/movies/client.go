// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package movies

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/reelsage/reelsage/internal/metrics"
	"github.com/reelsage/reelsage/internal/recommend"
)

// ClientOptions tunes the resilience wrapper.
type ClientOptions struct {
	// RequestsPerSecond throttles catalog searches. 0 disables throttling.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Defaults to 10.
	Burst int

	// BreakerTimeout is how long the breaker stays open before probing.
	// Defaults to 30 seconds.
	BreakerTimeout time.Duration
}

// Client wraps a Searcher backend with a circuit breaker and a rate limiter.
// A rejected or rejected-by-breaker call returns an error wrapping
// recommend.ErrUnavailable, which the engine treats as a degraded-but-alive
// catalog rather than a hard failure.
type Client struct {
	backend recommend.Searcher
	breaker *gobreaker.CircuitBreaker[[]recommend.Candidate]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient wraps a backend with breaker and limiter per opts.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewClient(backend recommend.Searcher, opts ClientOptions, logger zerolog.Logger) *Client {
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	componentLogger := logger.With().Str("component", "movie-catalog").Logger()

	breaker := gobreaker.NewCircuitBreaker[[]recommend.Candidate](gobreaker.Settings{
		Name:        "movie-catalog",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			componentLogger.Warn().
				Str("breaker", name).
				Str("from", stateName(from)).
				Str("to", stateName(to)).
				Msg("circuit breaker state change")
			metrics.CatalogBreakerState.Set(stateValue(to))
		},
	})

	return &Client{
		backend: backend,
		breaker: breaker,
		limiter: rate.NewLimiter(limit, opts.Burst),
		logger:  componentLogger,
	}
}

// Search implements recommend.Searcher with breaker and limiter applied.
//
//nolint:gocritic // hugeParam: criteria passed by value for immutability
func (c *Client) Search(ctx context.Context, criteria recommend.Criteria) ([]recommend.Candidate, error) {
	if !c.limiter.Allow() {
		return nil, fmt.Errorf("catalog rate limit exceeded: %w", recommend.ErrUnavailable)
	}

	candidates, err := c.breaker.Execute(func() ([]recommend.Candidate, error) {
		return c.backend.Search(ctx, criteria)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("catalog circuit breaker rejected request: %w", recommend.ErrUnavailable)
		}
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	return candidates, nil
}

func stateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}
