// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	// CORSOrigins lists allowed origins; empty allows all.
	CORSOrigins []string

	// RateLimitReqs caps requests per client IP per window. 0 disables
	// rate limiting.
	RateLimitReqs int

	// RateLimitWindow is the rate limit window. Defaults to one minute.
	RateLimitWindow time.Duration
}

// NewRouter assembles the full HTTP surface.
//
//nolint:gocritic // hugeParam: opts passed by value for immutability
func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimitReqs, opts.RateLimitWindow))
		}
		r.Use(PrometheusMetrics)

		r.Get("/weights", handler.GetWeights)
		r.Post("/weights", handler.UpdateWeights)
		r.Get("/recommendations/user/{userID}", handler.GetRecommendations)
		r.Post("/signals", handler.PostSignal)
	})

	return r
}
