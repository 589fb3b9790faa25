// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

// Package movies supplies candidate movies to the recommendation engine.
// Catalog is the in-memory backend; Client wraps any backend with a circuit
// breaker and rate limiter for resilience against a slow or failing source.
package movies

import (
	"context"
	"sort"
	"strings"

	"github.com/reelsage/reelsage/internal/recommend"
)

// Catalog is an in-memory movie catalog implementing recommend.Searcher.
// The movie set is fixed at construction; Search is read-only and safe for
// concurrent use.
type Catalog struct {
	movies []recommend.Candidate
}

// NewCatalog builds a catalog over a fixed movie set.
func NewCatalog(movies []recommend.Candidate) *Catalog {
	owned := make([]recommend.Candidate, len(movies))
	copy(owned, movies)
	return &Catalog{movies: owned}
}

// Search returns candidates matching the criteria.
//
// Keywords filter: when present, a candidate must match at least one keyword
// against its title, genres or theme tags. Genres bias: genre hits raise a
// candidate's rank but do not exclude non-matching candidates, so a user's
// top genres shape the pool without starving exploration. Results are
// ordered by relevance, then popularity, then ID, and capped at
// criteria.Limit.
//
//nolint:gocritic // hugeParam: criteria passed by value for immutability
func (c *Catalog) Search(ctx context.Context, criteria recommend.Criteria) ([]recommend.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type ranked struct {
		candidate recommend.Candidate
		relevance int
	}

	results := make([]ranked, 0, len(c.movies))
	for _, m := range c.movies {
		keywordHits := matchCount(&m, criteria.Keywords)
		if len(criteria.Keywords) > 0 && keywordHits == 0 {
			continue
		}
		results = append(results, ranked{
			candidate: m,
			relevance: keywordHits + genreHits(&m, criteria.Genres),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].relevance != results[j].relevance {
			return results[i].relevance > results[j].relevance
		}
		if results[i].candidate.Popularity != results[j].candidate.Popularity {
			return results[i].candidate.Popularity > results[j].candidate.Popularity
		}
		return results[i].candidate.ID < results[j].candidate.ID
	})

	limit := criteria.Limit
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}

	out := make([]recommend.Candidate, limit)
	for i := 0; i < limit; i++ {
		out[i] = results[i].candidate
	}
	return out, nil
}

// matchCount counts keywords hitting the candidate's title words, genres or
// theme tags, case-insensitively.
func matchCount(m *recommend.Candidate, keywords []string) int {
	if len(keywords) == 0 {
		return 0
	}

	terms := make(map[string]struct{}, len(m.Genres)+len(m.Keywords)+4)
	for _, g := range m.Genres {
		terms[strings.ToLower(g)] = struct{}{}
	}
	for _, k := range m.Keywords {
		terms[strings.ToLower(k)] = struct{}{}
	}
	for _, w := range strings.Fields(strings.ToLower(m.Title)) {
		terms[w] = struct{}{}
	}

	hits := 0
	for _, kw := range keywords {
		if _, ok := terms[strings.ToLower(kw)]; ok {
			hits++
		}
	}
	return hits
}

func genreHits(m *recommend.Candidate, genres []string) int {
	if len(genres) == 0 {
		return 0
	}
	wanted := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		wanted[strings.ToLower(g)] = struct{}{}
	}
	hits := 0
	for _, g := range m.Genres {
		if _, ok := wanted[strings.ToLower(g)]; ok {
			hits++
		}
	}
	return hits
}
