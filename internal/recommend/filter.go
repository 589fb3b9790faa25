// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package recommend

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Novelty penalty policy. A recommendation whose genre/theme signature
// overlaps a very recent interaction by at least noveltyOverlap gets its
// confidence multiplied by noveltyDiscount. Values chosen here rather than
// inferred; see DESIGN.md.
const (
	noveltyWindow   = 48 * time.Hour
	noveltyOverlap  = 0.5
	noveltyDiscount = 0.7
)

// Filter removes already-seen movies and discounts near-duplicates of very
// recent interactions. Both operations fail open: an internal error returns
// the input unchanged with a logged warning, never an error.
type Filter struct {
	reader SeenReader
	logger zerolog.Logger
	now    func() time.Time
}

// NewFilter creates a memory filter over a history reader.
// A nil clock defaults to time.Now.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewFilter(reader SeenReader, clock func() time.Time, logger zerolog.Logger) *Filter {
	if clock == nil {
		clock = time.Now
	}
	return &Filter{
		reader: reader,
		logger: logger.With().Str("component", "memory-filter").Logger(),
		now:    clock,
	}
}

// FilterUnseen removes candidates the user has rated or watched off their
// watchlist. Order-preserving; the input slice is not mutated. Idempotent:
// filtering an already-filtered list returns the same list.
func (f *Filter) FilterUnseen(ctx context.Context, userID int, candidates []Candidate) []Candidate {
	seen, err := f.seenSet(ctx, userID)
	if err != nil {
		f.logger.Warn().Err(err).Int("user_id", userID).Msg("seen-set lookup failed, passing candidates through")
		return candidates
	}

	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.ID]; !ok {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// seenSet collects the user's rated and watched movie IDs.
func (f *Filter) seenSet(ctx context.Context, userID int) (map[int]struct{}, error) {
	ratings, err := f.reader.GetRatings(ctx, userID)
	if err != nil {
		return nil, err
	}
	watchlist, err := f.reader.GetWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(ratings)+len(watchlist))
	for _, r := range ratings {
		seen[r.MovieID] = struct{}{}
	}
	for i := range watchlist {
		if watchlist[i].Watched() {
			seen[watchlist[i].MovieID] = struct{}{}
		}
	}
	return seen, nil
}

// ApplyNoveltyPenalties discounts recommendations whose genre/theme
// signature closely overlaps an interaction inside the novelty window, so
// the engine does not recommend five near-identical titles right after the
// user watched one. Returns a new slice; the input is not mutated.
func (f *Filter) ApplyNoveltyPenalties(ctx context.Context, userID int, recs []ScoredRecommendation) []ScoredRecommendation {
	recent, err := f.reader.GetInteractions(ctx, userID, f.now().Add(-noveltyWindow))
	if err != nil {
		f.logger.Warn().Err(err).Int("user_id", userID).Msg("recent-interaction lookup failed, skipping novelty penalties")
		return recs
	}
	if len(recent) == 0 {
		return recs
	}

	signatures := make([]map[string]struct{}, 0, len(recent))
	for _, rec := range recent {
		if len(rec.Context) > 0 {
			signatures = append(signatures, tagSet(rec.Context))
		}
	}
	if len(signatures) == 0 {
		return recs
	}

	out := make([]ScoredRecommendation, len(recs))
	copy(out, recs)
	for i := range out {
		candidate := make(map[string]struct{}, len(out[i].Movie.Genres)+len(out[i].Movie.Keywords))
		for _, g := range out[i].Movie.Genres {
			candidate[g] = struct{}{}
		}
		for _, k := range out[i].Movie.Keywords {
			candidate[k] = struct{}{}
		}
		for _, sig := range signatures {
			if jaccard(candidate, sig) >= noveltyOverlap {
				out[i].Confidence *= noveltyDiscount
				out[i].NoveltyPenalty = true
				break
			}
		}
	}
	return out
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|; 0 when either set is empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
