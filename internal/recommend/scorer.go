// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package recommend

import (
	"fmt"
	"math"
	"strings"

	"github.com/reelsage/reelsage/internal/weights"
)

// TopRatedCutoff is the critic rating at or above which the top-rated boost
// triggers.
const TopRatedCutoff = 8.0

// factor pairs a contribution with its display name, for the transparency
// metadata on a recommendation.
type factor struct {
	name  string
	value float64
}

// CalculateConfidence combines a candidate's signals with the weight
// configuration into a bounded confidence score.
//
// The weighted sum of the five base signals is extended with additive boosts
// whose trigger conditions hold, then clamped to [0,1]. The clamp is what
// lets the scorer tolerate weight sets that do not sum to 1. A nil config
// scores 0. Never panics.
func CalculateConfidence(c *Candidate, cfg *weights.Config) float64 {
	score, _ := scoreWithFactors(c, cfg)
	return score
}

// ScoreCandidate scores a candidate and assembles the full recommendation
// with tier, contributing factors and explanation.
func ScoreCandidate(c *Candidate, cfg *weights.Config) ScoredRecommendation {
	score, factors := scoreWithFactors(c, cfg)

	rec := ScoredRecommendation{
		Movie:      *c,
		Confidence: score,
		Factors:    make([]string, 0, len(factors)),
	}
	for _, f := range factors {
		rec.Factors = append(rec.Factors, fmt.Sprintf("%s (%.2f)", f.name, f.value))
	}
	rec.Explanation = buildExplanation(c.Title, factors)
	if cfg != nil {
		rec.Tier = cfg.Tier(score)
	} else {
		rec.Tier = weights.TierLow
	}
	return rec
}

func scoreWithFactors(c *Candidate, cfg *weights.Config) (float64, []factor) {
	var w weights.Weights
	if cfg != nil {
		w = cfg.Weights
	}

	base := []factor{
		{"semantic similarity", sanitize(w.Semantic) * unit(c.SemanticScore)},
		{"critic rating", sanitize(w.Rating) * unit(c.Rating/10)},
		{"popularity", sanitize(w.Popularity) * unit(c.Popularity)},
		{"recency", sanitize(w.Recency) * unit(c.RecencyScore)},
		{"preference match", sanitize(w.Preference) * unit(c.PreferenceScore)},
	}

	score := 0.0
	factors := make([]factor, 0, len(base)+5)
	for _, f := range base {
		score += f.value
		if f.value > 0 {
			factors = append(factors, f)
		}
	}

	if cfg != nil {
		for _, b := range triggeredBoosts(c, cfg) {
			score += b.value
			if b.value > 0 {
				factors = append(factors, b)
			}
		}
	}

	return unit(score), factors
}

// triggeredBoosts returns the additive boosts whose conditions hold.
func triggeredBoosts(c *Candidate, cfg *weights.Config) []factor {
	var boosts []factor
	if c.RecentRelease {
		boosts = append(boosts, factor{"recent release boost", sanitize(cfg.Boost(weights.BoostRecentRelease))})
	}
	if c.Rating >= TopRatedCutoff {
		boosts = append(boosts, factor{"top rated boost", sanitize(cfg.Boost(weights.BoostTopRated))})
	}
	if c.GenreMatch {
		boosts = append(boosts, factor{"genre match boost", sanitize(cfg.Boost(weights.BoostGenreMatch))})
	}
	if c.PeopleMatch {
		boosts = append(boosts, factor{"preferred people boost", sanitize(cfg.Boost(weights.BoostPreferredPeople))})
	}
	if c.Trending {
		boosts = append(boosts, factor{"seasonal trending boost", sanitize(cfg.Boost(weights.BoostSeasonalTrending))})
	}
	return boosts
}

// buildExplanation names the strongest contributing factors.
func buildExplanation(title string, factors []factor) string {
	if len(factors) == 0 {
		return fmt.Sprintf("%s: no positive signals", title)
	}

	// Factors arrive base-signals-first; pick the strongest two overall.
	strongest := factors[0]
	var second factor
	for _, f := range factors[1:] {
		switch {
		case f.value > strongest.value:
			second = strongest
			strongest = f
		case f.value > second.value:
			second = f
		}
	}

	parts := []string{strongest.name}
	if second.name != "" {
		parts = append(parts, second.name)
	}
	return fmt.Sprintf("%s: driven by %s", title, strings.Join(parts, " and "))
}

// unit clamps to [0,1], mapping NaN to 0.
func unit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// sanitize maps NaN and infinities to 0 so malformed weight values cannot
// poison the sum.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
