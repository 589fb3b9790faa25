// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package weights

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Weights
	}{
		{"already normalized", Weights{Semantic: 0.4, Rating: 0.25, Popularity: 0.15, Recency: 0.1, Preference: 0.1}},
		{"unnormalized", Weights{Semantic: 2, Rating: 1, Popularity: 1}},
		{"single weight", Weights{Semantic: 0.3}},
		{"all zero", Weights{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if sum := got.Sum(); math.Abs(sum-1) > 1e-9 {
				t.Errorf("normalized sum = %v, want 1", sum)
			}
		})
	}
}

func TestFromMapMissingKeysAreZero(t *testing.T) {
	w := FromMap(map[string]float64{"semantic": 0.9, "unknown": 0.5})
	if w.Semantic != 0.9 {
		t.Errorf("semantic = %v, want 0.9", w.Semantic)
	}
	if w.Rating != 0 || w.Preference != 0 {
		t.Errorf("missing keys not zero: %+v", w)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "invalid json"},
		{"no weights", `{"boosts": {}}`},
		{"weight without base", `{"weights": {"semantic": {"scale": 1}}}`},
		{"non-numeric base", `{"weights": {"semantic": {"base": "high"}}}`},
		{"out of range base", `{"weights": {"semantic": {"base": 1.5}}}`},
		{"negative boost", `{"weights": {"semantic": {"base": 0.5}}, "boosts": {"genre_match": -1}}`},
		{"bad timestamp", `{"weights": {"semantic": {"base": 0.5}}, "lastUpdated": "yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParseToleratesUnknownFields(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"weights": {"semantic": {"base": 0.5}, "experimental": {"base": 0.2}},
		"future_field": [1, 2, 3]
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Weights.Semantic != 0.5 {
		t.Errorf("semantic = %v, want 0.5", cfg.Weights.Semantic)
	}
}

func TestTierClassification(t *testing.T) {
	cfg := Default()

	tests := []struct {
		score float64
		want  string
	}{
		{0.9, TierHigh},
		{0.75, TierHigh},
		{0.6, TierMedium},
		{0.5, TierMedium},
		{0.2, TierLow},
		{0, TierLow},
	}

	for _, tt := range tests {
		if got := cfg.Tier(tt.score); got != tt.want {
			t.Errorf("Tier(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()

	clone.Boosts[BoostGenreMatch] = 0.99
	if cfg.Boosts[BoostGenreMatch] == 0.99 {
		t.Error("clone shares boost map with original")
	}
}

func TestDefaultSumsToOne(t *testing.T) {
	if sum := Default().Weights.Sum(); math.Abs(sum-1) > 1e-9 {
		t.Errorf("default weights sum = %v, want 1", sum)
	}
}
