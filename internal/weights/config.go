// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

// Package weights owns the scoring weight configuration: a typed, validated
// view over a JSON resource, cached with a TTL and hot-reloadable without
// a process restart.
package weights

import (
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
)

// Canonical base weight names. The config resource may carry additional
// named weights; these five drive the confidence scorer directly.
const (
	WeightSemantic   = "semantic"
	WeightRating     = "rating"
	WeightPopularity = "popularity"
	WeightRecency    = "recency"
	WeightPreference = "preference"
)

// Boost names recognized by the confidence scorer.
const (
	BoostRecentRelease    = "recent_release"
	BoostTopRated         = "top_rated"
	BoostGenreMatch       = "genre_match"
	BoostPreferredPeople  = "preferred_people"
	BoostSeasonalTrending = "seasonal_trending"
)

// Confidence tier names derived from thresholds. Display only.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// Weights holds the five base signal weights.
// Values need not sum to 1; the scorer clamps its output regardless.
type Weights struct {
	Semantic   float64 `json:"semantic"`
	Rating     float64 `json:"rating"`
	Popularity float64 `json:"popularity"`
	Recency    float64 `json:"recency"`
	Preference float64 `json:"preference"`
}

// Sum returns the total of all base weights.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w Weights) Sum() float64 {
	return w.Semantic + w.Rating + w.Popularity + w.Recency + w.Preference
}

// Normalize returns a copy with weights normalized to sum to 1.0.
// An all-zero input yields equal weights.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w Weights) Normalize() Weights {
	sum := w.Sum()
	if sum == 0 {
		const equalWeight = 1.0 / 5.0
		return Weights{
			Semantic: equalWeight, Rating: equalWeight, Popularity: equalWeight,
			Recency: equalWeight, Preference: equalWeight,
		}
	}
	return Weights{
		Semantic:   w.Semantic / sum,
		Rating:     w.Rating / sum,
		Popularity: w.Popularity / sum,
		Recency:    w.Recency / sum,
		Preference: w.Preference / sum,
	}
}

// ToMap returns the weights as a string-keyed map.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w Weights) ToMap() map[string]float64 {
	return map[string]float64{
		WeightSemantic:   w.Semantic,
		WeightRating:     w.Rating,
		WeightPopularity: w.Popularity,
		WeightRecency:    w.Recency,
		WeightPreference: w.Preference,
	}
}

// FromMap builds Weights from a string-keyed map.
// Missing keys are treated as 0; unknown keys are ignored.
func FromMap(m map[string]float64) Weights {
	return Weights{
		Semantic:   m[WeightSemantic],
		Rating:     m[WeightRating],
		Popularity: m[WeightPopularity],
		Recency:    m[WeightRecency],
		Preference: m[WeightPreference],
	}
}

// Config is the fully-typed weight configuration the scorer operates on.
// Downstream code never touches raw JSON; Parse is the only ingestion point.
type Config struct {
	// Weights are the five base signal weights.
	Weights Weights

	// Boosts maps boost name to additive magnitude in [0,1].
	Boosts map[string]float64

	// Thresholds maps confidence tier to its lower cutoff.
	Thresholds map[string]float64

	// Version is the resource version stamp.
	Version string

	// LastUpdated is when the resource was last written.
	LastUpdated time.Time

	// doc preserves the raw top-level document, including fields this
	// service does not understand. Writes must round-trip them unmodified.
	doc map[string]json.RawMessage
}

// Boost returns the magnitude for a named boost, 0 when absent.
func (c *Config) Boost(name string) float64 {
	return c.Boosts[name]
}

// Tier classifies a confidence score for display. It never alters the score.
func (c *Config) Tier(score float64) string {
	high, ok := c.Thresholds[TierHigh]
	if !ok {
		high = 0.75
	}
	medium, ok := c.Thresholds[TierMedium]
	if !ok {
		medium = 0.5
	}
	switch {
	case score >= high:
		return TierHigh
	case score >= medium:
		return TierMedium
	default:
		return TierLow
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := &Config{
		Weights:     c.Weights,
		Boosts:      make(map[string]float64, len(c.Boosts)),
		Thresholds:  make(map[string]float64, len(c.Thresholds)),
		Version:     c.Version,
		LastUpdated: c.LastUpdated,
		doc:         make(map[string]json.RawMessage, len(c.doc)),
	}
	for k, v := range c.Boosts {
		clone.Boosts[k] = v
	}
	for k, v := range c.Thresholds {
		clone.Thresholds[k] = v
	}
	for k, v := range c.doc {
		clone.doc[k] = v
	}
	return clone
}

// Default returns the hardcoded fallback configuration used whenever the
// resource is missing or malformed.
func Default() *Config {
	cfg := &Config{
		Weights: Weights{
			Semantic:   0.40,
			Rating:     0.25,
			Popularity: 0.15,
			Recency:    0.10,
			Preference: 0.10,
		},
		Boosts: map[string]float64{
			BoostRecentRelease:    0.05,
			BoostTopRated:         0.05,
			BoostGenreMatch:       0.08,
			BoostPreferredPeople:  0.07,
			BoostSeasonalTrending: 0.03,
		},
		Thresholds: map[string]float64{
			TierHigh:   0.75,
			TierMedium: 0.50,
			TierLow:    0.25,
		},
		Version: "0",
	}
	cfg.doc = cfg.buildDocument()
	return cfg
}

// weightEntry is the on-disk shape of a single named weight.
// Auxiliary fields beyond "base" are preserved verbatim.
type weightEntry map[string]json.RawMessage

// Parse validates and types a raw configuration document.
// It is the single ingestion boundary: any shape or range violation is an
// error here so downstream code never sees dynamic data.
func Parse(data []byte) (*Config, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config document: %w", err)
	}

	cfg := &Config{
		Boosts:     map[string]float64{},
		Thresholds: map[string]float64{},
		doc:        doc,
	}

	baseValues, err := parseWeights(doc["weights"])
	if err != nil {
		return nil, err
	}
	cfg.Weights = FromMap(baseValues)

	if raw, ok := doc["boosts"]; ok {
		if cfg.Boosts, err = parseBoundedMap("boosts", raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := doc["thresholds"]; ok {
		if cfg.Thresholds, err = parseBoundedMap("thresholds", raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := doc["version"]; ok {
		if err := json.Unmarshal(raw, &cfg.Version); err != nil {
			return nil, fmt.Errorf("parse version: %w", err)
		}
	}
	if raw, ok := doc["lastUpdated"]; ok {
		var stamp string
		if err := json.Unmarshal(raw, &stamp); err != nil {
			return nil, fmt.Errorf("parse lastUpdated: %w", err)
		}
		if cfg.LastUpdated, err = time.Parse(time.RFC3339, stamp); err != nil {
			return nil, fmt.Errorf("parse lastUpdated: %w", err)
		}
	}

	return cfg, nil
}

// parseWeights extracts base values from the weights object.
func parseWeights(raw json.RawMessage) (map[string]float64, error) {
	if raw == nil {
		return nil, fmt.Errorf("config document has no weights")
	}

	var entries map[string]weightEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}

	base := make(map[string]float64, len(entries))
	for name, entry := range entries {
		rawBase, ok := entry["base"]
		if !ok {
			return nil, fmt.Errorf("weight %q has no base value", name)
		}
		var v float64
		if err := json.Unmarshal(rawBase, &v); err != nil {
			return nil, fmt.Errorf("weight %q base is not a number: %w", name, err)
		}
		if err := checkRange(name, v); err != nil {
			return nil, err
		}
		base[name] = v
	}
	return base, nil
}

// parseBoundedMap parses a flat name->value map and range-checks every value.
func parseBoundedMap(field string, raw json.RawMessage) (map[string]float64, error) {
	var m map[string]float64
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", field, err)
	}
	for name, v := range m {
		if err := checkRange(field+"."+name, v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// checkRange enforces the finite-in-[0,1] invariant for a named value.
func checkRange(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be a finite number, got %v", name, v)
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0,1], got %v", name, v)
	}
	return nil
}

// buildDocument constructs a raw document from the typed fields.
// Used for the default config and for bootstrapping a missing resource.
func (c *Config) buildDocument() map[string]json.RawMessage {
	doc := make(map[string]json.RawMessage, 5)

	entries := make(map[string]map[string]float64, 5)
	for name, v := range c.Weights.ToMap() {
		entries[name] = map[string]float64{"base": v}
	}
	doc["weights"] = mustMarshal(entries)
	doc["boosts"] = mustMarshal(c.Boosts)
	doc["thresholds"] = mustMarshal(c.Thresholds)
	doc["version"] = mustMarshal(c.Version)
	if !c.LastUpdated.IsZero() {
		doc["lastUpdated"] = mustMarshal(c.LastUpdated.Format(time.RFC3339))
	}
	return doc
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal static value: %v", err))
	}
	return data
}
