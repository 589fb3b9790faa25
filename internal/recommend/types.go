// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package recommend

import (
	"context"
	"time"

	"github.com/reelsage/reelsage/internal/behavior"
	"github.com/reelsage/reelsage/internal/history"
	"github.com/reelsage/reelsage/internal/weights"
)

// Candidate is a movie under consideration for recommendation. The catalog
// supplies the static fields; the engine attaches the per-request signals
// before scoring.
type Candidate struct {
	// ID is the movie identifier.
	ID int `json:"id"`

	// Title is the movie title.
	Title string `json:"title"`

	// Genres is the genre set.
	Genres []string `json:"genres"`

	// Directors is the director list.
	Directors []string `json:"directors,omitempty"`

	// Actors is the principal cast.
	Actors []string `json:"actors,omitempty"`

	// Rating is the critic rating (0-10).
	Rating float64 `json:"rating"`

	// Popularity is a pre-computed popularity metric in [0,1].
	Popularity float64 `json:"popularity"`

	// Year is the release year.
	Year int `json:"year"`

	// Keywords are free-form theme tags from the catalog.
	Keywords []string `json:"keywords,omitempty"`

	// Per-request derived signals, attached by the engine.

	// SemanticScore is the query/context relevance signal in [0,1].
	SemanticScore float64 `json:"semantic_score"`

	// RecencyScore is the continuous release-recency signal in [0,1].
	RecencyScore float64 `json:"recency_score"`

	// PreferenceScore is the behavior-profile match signal in [0,1].
	PreferenceScore float64 `json:"preference_score"`

	// GenreMatch is set when the candidate matches a requested or
	// profile-loyal genre.
	GenreMatch bool `json:"genre_match"`

	// RecentRelease is set for releases within the recency window.
	RecentRelease bool `json:"recent_release"`

	// PeopleMatch is set when a preferred director or actor appears.
	PeopleMatch bool `json:"people_match"`

	// Trending is set when the catalog flags the movie as seasonally
	// trending.
	Trending bool `json:"trending"`
}

// ScoredRecommendation is a candidate with its confidence score and
// transparency metadata. Created fresh per request, never mutated after
// the pipeline returns it.
type ScoredRecommendation struct {
	// Movie is the scored candidate.
	Movie Candidate `json:"movie"`

	// Confidence is the bounded [0,1] relevance estimate.
	Confidence float64 `json:"confidence_score"`

	// Tier is the display classification (high/medium/low).
	Tier string `json:"tier"`

	// Factors lists the signals and boosts that contributed.
	Factors []string `json:"factors"`

	// Explanation is the human-readable summary.
	Explanation string `json:"explanation"`

	// NoveltyPenalty is set when the score was discounted for overlapping
	// a very recent interaction.
	NoveltyPenalty bool `json:"novelty_penalty,omitempty"`
}

// Options shapes one recommendation request.
type Options struct {
	// Count is the number of recommendations to return.
	Count int `json:"count"`

	// Context carries free-form query keywords (e.g. from a chat turn).
	Context []string `json:"context,omitempty"`

	// ExcludeWatched removes already-seen movies and applies novelty
	// penalties.
	ExcludeWatched bool `json:"exclude_watched"`

	// Factors overrides the stored weight config for this call only.
	// Missing keys are treated as 0. The shared cache is never touched.
	Factors map[string]float64 `json:"factors,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// Criteria is a catalog search query.
type Criteria struct {
	// Genres biases the search toward these genres.
	Genres []string `json:"genres,omitempty"`

	// Keywords matches against title and theme tags.
	Keywords []string `json:"keywords,omitempty"`

	// Limit caps the number of candidates returned.
	Limit int `json:"limit,omitempty"`
}

// Searcher is the movie-data collaborator capability the engine consumes.
type Searcher interface {
	// Search returns candidate movies matching the criteria.
	Search(ctx context.Context, criteria Criteria) ([]Candidate, error)
}

// Analyzer is the behavioral-analysis capability the engine consumes.
type Analyzer interface {
	// AnalyzeCompleteUserBehavior returns the user's behavior profile.
	// Implementations degrade to an empty profile rather than failing.
	AnalyzeCompleteUserBehavior(ctx context.Context, userID int) *behavior.Profile
}

// ConfigSource is the weight-configuration capability the engine consumes.
type ConfigSource interface {
	// Get returns the active weight configuration; never fails.
	Get(ctx context.Context) *weights.Config
}

// SeenReader is the history capability the memory filter consumes.
type SeenReader interface {
	// GetRatings returns the user's explicit ratings.
	GetRatings(ctx context.Context, userID int) ([]history.Rating, error)

	// GetWatchlist returns the user's watchlist entries.
	GetWatchlist(ctx context.Context, userID int) ([]history.WatchlistEntry, error)

	// GetInteractions returns interactions at or after since.
	GetInteractions(ctx context.Context, userID int, since time.Time) ([]history.InteractionRecord, error)
}

// SignalPublisher is the fire-and-forget channel for learning signals.
type SignalPublisher interface {
	// Publish enqueues an interaction record for asynchronous persistence.
	Publish(ctx context.Context, rec history.InteractionRecord) error
}
