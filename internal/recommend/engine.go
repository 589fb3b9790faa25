// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelsage/reelsage/internal/behavior"
	"github.com/reelsage/reelsage/internal/history"
	"github.com/reelsage/reelsage/internal/metrics"
	"github.com/reelsage/reelsage/internal/weights"
)

// ErrUnavailable marks a catalog failure the engine treats as temporary.
// Search implementations wrap it when their circuit breaker is open or the
// backend is throttling; the engine degrades to an empty result set instead
// of failing the request.
var ErrUnavailable = errors.New("movie catalog unavailable")

// Request shaping limits.
const (
	// DefaultCount is the result count when the request does not specify one.
	DefaultCount = 10

	// MaxCount caps the result count per request.
	MaxCount = 50

	// candidateMultiplier oversizes the catalog fetch relative to the
	// requested count so filtering still leaves enough to rank.
	candidateMultiplier = 5
)

// Signal attachment policy.
const (
	// recentReleaseYears is the age at or below which the recent-release
	// boost triggers.
	recentReleaseYears = 2

	// recencyHorizonYears is the age at which the continuous recency signal
	// reaches 0.
	recencyHorizonYears = 10

	// preferredPersonCutoff is the average rating at or above which a
	// director counts as preferred.
	preferredPersonCutoff = 4.0

	// topGenreCount is how many profile genres bias the catalog search.
	topGenreCount = 3
)

// Engine coordinates the recommendation pipeline: candidate retrieval,
// behavior analysis, signal attachment, scoring, memory filtering, ranking.
// It owns no cross-request state and is safe for concurrent use.
type Engine struct {
	searcher  Searcher
	analyzer  Analyzer
	config    ConfigSource
	filter    *Filter
	publisher SignalPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEngine wires the pipeline collaborators. A nil clock defaults to
// time.Now; a nil publisher disables learning signals.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(searcher Searcher, analyzer Analyzer, config ConfigSource, filter *Filter, publisher SignalPublisher, clock func() time.Time, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		searcher:  searcher,
		analyzer:  analyzer,
		config:    config,
		filter:    filter,
		publisher: publisher,
		logger:    logger.With().Str("component", "engine").Logger(),
		now:       clock,
	}
}

// GenerateRecommendations runs the full pipeline for one user.
//
// Collaborator failures short of a hard catalog error degrade silently: the
// behavior profile falls back to empty, the memory filter passes candidates
// through, and an open circuit yields an empty result set. The returned
// slice is never nil on a nil error.
//
//nolint:gocritic // hugeParam: opts passed by value for immutability
func (e *Engine) GenerateRecommendations(ctx context.Context, userID int, opts Options) ([]ScoredRecommendation, error) {
	start := e.now()
	opts = prepareOptions(opts)

	logger := e.logger.With().
		Str("request_id", opts.RequestID).
		Int("user_id", userID).
		Logger()
	logger.Debug().Int("count", opts.Count).Msg("processing recommendation request")

	profile := e.analyzer.AnalyzeCompleteUserBehavior(ctx, userID)

	candidates, err := e.searcher.Search(ctx, Criteria{
		Genres:   profile.TopGenres(topGenreCount),
		Keywords: opts.Context,
		Limit:    opts.Count * candidateMultiplier,
	})
	switch {
	case errors.Is(err, ErrUnavailable):
		logger.Warn().Err(err).Msg("catalog unavailable, returning empty result set")
		metrics.RecommendationRequests.WithLabelValues("degraded").Inc()
		return []ScoredRecommendation{}, nil
	case err != nil:
		metrics.RecommendationRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search candidates: %w", err)
	}

	if opts.ExcludeWatched {
		candidates = e.filter.FilterUnseen(ctx, userID, candidates)
	}
	if len(candidates) == 0 {
		logger.Debug().Msg("no candidates available")
		metrics.RecommendationRequests.WithLabelValues("empty").Inc()
		return []ScoredRecommendation{}, nil
	}

	cfg := e.activeConfig(ctx, opts)

	recs := make([]ScoredRecommendation, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		e.attachSignals(&c, profile, opts.Context)
		recs = append(recs, ScoreCandidate(&c, cfg))
	}
	metrics.CandidatesScored.Observe(float64(len(recs)))

	if opts.ExcludeWatched {
		recs = e.filter.ApplyNoveltyPenalties(ctx, userID, recs)
		for i := range recs {
			if recs[i].NoveltyPenalty {
				recs[i].Tier = cfg.Tier(recs[i].Confidence)
				metrics.NoveltyPenalties.Inc()
			}
		}
	}

	sortRecommendations(recs)
	if len(recs) > opts.Count {
		recs = recs[:opts.Count]
	}

	metrics.RecommendationRequests.WithLabelValues("ok").Inc()
	metrics.ScoringDuration.Observe(e.now().Sub(start).Seconds())
	logger.Debug().
		Int("candidates", len(candidates)).
		Int("returned", len(recs)).
		Msg("recommendation complete")

	return recs, nil
}

// RecordLearningSignal appends an interaction record for future behavior
// analyses. Fire-and-forget: failures are logged and counted, never surfaced.
func (e *Engine) RecordLearningSignal(ctx context.Context, userID, movieID int, action history.Action, value float64, tags []string) {
	if e.publisher == nil {
		return
	}
	if !action.Valid() {
		e.logger.Warn().
			Str("action", string(action)).
			Int("user_id", userID).
			Msg("dropping learning signal with unknown action")
		metrics.LearningSignals.WithLabelValues(string(action), "invalid").Inc()
		return
	}

	rec := history.InteractionRecord{
		UserID:    userID,
		MovieID:   movieID,
		Action:    action,
		Value:     value,
		Context:   tags,
		Timestamp: e.now(),
	}
	if err := e.publisher.Publish(ctx, rec); err != nil {
		e.logger.Error().Err(err).
			Str("action", string(action)).
			Int("user_id", userID).
			Int("movie_id", movieID).
			Msg("failed to publish learning signal")
		metrics.LearningSignals.WithLabelValues(string(action), "error").Inc()
		return
	}
	metrics.LearningSignals.WithLabelValues(string(action), "ok").Inc()
}

// prepareOptions applies count defaults and a request ID.
//
//nolint:gocritic // hugeParam: opts passed by value for immutability
func prepareOptions(opts Options) Options {
	if opts.Count <= 0 {
		opts.Count = DefaultCount
	}
	if opts.Count > MaxCount {
		opts.Count = MaxCount
	}
	if opts.RequestID == "" {
		opts.RequestID = uuid.NewString()
	}
	return opts
}

// activeConfig resolves the weight configuration for this request. A factor
// override clones the stored config so the shared cache is never touched;
// missing keys in the override are treated as 0.
//
//nolint:gocritic // hugeParam: opts passed by value for immutability
func (e *Engine) activeConfig(ctx context.Context, opts Options) *weights.Config {
	cfg := e.config.Get(ctx)
	if len(opts.Factors) == 0 {
		return cfg
	}
	override := cfg.Clone()
	override.Weights = weights.FromMap(opts.Factors)
	return override
}

// attachSignals derives the per-request scoring signals on a candidate from
// the query context and the user's behavior profile.
func (e *Engine) attachSignals(c *Candidate, profile *behavior.Profile, queryTags []string) {
	c.SemanticScore = semanticSimilarity(c, queryTags)
	c.RecencyScore, c.RecentRelease = recencySignals(c.Year, e.now().Year())
	c.PreferenceScore = preferenceScore(c, profile)
	c.GenreMatch = genreMatch(c, profile, queryTags)
	c.PeopleMatch = peopleMatch(c, profile)
}

// semanticSimilarity measures how much of the query context a candidate
// covers: the fraction of query tags found among its title words, genres and
// keywords. No context yields a neutral 0.5 so scoring still differentiates
// on the other signals.
func semanticSimilarity(c *Candidate, queryTags []string) float64 {
	if len(queryTags) == 0 {
		return 0.5
	}

	terms := make(map[string]struct{}, len(c.Genres)+len(c.Keywords)+4)
	for _, g := range c.Genres {
		terms[strings.ToLower(g)] = struct{}{}
	}
	for _, k := range c.Keywords {
		terms[strings.ToLower(k)] = struct{}{}
	}
	for _, w := range strings.Fields(strings.ToLower(c.Title)) {
		terms[w] = struct{}{}
	}

	matched := 0
	for _, tag := range queryTags {
		if _, ok := terms[strings.ToLower(tag)]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTags))
}

// recencySignals returns the continuous recency score (1 for a current-year
// release, decaying linearly to 0 at the horizon) and the recent-release
// boost flag.
func recencySignals(year, nowYear int) (float64, bool) {
	age := nowYear - year
	if age < 0 {
		age = 0
	}

	score := 1 - float64(age)/recencyHorizonYears
	if score < 0 {
		score = 0
	}
	return score, age <= recentReleaseYears
}

// preferenceScore averages the user's loyalty over the candidate's genres.
// A user with no loyalty data scores every candidate 0.
func preferenceScore(c *Candidate, profile *behavior.Profile) float64 {
	loyalty := profile.Insights.GenreLoyalty
	if len(c.Genres) == 0 || len(loyalty) == 0 {
		return 0
	}
	sum := 0.0
	for _, g := range c.Genres {
		sum += loyalty[g]
	}
	return sum / float64(len(c.Genres))
}

// genreMatch reports whether the candidate hits a requested tag or one of
// the user's top genres.
func genreMatch(c *Candidate, profile *behavior.Profile, queryTags []string) bool {
	wanted := make(map[string]struct{}, len(queryTags)+topGenreCount)
	for _, t := range queryTags {
		wanted[strings.ToLower(t)] = struct{}{}
	}
	for _, g := range profile.TopGenres(topGenreCount) {
		wanted[strings.ToLower(g)] = struct{}{}
	}

	for _, g := range c.Genres {
		if _, ok := wanted[strings.ToLower(g)]; ok {
			return true
		}
	}
	return false
}

// peopleMatch reports whether a candidate director is one the user rates
// highly.
func peopleMatch(c *Candidate, profile *behavior.Profile) bool {
	averages := profile.Ratings.DirectorAverages
	for _, d := range c.Directors {
		if averages[d] >= preferredPersonCutoff {
			return true
		}
	}
	return false
}

// sortRecommendations orders by confidence descending, then raw rating
// descending, then movie ID ascending. The ID tiebreak makes the order
// deterministic.
func sortRecommendations(recs []ScoredRecommendation) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		if recs[i].Movie.Rating != recs[j].Movie.Rating {
			return recs[i].Movie.Rating > recs[j].Movie.Rating
		}
		return recs[i].Movie.ID < recs[j].Movie.ID
	})
}
