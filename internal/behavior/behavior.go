// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

// Package behavior derives a user intelligence profile from raw interaction
// history: rating patterns, watchlist completion behavior and temporal
// viewing affinity.
//
// Every analysis fails open. A collaborator error degrades that analysis to
// its typed empty result with a logged warning; callers never see an error
// and never see nil maps.
package behavior

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/reelsage/reelsage/internal/history"
	"github.com/reelsage/reelsage/internal/metrics"
)

// Analysis windows. Fixed policy, not user configuration.
const (
	// impulseWindow marks a watchlist item watched this soon after being
	// added as an impulse watch.
	impulseWindow = 48 * time.Hour

	// velocityWindow is the trailing window for recent viewing velocity.
	velocityWindow = 14 * 24 * time.Hour
)

// RatingPatterns summarizes a user's explicit ratings.
type RatingPatterns struct {
	// Distribution counts ratings per star tier (keys 1-5).
	Distribution map[int]int `json:"distribution"`

	// GenreAverages is the mean rating per genre.
	GenreAverages map[string]float64 `json:"genre_averages"`

	// DirectorAverages is the mean rating per director.
	DirectorAverages map[string]float64 `json:"director_averages"`

	// GenreRatings holds the raw rating values per genre, for variance
	// analysis in GenerateIntelligenceInsights.
	GenreRatings map[string][]float64 `json:"-"`

	// AverageRating is the overall mean; 0 with no ratings.
	AverageRating float64 `json:"average_rating"`

	// TotalRatings is the rating count.
	TotalRatings int `json:"total_ratings"`
}

// WatchlistPatterns summarizes watchlist completion behavior.
type WatchlistPatterns struct {
	Total     int `json:"total"`
	Watched   int `json:"watched"`
	Abandoned int `json:"abandoned"`
	Pending   int `json:"pending"`

	// CompletionRate is round(100 * watched / total); 0 when total is 0.
	CompletionRate int `json:"completion_rate"`

	// ImpulseWatches counts items watched within impulseWindow of being added.
	ImpulseWatches int `json:"impulse_watches"`
}

// TemporalPatterns summarizes when the user watches what.
type TemporalPatterns struct {
	// WeekendGenres counts watched genres on Saturday/Sunday.
	WeekendGenres map[string]int `json:"weekend_genres"`

	// WeekdayGenres counts watched genres Monday-Friday.
	WeekdayGenres map[string]int `json:"weekday_genres"`

	// RecentVelocity is the watch count inside the trailing velocity window.
	RecentVelocity int `json:"recent_velocity"`
}

// Insights is the derived intelligence layer over the three raw analyses.
type Insights struct {
	// TasteConsistency is in [0,1]; higher when per-genre rating variance
	// is low.
	TasteConsistency float64 `json:"taste_consistency"`

	// ExplorationRatio is the share of distinct genres per rating; higher
	// means the user samples widely rather than staying in comfort genres.
	ExplorationRatio float64 `json:"exploration_ratio"`

	// QualityThreshold is the star rating below which the user rarely
	// engages.
	QualityThreshold float64 `json:"quality_threshold"`

	// GenreLoyalty scores each genre in [0,1] by rating level and volume.
	GenreLoyalty map[string]float64 `json:"genre_loyalty"`
}

// Profile bundles all analyses for one user. It is ephemeral: recomputed per
// analysis call (modulo a short-lived cache) and never persisted.
type Profile struct {
	Ratings   RatingPatterns    `json:"rating_patterns"`
	Watchlist WatchlistPatterns `json:"watchlist_patterns"`
	Temporal  TemporalPatterns  `json:"temporal_patterns"`
	Insights  Insights          `json:"insights"`
}

// TopGenres returns up to n genres ranked by loyalty, ties broken by name
// for determinism.
func (p *Profile) TopGenres(n int) []string {
	type genreScore struct {
		genre string
		score float64
	}
	ranked := make([]genreScore, 0, len(p.Insights.GenreLoyalty))
	for g, s := range p.Insights.GenreLoyalty {
		ranked = append(ranked, genreScore{g, s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].genre < ranked[j].genre
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	genres := make([]string, n)
	for i := 0; i < n; i++ {
		genres[i] = ranked[i].genre
	}
	return genres
}

func emptyRatingPatterns() RatingPatterns {
	return RatingPatterns{
		Distribution:     map[int]int{},
		GenreAverages:    map[string]float64{},
		DirectorAverages: map[string]float64{},
		GenreRatings:     map[string][]float64{},
	}
}

func emptyWatchlistPatterns() WatchlistPatterns {
	return WatchlistPatterns{}
}

func emptyTemporalPatterns() TemporalPatterns {
	return TemporalPatterns{
		WeekendGenres: map[string]int{},
		WeekdayGenres: map[string]int{},
	}
}

// Options configures an Analyzer.
type Options struct {
	// Clock overrides time.Now for tests.
	Clock func() time.Time

	// ProfileCacheTTL bounds how long a complete profile is reused.
	// Default 2 minutes; zero disables caching.
	ProfileCacheTTL time.Duration

	// ProfileCacheSize is the maximum cached profiles. Default 1024.
	ProfileCacheSize int
}

// Analyzer computes behavior profiles from the interaction history store.
// It is safe for concurrent use.
type Analyzer struct {
	reader history.Reader
	logger zerolog.Logger
	now    func() time.Time

	// cache holds recently computed complete profiles so request bursts
	// for one user reuse the analysis.
	cache *expirable.LRU[int, *Profile]
}

// NewAnalyzer creates a behavioral analyzer over a history reader.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAnalyzer(reader history.Reader, opts Options, logger zerolog.Logger) *Analyzer {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ProfileCacheSize <= 0 {
		opts.ProfileCacheSize = 1024
	}

	var cache *expirable.LRU[int, *Profile]
	if opts.ProfileCacheTTL > 0 {
		cache = expirable.NewLRU[int, *Profile](opts.ProfileCacheSize, nil, opts.ProfileCacheTTL)
	}

	return &Analyzer{
		reader: reader,
		logger: logger.With().Str("component", "behavior").Logger(),
		now:    opts.Clock,
		cache:  cache,
	}
}

// degraded logs a collaborator failure and returns the analysis's typed
// empty result. Single place where the fail-open contract lives.
func degraded[T any](logger *zerolog.Logger, analysis string, err error, empty T) T {
	logger.Warn().Err(err).Str("analysis", analysis).Msg("analysis degraded to empty result")
	metrics.DegradedAnalyses.WithLabelValues(analysis).Inc()
	return empty
}

// AnalyzeRatingPatterns buckets historical ratings into star tiers and
// computes per-genre and per-director averages.
func (a *Analyzer) AnalyzeRatingPatterns(ctx context.Context, userID int) RatingPatterns {
	ratings, err := a.reader.GetRatings(ctx, userID)
	if err != nil {
		return degraded(&a.logger, "rating_patterns", err, emptyRatingPatterns())
	}

	patterns := emptyRatingPatterns()
	genreSums := map[string]float64{}
	genreCounts := map[string]int{}
	directorSums := map[string]float64{}
	directorCounts := map[string]int{}
	total := 0.0

	for _, r := range ratings {
		star := int(math.Round(r.Value))
		if star < 1 {
			star = 1
		}
		if star > 5 {
			star = 5
		}
		patterns.Distribution[star]++
		total += r.Value

		for _, g := range r.Genres {
			genreSums[g] += r.Value
			genreCounts[g]++
			patterns.GenreRatings[g] = append(patterns.GenreRatings[g], r.Value)
		}
		for _, d := range r.Directors {
			directorSums[d] += r.Value
			directorCounts[d]++
		}
	}

	patterns.TotalRatings = len(ratings)
	if len(ratings) > 0 {
		patterns.AverageRating = total / float64(len(ratings))
	}
	for g, sum := range genreSums {
		patterns.GenreAverages[g] = sum / float64(genreCounts[g])
	}
	for d, sum := range directorSums {
		patterns.DirectorAverages[d] = sum / float64(directorCounts[d])
	}
	return patterns
}

// AnalyzeWatchlistBehavior partitions watchlist entries and computes the
// completion rate and impulse-watch count.
func (a *Analyzer) AnalyzeWatchlistBehavior(ctx context.Context, userID int) WatchlistPatterns {
	entries, err := a.reader.GetWatchlist(ctx, userID)
	if err != nil {
		return degraded(&a.logger, "watchlist_behavior", err, emptyWatchlistPatterns())
	}

	patterns := emptyWatchlistPatterns()
	patterns.Total = len(entries)

	for i := range entries {
		e := &entries[i]
		switch {
		case e.Watched():
			patterns.Watched++
			if e.WatchedAt.Sub(e.AddedAt) <= impulseWindow {
				patterns.ImpulseWatches++
			}
		case e.Abandoned:
			patterns.Abandoned++
		default:
			patterns.Pending++
		}
	}

	if patterns.Total > 0 {
		patterns.CompletionRate = int(math.Round(100 * float64(patterns.Watched) / float64(patterns.Total)))
	}
	return patterns
}

// AnalyzeTemporalPatterns buckets watched genres by weekend vs. weekday and
// counts watches inside the trailing velocity window.
func (a *Analyzer) AnalyzeTemporalPatterns(ctx context.Context, userID int) TemporalPatterns {
	records, err := a.reader.GetInteractions(ctx, userID, time.Time{})
	if err != nil {
		return degraded(&a.logger, "temporal_patterns", err, emptyTemporalPatterns())
	}

	patterns := emptyTemporalPatterns()
	cutoff := a.now().Add(-velocityWindow)

	for _, rec := range records {
		if rec.Action != history.ActionView && rec.Action != history.ActionWatchlistWatched {
			continue
		}

		buckets := patterns.WeekdayGenres
		switch rec.Timestamp.Weekday() {
		case time.Saturday, time.Sunday:
			buckets = patterns.WeekendGenres
		}
		for _, g := range rec.Context {
			buckets[g]++
		}

		if rec.Timestamp.After(cutoff) {
			patterns.RecentVelocity++
		}
	}
	return patterns
}

// GenerateIntelligenceInsights combines the three analyses into derived
// metrics. Pure function: no I/O, no clock.
func GenerateIntelligenceInsights(rp RatingPatterns, wp WatchlistPatterns, tp TemporalPatterns) Insights {
	insights := Insights{GenreLoyalty: map[string]float64{}}

	insights.TasteConsistency = tasteConsistency(rp.GenreRatings)

	if rp.TotalRatings > 0 {
		ratio := float64(len(rp.GenreAverages)) / float64(rp.TotalRatings)
		insights.ExplorationRatio = math.Min(1, ratio)
	}

	insights.QualityThreshold = qualityThreshold(rp.Distribution, rp.TotalRatings)

	for genre, avg := range rp.GenreAverages {
		volume := math.Min(1, float64(len(rp.GenreRatings[genre]))/5.0)
		insights.GenreLoyalty[genre] = (avg / 5.0) * volume
	}

	return insights
}

// tasteConsistency maps the mean per-genre rating variance onto [0,1],
// higher for lower variance. Genres with fewer than two ratings carry no
// variance signal and are skipped.
func tasteConsistency(genreRatings map[string][]float64) float64 {
	// 1-5 star scale bounds the variance at 4.
	const maxVariance = 4.0

	varianceSum := 0.0
	genres := 0
	for _, values := range genreRatings {
		if len(values) < 2 {
			continue
		}
		mean := 0.0
		for _, v := range values {
			mean += v
		}
		mean /= float64(len(values))

		variance := 0.0
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(values))

		varianceSum += variance
		genres++
	}

	if genres == 0 {
		return 0
	}
	consistency := 1 - (varianceSum/float64(genres))/maxVariance
	return math.Max(0, math.Min(1, consistency))
}

// qualityThreshold finds the lowest star tier such that at least 80% of the
// user's ratings sit at or above it.
func qualityThreshold(distribution map[int]int, total int) float64 {
	if total == 0 {
		return 0
	}

	const engagementShare = 0.8
	cumulative := 0
	for star := 5; star >= 1; star-- {
		cumulative += distribution[star]
		if float64(cumulative)/float64(total) >= engagementShare {
			return float64(star)
		}
	}
	return 1
}

// AnalyzeCompleteUserBehavior runs all analyses and combines them. Each
// sub-analysis degrades independently; this method never fails.
func (a *Analyzer) AnalyzeCompleteUserBehavior(ctx context.Context, userID int) *Profile {
	if a.cache != nil {
		if profile, ok := a.cache.Get(userID); ok {
			return profile
		}
	}

	rp := a.AnalyzeRatingPatterns(ctx, userID)
	wp := a.AnalyzeWatchlistBehavior(ctx, userID)
	tp := a.AnalyzeTemporalPatterns(ctx, userID)

	profile := &Profile{
		Ratings:   rp,
		Watchlist: wp,
		Temporal:  tp,
		Insights:  GenerateIntelligenceInsights(rp, wp, tp),
	}

	if a.cache != nil {
		a.cache.Add(userID, profile)
	}
	return profile
}
