// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelsage/reelsage/internal/behavior"
	"github.com/reelsage/reelsage/internal/history"
	"github.com/reelsage/reelsage/internal/weights"
)

var engineNow = time.Date(2026, 8, 14, 20, 0, 0, 0, time.UTC)

type fakeSearcher struct {
	candidates []Candidate
	err        error
	lastQuery  Criteria
}

func (f *fakeSearcher) Search(ctx context.Context, criteria Criteria) ([]Candidate, error) {
	f.lastQuery = criteria
	return f.candidates, f.err
}

type fakeAnalyzer struct {
	profile *behavior.Profile
}

func (f *fakeAnalyzer) AnalyzeCompleteUserBehavior(ctx context.Context, userID int) *behavior.Profile {
	if f.profile == nil {
		return &behavior.Profile{}
	}
	return f.profile
}

type fakeConfigSource struct {
	cfg *weights.Config
}

func (f *fakeConfigSource) Get(ctx context.Context) *weights.Config {
	return f.cfg
}

type fakePublisher struct {
	records []history.InteractionRecord
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, rec history.InteractionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type engineFixture struct {
	engine    *Engine
	searcher  *fakeSearcher
	config    *fakeConfigSource
	publisher *fakePublisher
	reader    *fakeSeenReader
}

func newEngineFixture(candidates []Candidate) *engineFixture {
	clock := func() time.Time { return engineNow }
	searcher := &fakeSearcher{candidates: candidates}
	config := &fakeConfigSource{cfg: weights.Default()}
	publisher := &fakePublisher{}
	reader := &fakeSeenReader{}
	filter := NewFilter(reader, clock, zerolog.Nop())

	return &engineFixture{
		engine:    NewEngine(searcher, &fakeAnalyzer{}, config, filter, publisher, clock, zerolog.Nop()),
		searcher:  searcher,
		config:    config,
		publisher: publisher,
		reader:    reader,
	}
}

func TestGenerateRecommendationsRanksDeterministically(t *testing.T) {
	// Identical signals force a full tie on confidence; rating then ID break it.
	fix := newEngineFixture([]Candidate{
		{ID: 30, Title: "C", Rating: 7.0},
		{ID: 10, Title: "A", Rating: 7.0},
		{ID: 20, Title: "B", Rating: 8.5},
	})

	recs, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{Count: 3})
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}

	want := []int{20, 10, 30}
	if len(recs) != 3 {
		t.Fatalf("got %d recommendations, want 3", len(recs))
	}
	for i, id := range want {
		if recs[i].Movie.ID != id {
			t.Errorf("position %d = movie %d, want %d", i, recs[i].Movie.ID, id)
		}
	}
}

func TestGenerateRecommendationsTruncatesToCount(t *testing.T) {
	candidates := make([]Candidate, 25)
	for i := range candidates {
		candidates[i] = Candidate{ID: i + 1, Title: fmt.Sprintf("M%d", i+1), Rating: 5}
	}
	fix := newEngineFixture(candidates)

	recs, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{})
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}
	if len(recs) != DefaultCount {
		t.Errorf("got %d recommendations, want default %d", len(recs), DefaultCount)
	}
}

func TestGenerateRecommendationsEmptyCatalog(t *testing.T) {
	fix := newEngineFixture(nil)

	recs, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{})
	if err != nil {
		t.Fatalf("expected nil error on empty catalog, got %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", recs)
	}
}

func TestGenerateRecommendationsCatalogUnavailable(t *testing.T) {
	fix := newEngineFixture(nil)
	fix.searcher.err = fmt.Errorf("breaker open: %w", ErrUnavailable)

	recs, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{})
	if err != nil {
		t.Fatalf("unavailable catalog should degrade, got error %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty result, got %d", len(recs))
	}
}

func TestGenerateRecommendationsHardSearchError(t *testing.T) {
	fix := newEngineFixture(nil)
	fix.searcher.err = errors.New("catalog query failed")

	if _, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{}); err == nil {
		t.Fatal("expected error on hard catalog failure")
	}
}

func TestGenerateRecommendationsExcludesWatched(t *testing.T) {
	fix := newEngineFixture([]Candidate{
		{ID: 1, Title: "Seen", Rating: 9},
		{ID: 2, Title: "Unseen", Rating: 5},
	})
	fix.reader.ratings = []history.Rating{{MovieID: 1, Value: 5}}

	recs, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{ExcludeWatched: true})
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}
	if len(recs) != 1 || recs[0].Movie.ID != 2 {
		t.Errorf("expected only the unseen movie, got %v", recs)
	}
}

func TestGenerateRecommendationsAppliesNoveltyPenalty(t *testing.T) {
	fix := newEngineFixture([]Candidate{
		{ID: 1, Title: "Slasher Night II", Genres: []string{"horror", "slasher"}, Rating: 7},
	})
	fix.reader.interactions = []history.InteractionRecord{{
		UserID:    1,
		Action:    history.ActionView,
		Context:   []string{"horror", "slasher"},
		Timestamp: engineNow.Add(-time.Hour),
	}}

	recs, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{ExcludeWatched: true})
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}
	if len(recs) != 1 || !recs[0].NoveltyPenalty {
		t.Fatalf("expected a penalized recommendation, got %+v", recs)
	}

	unpenalized, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{})
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}
	if recs[0].Confidence >= unpenalized[0].Confidence {
		t.Errorf("penalized confidence %v should be below unpenalized %v", recs[0].Confidence, unpenalized[0].Confidence)
	}
}

func TestGenerateRecommendationsFactorOverrideLeavesStoreUntouched(t *testing.T) {
	fix := newEngineFixture([]Candidate{{ID: 1, Title: "M", Rating: 9}})
	before := fix.config.cfg.Weights

	_, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{
		Factors: map[string]float64{weights.WeightRating: 1.0},
	})
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}

	if fix.config.cfg.Weights != before {
		t.Errorf("shared config mutated by per-request override: %+v", fix.config.cfg.Weights)
	}
}

func TestGenerateRecommendationsFactorOverrideChangesScores(t *testing.T) {
	fix := newEngineFixture([]Candidate{{ID: 1, Title: "M", Rating: 10, Popularity: 0}})

	base, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{})
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}
	overridden, err := fix.engine.GenerateRecommendations(context.Background(), 1, Options{
		Factors: map[string]float64{weights.WeightRating: 1.0},
	})
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}

	if base[0].Confidence == overridden[0].Confidence {
		t.Error("factor override should change the score")
	}
}

func TestGenerateRecommendationsBiasesSearchByTopGenres(t *testing.T) {
	clock := func() time.Time { return engineNow }
	searcher := &fakeSearcher{}
	analyzer := &fakeAnalyzer{profile: &behavior.Profile{
		Insights: behavior.Insights{GenreLoyalty: map[string]float64{
			"horror": 0.9, "thriller": 0.7, "comedy": 0.5, "western": 0.1,
		}},
	}}
	filter := NewFilter(&fakeSeenReader{}, clock, zerolog.Nop())
	e := NewEngine(searcher, analyzer, &fakeConfigSource{cfg: weights.Default()}, filter, nil, clock, zerolog.Nop())

	_, err := e.GenerateRecommendations(context.Background(), 1, Options{Context: []string{"heist"}})
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}

	want := []string{"horror", "thriller", "comedy"}
	if len(searcher.lastQuery.Genres) != len(want) {
		t.Fatalf("query genres = %v, want %v", searcher.lastQuery.Genres, want)
	}
	for i := range want {
		if searcher.lastQuery.Genres[i] != want[i] {
			t.Errorf("query genres = %v, want %v", searcher.lastQuery.Genres, want)
		}
	}
	if len(searcher.lastQuery.Keywords) != 1 || searcher.lastQuery.Keywords[0] != "heist" {
		t.Errorf("query keywords = %v, want [heist]", searcher.lastQuery.Keywords)
	}
}

func TestRecordLearningSignalPublishes(t *testing.T) {
	fix := newEngineFixture(nil)

	fix.engine.RecordLearningSignal(context.Background(), 1, 42, history.ActionView, 0, []string{"horror"})

	if len(fix.publisher.records) != 1 {
		t.Fatalf("published %d records, want 1", len(fix.publisher.records))
	}
	rec := fix.publisher.records[0]
	if rec.UserID != 1 || rec.MovieID != 42 || rec.Action != history.ActionView {
		t.Errorf("unexpected record %+v", rec)
	}
	if !rec.Timestamp.Equal(engineNow) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, engineNow)
	}
}

func TestRecordLearningSignalDropsUnknownAction(t *testing.T) {
	fix := newEngineFixture(nil)

	fix.engine.RecordLearningSignal(context.Background(), 1, 42, history.Action("superlike"), 0, nil)

	if len(fix.publisher.records) != 0 {
		t.Errorf("unknown action should not publish, got %v", fix.publisher.records)
	}
}

func TestRecordLearningSignalSwallowsPublishError(t *testing.T) {
	fix := newEngineFixture(nil)
	fix.publisher.err = errors.New("bus closed")

	// Must not panic or surface the error.
	fix.engine.RecordLearningSignal(context.Background(), 1, 42, history.ActionRating, 4, nil)
}
