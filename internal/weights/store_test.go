// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package weights

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, contents string) (*Store, *fakeClock, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.json")
	if contents != "" {
		if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	clock := &fakeClock{now: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	store := NewStore(StoreOptions{Path: path, Clock: clock.Now}, zerolog.Nop())
	return store, clock, path
}

const validDoc = `{
  "weights": {
    "semantic":   {"base": 0.4, "note": "embedding cosine"},
    "rating":     {"base": 0.25},
    "popularity": {"base": 0.15},
    "recency":    {"base": 0.1},
    "preference": {"base": 0.1}
  },
  "boosts": {"genre_match": 0.08},
  "thresholds": {"high": 0.75, "medium": 0.5, "low": 0.25},
  "meta": {"owner": "growth-team"},
  "version": "3",
  "lastUpdated": "2026-07-01T00:00:00Z"
}`

func TestGetReturnsParsedConfig(t *testing.T) {
	store, _, _ := newTestStore(t, validDoc)

	cfg := store.Get(context.Background())
	if cfg.Weights.Semantic != 0.4 {
		t.Errorf("semantic = %v, want 0.4", cfg.Weights.Semantic)
	}
	if cfg.Boost(BoostGenreMatch) != 0.08 {
		t.Errorf("genre_match boost = %v, want 0.08", cfg.Boost(BoostGenreMatch))
	}
	if cfg.Version != "3" {
		t.Errorf("version = %q, want %q", cfg.Version, "3")
	}
}

func TestGetFallsBackToDefaultOnInvalidJSON(t *testing.T) {
	store, _, _ := newTestStore(t, "invalid json")

	cfg := store.Get(context.Background())
	want := Default()
	if cfg.Weights != want.Weights {
		t.Errorf("expected default weights, got %+v", cfg.Weights)
	}
}

func TestGetFallsBackToDefaultOnMissingFile(t *testing.T) {
	store, _, _ := newTestStore(t, "")

	cfg := store.Get(context.Background())
	if cfg.Weights != Default().Weights {
		t.Errorf("expected default weights, got %+v", cfg.Weights)
	}
}

func TestGetCachesWithinTTL(t *testing.T) {
	store, clock, path := newTestStore(t, validDoc)
	ctx := context.Background()

	first := store.Get(ctx)

	// Replace the file on disk; within the TTL the store must not re-read.
	changed := []byte(`{"weights": {"semantic": {"base": 1}}}`)
	if err := os.WriteFile(path, changed, 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	for i := 0; i < 50; i++ {
		if got := store.Get(ctx); got != first {
			t.Fatalf("call %d returned a freshly loaded config within TTL", i)
		}
	}

	clock.Advance(DefaultTTL + time.Second)
	refreshed := store.Get(ctx)
	if refreshed.Weights.Semantic != 1 {
		t.Errorf("expected reload after TTL expiry, got semantic = %v", refreshed.Weights.Semantic)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	store, _, path := newTestStore(t, validDoc)
	ctx := context.Background()

	store.Get(ctx)
	if err := os.WriteFile(path, []byte(`{"weights": {"semantic": {"base": 0.9}}}`), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	store.Invalidate()
	if got := store.Get(ctx).Weights.Semantic; got != 0.9 {
		t.Errorf("semantic after invalidate = %v, want 0.9", got)
	}
}

func TestUpdateNormalizesToUnitSum(t *testing.T) {
	store, _, _ := newTestStore(t, validDoc)

	cfg, err := store.Update(context.Background(), map[string]any{
		"semantic": 0.8,
		"rating":   0.8,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if sum := cfg.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		t.Errorf("persisted weights sum = %v, want 1", sum)
	}
	if cfg.Weights.Semantic != cfg.Weights.Rating {
		t.Errorf("equal inputs normalized unequally: %+v", cfg.Weights)
	}
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	store, _, _ := newTestStore(t, validDoc)
	ctx := context.Background()

	tests := []struct {
		name    string
		partial map[string]any
		field   string
	}{
		{"non-numeric", map[string]any{"semantic": "lots"}, "semantic"},
		{"negative", map[string]any{"rating": -0.1}, "rating"},
		{"above one", map[string]any{"popularity": 1.5}, "popularity"},
		{"nan", map[string]any{"recency": math.NaN()}, "recency"},
		{"empty", map[string]any{}, "weights"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Update(ctx, tt.partial)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestUpdateRejectsUnknownKeys(t *testing.T) {
	store, _, _ := newTestStore(t, validDoc)
	ctx := context.Background()

	_, err := store.Update(ctx, map[string]any{"sparkle": 1.0})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown key, got %v", err)
	}
	if verr.Field != "sparkle" {
		t.Errorf("field = %q, want %q", verr.Field, "sparkle")
	}

	// The rejected key must not have touched the resource: a subsequent
	// read still sees only the canonical five, summing to 1.
	store.Invalidate()
	cfg := store.Get(ctx)
	if sum := cfg.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		t.Errorf("canonical weights sum = %v after rejected update, want 1", sum)
	}
}

func TestUpdateAcceptsPersistedAuxiliaryWeight(t *testing.T) {
	// A non-canonical weight already present in the resource stays
	// updatable; only names the document has never seen are rejected.
	doc := `{
	  "weights": {
	    "semantic":     {"base": 0.5},
	    "experimental": {"base": 0.5}
	  }
	}`
	store, _, _ := newTestStore(t, doc)

	cfg, err := store.Update(context.Background(), map[string]any{"experimental": 0.2})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("version = %q, want 1", cfg.Version)
	}
}

func TestUpdateRejectsZeroSum(t *testing.T) {
	store, _, _ := newTestStore(t, validDoc)

	_, err := store.Update(context.Background(), map[string]any{
		"semantic": 0.0,
		"rating":   0.0,
	})
	if !errors.Is(err, ErrZeroWeightSum) {
		t.Fatalf("expected ErrZeroWeightSum, got %v", err)
	}
}

func TestUpdatePreservesUnknownFields(t *testing.T) {
	store, _, path := newTestStore(t, validDoc)

	if _, err := store.Update(context.Background(), map[string]any{"semantic": 0.5}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted config: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse persisted config: %v", err)
	}

	var meta map[string]string
	if err := json.Unmarshal(doc["meta"], &meta); err != nil {
		t.Fatalf("meta field lost: %v", err)
	}
	if meta["owner"] != "growth-team" {
		t.Errorf("meta.owner = %q, want %q", meta["owner"], "growth-team")
	}

	// Per-weight auxiliary fields must survive too.
	var entries map[string]map[string]json.RawMessage
	if err := json.Unmarshal(doc["weights"], &entries); err != nil {
		t.Fatalf("parse weights: %v", err)
	}
	var note string
	if err := json.Unmarshal(entries["semantic"]["note"], &note); err != nil {
		t.Fatalf("semantic.note lost: %v", err)
	}
	if note != "embedding cosine" {
		t.Errorf("semantic.note = %q", note)
	}
}

func TestUpdateBumpsVersionAndInvalidates(t *testing.T) {
	store, _, _ := newTestStore(t, validDoc)
	ctx := context.Background()

	before := store.Get(ctx)
	if before.Version != "3" {
		t.Fatalf("version = %q, want 3", before.Version)
	}

	updated, err := store.Update(ctx, map[string]any{"semantic": 0.6})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != "4" {
		t.Errorf("version = %q, want 4", updated.Version)
	}
	if updated.LastUpdated.IsZero() {
		t.Error("lastUpdated not stamped")
	}

	// The cache was invalidated, so the next Get sees the new version.
	if got := store.Get(ctx).Version; got != "4" {
		t.Errorf("Get after update returned version %q, want 4", got)
	}
}

func TestUpdateBootstrapsMissingFile(t *testing.T) {
	store, _, path := newTestStore(t, "")

	cfg, err := store.Update(context.Background(), map[string]any{"semantic": 0.7})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if sum := cfg.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		t.Errorf("weights sum = %v, want 1", sum)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestWatchInvalidatesCacheOnFileChange(t *testing.T) {
	store, _, path := newTestStore(t, validDoc)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if got := store.Get(ctx).Weights.Semantic; got != 0.4 {
		t.Fatalf("semantic = %v, want 0.4", got)
	}

	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	// Rewrite until the watcher picks an event up; its registration races
	// the first write. The clock never advances, so only the watcher's
	// invalidation can make Get re-read before TTL expiry.
	changed := []byte(`{"weights": {"semantic": {"base": 0.9}}}`)
	deadline := time.After(2 * time.Second)
	for {
		if err := os.WriteFile(path, changed, 0o600); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		if store.Get(ctx).Weights.Semantic == 0.9 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher never invalidated the cache")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}

func TestConcurrentGetAndUpdate(t *testing.T) {
	store, _, _ := newTestStore(t, validDoc)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if cfg := store.Get(ctx); cfg == nil {
					t.Error("Get returned nil")
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			if _, err := store.Update(ctx, map[string]any{"semantic": 0.5}); err != nil {
				t.Errorf("Update: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}
