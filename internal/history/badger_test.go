// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package history

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(BadgerOptions{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestAppendRatingUpdatesRatingSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := InteractionRecord{
		UserID:    7,
		MovieID:   101,
		Action:    ActionRating,
		Value:     4,
		Context:   []string{"horror", "thriller"},
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.AppendInteraction(ctx, rec); err != nil {
		t.Fatalf("AppendInteraction: %v", err)
	}

	ratings, err := store.GetRatings(ctx, 7)
	if err != nil {
		t.Fatalf("GetRatings: %v", err)
	}
	if len(ratings) != 1 {
		t.Fatalf("got %d ratings, want 1", len(ratings))
	}
	if ratings[0].MovieID != 101 || ratings[0].Value != 4 {
		t.Errorf("unexpected rating: %+v", ratings[0])
	}
	if len(ratings[0].Genres) != 2 {
		t.Errorf("expected genres carried from context, got %v", ratings[0].Genres)
	}
}

func TestWatchlistLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	added := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	if err := store.AppendInteraction(ctx, InteractionRecord{
		UserID: 7, MovieID: 200, Action: ActionWatchlistAdd,
		Context: []string{"comedy"}, Timestamp: added,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	entries, err := store.GetWatchlist(ctx, 7)
	if err != nil {
		t.Fatalf("GetWatchlist: %v", err)
	}
	if len(entries) != 1 || entries[0].Watched() {
		t.Fatalf("expected one pending entry, got %+v", entries)
	}

	if err := store.AppendInteraction(ctx, InteractionRecord{
		UserID: 7, MovieID: 200, Action: ActionWatchlistWatched,
		Timestamp: added.Add(26 * time.Hour),
	}); err != nil {
		t.Fatalf("watched: %v", err)
	}

	entries, err = store.GetWatchlist(ctx, 7)
	if err != nil {
		t.Fatalf("GetWatchlist: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if !entries[0].Watched() {
		t.Errorf("entry should be watched: %+v", entries[0])
	}
	if !entries[0].AddedAt.Equal(added) {
		t.Errorf("AddedAt overwritten: got %v, want %v", entries[0].AddedAt, added)
	}
}

func TestGetInteractionsSinceFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := store.AppendInteraction(ctx, InteractionRecord{
			UserID: 3, MovieID: 300 + i, Action: ActionView,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	all, err := store.GetInteractions(ctx, 3, time.Time{})
	if err != nil {
		t.Fatalf("GetInteractions: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d interactions, want 5", len(all))
	}

	recent, err := store.GetInteractions(ctx, 3, base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("GetInteractions since: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("got %d recent interactions, want 2", len(recent))
	}
}

func TestUserIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, userID := range []int{1, 2} {
		if err := store.AppendInteraction(ctx, InteractionRecord{
			UserID: userID, MovieID: 42, Action: ActionRating, Value: 5,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	ratings, err := store.GetRatings(ctx, 1)
	if err != nil {
		t.Fatalf("GetRatings: %v", err)
	}
	if len(ratings) != 1 {
		t.Errorf("user 1 sees %d ratings, want 1", len(ratings))
	}
}

func TestAppendRejectsUnknownAction(t *testing.T) {
	store := newTestStore(t)

	err := store.AppendInteraction(context.Background(), InteractionRecord{
		UserID: 1, MovieID: 1, Action: Action("teleport"),
	})
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}
