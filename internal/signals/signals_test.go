// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package signals

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelsage/reelsage/internal/history"
)

func newMemoryStore(t *testing.T) *history.BadgerStore {
	t.Helper()
	store, err := history.NewBadgerStore(history.BadgerOptions{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPublishedSignalReachesStore(t *testing.T) {
	store := newMemoryStore(t)
	bus := NewBus(zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	consumer := NewConsumer(bus, store, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Serve(ctx)
	}()

	rec := history.InteractionRecord{
		UserID:    7,
		MovieID:   42,
		Action:    history.ActionRating,
		Value:     5,
		Context:   []string{"horror"},
		Timestamp: time.Date(2026, 8, 14, 20, 0, 0, 0, time.UTC),
	}

	// Republish until the consumer's subscription is live and the record
	// lands; the rating set is keyed by movie so duplicates collapse.
	deadline := time.After(2 * time.Second)
	for {
		if err := bus.Publish(ctx, rec); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		ratings, err := store.GetRatings(ctx, 7)
		if err != nil {
			t.Fatalf("GetRatings: %v", err)
		}
		if len(ratings) == 1 {
			if ratings[0].MovieID != 42 || ratings[0].Value != 5 {
				t.Fatalf("unexpected persisted rating %+v", ratings[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("signal never reached the store")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop on context cancel")
	}
}

func TestConsumerPersistsViewInteractions(t *testing.T) {
	store := newMemoryStore(t)
	bus := NewBus(zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	consumer := NewConsumer(bus, store, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = consumer.Serve(ctx) }()

	rec := history.InteractionRecord{
		UserID:    1,
		MovieID:   2,
		Action:    history.ActionView,
		Context:   []string{"horror", "slasher"},
		Timestamp: time.Now(),
	}

	deadline := time.After(2 * time.Second)
	for {
		if err := bus.Publish(ctx, rec); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		interactions, err := store.GetInteractions(ctx, 1, time.Time{})
		if err != nil {
			t.Fatalf("GetInteractions: %v", err)
		}
		if len(interactions) >= 1 {
			if interactions[0].Action != history.ActionView || len(interactions[0].Context) != 2 {
				t.Fatalf("unexpected persisted interaction %+v", interactions[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("valid signal never persisted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
