// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

// Package history stores and serves per-user interaction data: ratings,
// watchlist events, views and chat-derived signals. The behavioral analyzer
// and the memory filter consume it through narrow read interfaces; the
// learning-signal consumer writes to it.
package history

import (
	"context"
	"time"
)

// Action classifies a user interaction.
type Action string

const (
	// ActionRating is an explicit star rating (value 1-5).
	ActionRating Action = "rating"
	// ActionWatchlistAdd records a movie being added to the watchlist.
	ActionWatchlistAdd Action = "watchlist_add"
	// ActionWatchlistWatched records a watchlist item being watched.
	ActionWatchlistWatched Action = "watchlist_watched"
	// ActionView records a plain view event.
	ActionView Action = "view"
	// ActionChatSignal records a preference signal extracted from chat.
	ActionChatSignal Action = "chat_signal"
)

// Valid reports whether the action is one of the known kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionRating, ActionWatchlistAdd, ActionWatchlistWatched, ActionView, ActionChatSignal:
		return true
	}
	return false
}

// InteractionRecord is a single user-movie interaction event.
type InteractionRecord struct {
	// UserID is the internal user identifier.
	UserID int `json:"user_id"`

	// MovieID is the movie identifier.
	MovieID int `json:"movie_id"`

	// Action is the interaction kind.
	Action Action `json:"action"`

	// Value is an optional numeric payload (star rating, completion percent).
	Value float64 `json:"value,omitempty"`

	// Context carries free-form tags (genres, themes, request context).
	Context []string `json:"context,omitempty"`

	// Timestamp is when the interaction occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Rating is an explicit user rating with the movie metadata the
// behavioral analyzer aggregates over.
type Rating struct {
	UserID    int       `json:"user_id"`
	MovieID   int       `json:"movie_id"`
	Value     float64   `json:"value"` // 1-5 stars
	Genres    []string  `json:"genres,omitempty"`
	Directors []string  `json:"directors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WatchlistEntry is a watchlist item and its lifecycle state.
type WatchlistEntry struct {
	UserID  int      `json:"user_id"`
	MovieID int      `json:"movie_id"`
	Genres  []string `json:"genres,omitempty"`

	// AddedAt is when the item entered the watchlist.
	AddedAt time.Time `json:"added_at"`

	// WatchedAt is when the item was watched; zero if not yet watched.
	WatchedAt time.Time `json:"watched_at,omitempty"`

	// Abandoned marks items the user removed without watching.
	Abandoned bool `json:"abandoned,omitempty"`
}

// Watched reports whether the entry has been watched.
func (w *WatchlistEntry) Watched() bool {
	return !w.WatchedAt.IsZero()
}

// Reader is the read capability the analyzer and filter depend on.
type Reader interface {
	// GetRatings returns all ratings for a user.
	GetRatings(ctx context.Context, userID int) ([]Rating, error)

	// GetWatchlist returns all watchlist entries for a user.
	GetWatchlist(ctx context.Context, userID int) ([]WatchlistEntry, error)

	// GetInteractions returns interactions for a user at or after since.
	// A zero since returns everything.
	GetInteractions(ctx context.Context, userID int, since time.Time) ([]InteractionRecord, error)
}

// Writer is the append capability the learning-signal consumer depends on.
type Writer interface {
	// AppendInteraction stores an interaction record. Records with
	// ActionRating also update the rating set; watchlist actions update
	// the watchlist entry for the movie.
	AppendInteraction(ctx context.Context, rec InteractionRecord) error
}

// Store combines read and write capabilities.
type Store interface {
	Reader
	Writer
}
