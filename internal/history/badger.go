// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package history

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Key layout (all prefixes end with ':' so prefix scans never cross users):
//
//	r:<user>:<movie>          -> Rating
//	w:<user>:<movie>          -> WatchlistEntry
//	i:<user>:<ts-nano>:<uuid> -> InteractionRecord (timestamp-ordered)
const (
	ratingPrefix      = "r"
	watchlistPrefix   = "w"
	interactionPrefix = "i"
)

// BadgerStore implements Store on a badger key-value database.
// It is safe for concurrent use.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
}

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Path is the on-disk location. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory; used by tests.
	InMemory bool
}

// NewBadgerStore opens (or creates) the interaction database.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBadgerStore(opts BadgerOptions, logger zerolog.Logger) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithLogger(badgerLogger{logger: logger})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	return &BadgerStore{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// AppendInteraction stores an interaction record and maintains the derived
// rating and watchlist sets.
func (s *BadgerStore) AppendInteraction(ctx context.Context, rec InteractionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !rec.Action.Valid() {
		return fmt.Errorf("unknown action %q", rec.Action)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := interactionKey(rec.UserID, rec.Timestamp)
		val, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal interaction: %w", err)
		}
		if err := txn.Set(key, val); err != nil {
			return fmt.Errorf("store interaction: %w", err)
		}

		switch rec.Action {
		case ActionRating:
			return s.setRating(txn, rec)
		case ActionWatchlistAdd:
			return s.setWatchlistAdded(txn, rec)
		case ActionWatchlistWatched:
			return s.setWatchlistWatched(txn, rec)
		}
		return nil
	})
}

func (s *BadgerStore) setRating(txn *badger.Txn, rec InteractionRecord) error {
	rating := Rating{
		UserID:    rec.UserID,
		MovieID:   rec.MovieID,
		Value:     rec.Value,
		Genres:    rec.Context,
		Timestamp: rec.Timestamp,
	}
	val, err := json.Marshal(rating)
	if err != nil {
		return fmt.Errorf("marshal rating: %w", err)
	}
	return txn.Set(movieKey(ratingPrefix, rec.UserID, rec.MovieID), val)
}

func (s *BadgerStore) setWatchlistAdded(txn *badger.Txn, rec InteractionRecord) error {
	entry := WatchlistEntry{
		UserID:  rec.UserID,
		MovieID: rec.MovieID,
		Genres:  rec.Context,
		AddedAt: rec.Timestamp,
	}
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal watchlist entry: %w", err)
	}
	return txn.Set(movieKey(watchlistPrefix, rec.UserID, rec.MovieID), val)
}

func (s *BadgerStore) setWatchlistWatched(txn *badger.Txn, rec InteractionRecord) error {
	key := movieKey(watchlistPrefix, rec.UserID, rec.MovieID)

	entry := WatchlistEntry{
		UserID:  rec.UserID,
		MovieID: rec.MovieID,
		Genres:  rec.Context,
		AddedAt: rec.Timestamp,
	}
	if item, err := txn.Get(key); err == nil {
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &entry)
		}); err != nil {
			return fmt.Errorf("decode watchlist entry: %w", err)
		}
	}
	entry.WatchedAt = rec.Timestamp
	entry.Abandoned = false

	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal watchlist entry: %w", err)
	}
	return txn.Set(key, val)
}

// GetRatings returns all ratings for a user.
func (s *BadgerStore) GetRatings(ctx context.Context, userID int) ([]Rating, error) {
	var ratings []Rating
	err := s.scanPrefix(ctx, userPrefix(ratingPrefix, userID), func(v []byte) error {
		var r Rating
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		ratings = append(ratings, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan ratings: %w", err)
	}
	return ratings, nil
}

// GetWatchlist returns all watchlist entries for a user.
func (s *BadgerStore) GetWatchlist(ctx context.Context, userID int) ([]WatchlistEntry, error) {
	var entries []WatchlistEntry
	err := s.scanPrefix(ctx, userPrefix(watchlistPrefix, userID), func(v []byte) error {
		var e WatchlistEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan watchlist: %w", err)
	}
	return entries, nil
}

// GetInteractions returns interactions for a user at or after since,
// in timestamp order.
func (s *BadgerStore) GetInteractions(ctx context.Context, userID int, since time.Time) ([]InteractionRecord, error) {
	var records []InteractionRecord
	err := s.scanPrefix(ctx, userPrefix(interactionPrefix, userID), func(v []byte) error {
		var rec InteractionRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		if since.IsZero() || !rec.Timestamp.Before(since) {
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan interactions: %w", err)
	}
	return records, nil
}

// scanPrefix iterates values under a key prefix.
func (s *BadgerStore) scanPrefix(ctx context.Context, prefix []byte, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func userPrefix(kind string, userID int) []byte {
	return []byte(fmt.Sprintf("%s:%010d:", kind, userID))
}

func movieKey(kind string, userID, movieID int) []byte {
	return []byte(fmt.Sprintf("%s:%010d:%010d", kind, userID, movieID))
}

func interactionKey(userID int, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s:%010d:%020d:%s", interactionPrefix, userID, ts.UnixNano(), uuid.NewString()))
}

// badgerLogger adapts zerolog to badger's Logger interface.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf("badger: "+format, args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn().Msgf("badger: "+format, args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug().Msgf("badger: "+format, args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf("badger: "+format, args...)
}
