// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package weights

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reelsage/reelsage/internal/metrics"
)

// DefaultTTL is how long a loaded configuration stays fresh.
const DefaultTTL = 5 * time.Minute

// ErrZeroWeightSum rejects weight updates whose supplied values sum to zero.
var ErrZeroWeightSum = errors.New("supplied weights sum to zero")

// ValidationError reports an invalid value in a weight update, naming the
// offending key so the API can surface it.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid weight %q: %s", e.Field, e.Reason)
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Path is the location of the JSON configuration resource.
	Path string

	// TTL is the cache freshness window. Defaults to DefaultTTL.
	TTL time.Duration

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// cached pairs a parsed config with its load time for TTL checks.
type cached struct {
	cfg      *Config
	loadedAt time.Time
}

// Store loads, caches and persists the weight configuration.
//
// Reads never block on writes: the cache is an atomic pointer and
// invalidation is a single pointer swap. Concurrent requests may observe a
// config up to TTL stale after a write; that is the accepted consistency
// model. Disk access is serialized by mu so a cold cache issues exactly one
// read per TTL window no matter how many requests race on it.
type Store struct {
	path   string
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	cur atomic.Pointer[cached]
	mu  sync.Mutex
}

// NewStore creates a weight configuration store.
// Nothing is read from disk until the first Get or Load.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStore(opts StoreOptions, logger zerolog.Logger) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		path:   opts.Path,
		ttl:    opts.TTL,
		now:    opts.Clock,
		logger: logger.With().Str("component", "weights").Logger(),
	}
}

// Get returns the active configuration. It never fails: a missing or
// malformed resource logs a warning and yields the hardcoded default,
// which is cached like any successful read.
func (s *Store) Get(ctx context.Context) *Config {
	if c := s.cur.Load(); c != nil && s.now().Sub(c.loadedAt) < s.ttl {
		metrics.WeightCacheLoads.WithLabelValues("cache").Inc()
		return c.cfg
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have refreshed while we waited.
	if c := s.cur.Load(); c != nil && s.now().Sub(c.loadedAt) < s.ttl {
		metrics.WeightCacheLoads.WithLabelValues("cache").Inc()
		return c.cfg
	}

	cfg, err := s.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).
			Msg("falling back to default weight config")
		metrics.WeightCacheLoads.WithLabelValues("default").Inc()
		cfg = Default()
	} else {
		metrics.WeightCacheLoads.WithLabelValues("resource").Inc()
	}

	s.cur.Store(&cached{cfg: cfg, loadedAt: s.now()})
	return cfg
}

// Load reads and parses the resource, bypassing the cache. Callers that need
// to distinguish a missing resource can test the error with os.ErrNotExist.
func (s *Store) Load(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read weight config: %w", err)
	}
	return Parse(data)
}

// Invalidate drops the cached configuration so the next Get re-reads the
// resource. It is a lone pointer swap, safe against in-flight Gets.
func (s *Store) Invalidate() {
	s.cur.Store(nil)
}

// Update validates a partial weight map, merges it into the persisted
// configuration, re-normalizes all base weights to sum to 1, stamps version
// and timestamp, persists, and invalidates the cache.
//
// Unknown top-level document fields and per-weight auxiliary fields survive
// the rewrite untouched.
func (s *Store) Update(ctx context.Context, partial map[string]any) (*Config, error) {
	supplied, err := validatePartial(partial)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := s.loadForWrite(ctx)

	entries, err := decodeWeightEntries(cfg.doc["weights"])
	if err != nil {
		return nil, fmt.Errorf("decode persisted weights: %w", err)
	}

	if err := checkKnownKeys(entries, supplied); err != nil {
		return nil, err
	}

	merged, err := mergeAndNormalize(entries, supplied)
	if err != nil {
		return nil, err
	}

	for name, v := range merged {
		entry := entries[name]
		if entry == nil {
			entry = weightEntry{}
			entries[name] = entry
		}
		entry["base"] = mustMarshal(v)
	}

	cfg.doc["weights"] = mustMarshal(entries)
	cfg.doc["version"] = mustMarshal(bumpVersion(cfg.Version))
	cfg.doc["lastUpdated"] = mustMarshal(s.now().UTC().Format(time.RFC3339))

	// Field contents round-trip unmodified; MarshalIndent sorts the
	// top-level keys, so their order in the file does not.
	data, err := json.MarshalIndent(cfg.doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal weight config: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return nil, fmt.Errorf("persist weight config: %w", err)
	}

	s.Invalidate()

	updated, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("reparse persisted config: %w", err)
	}
	s.logger.Info().Str("version", updated.Version).Msg("weight config updated")
	return updated, nil
}

// loadForWrite returns the current persisted config, or the default when the
// resource is missing or malformed, so updates can bootstrap the file.
func (s *Store) loadForWrite(ctx context.Context) *Config {
	cfg, err := s.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("updating from default weight config")
		return Default()
	}
	return cfg
}

// Watch invalidates the cache whenever the backing file changes, making
// updates visible ahead of TTL expiry. Blocks until ctx is canceled; intended
// to run as a supervised service.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and atomic writes replace the file,
	// which drops a watch set directly on it.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Msg("watching weight config")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.logger.Debug().Str("op", event.Op.String()).Msg("weight config changed, invalidating cache")
				s.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// validatePartial type- and range-checks a partial weight update.
func validatePartial(partial map[string]any) (map[string]float64, error) {
	if len(partial) == 0 {
		return nil, &ValidationError{Field: "weights", Reason: "no weights supplied"}
	}

	supplied := make(map[string]float64, len(partial))
	sum := 0.0
	for name, raw := range partial {
		v, ok := toFloat(raw)
		if !ok {
			return nil, &ValidationError{Field: name, Reason: "must be a number"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ValidationError{Field: name, Reason: "must be finite"}
		}
		if v < 0 || v > 1 {
			return nil, &ValidationError{Field: name, Reason: "must be in [0,1]"}
		}
		supplied[name] = v
		sum += v
	}

	if sum == 0 {
		return nil, ErrZeroWeightSum
	}
	return supplied, nil
}

// canonicalWeights is the set of base weight names the update path accepts
// even when not yet persisted.
var canonicalWeights = map[string]struct{}{
	WeightSemantic:   {},
	WeightRating:     {},
	WeightPopularity: {},
	WeightRecency:    {},
	WeightPreference: {},
}

// checkKnownKeys rejects supplied weight names that are neither canonical nor
// already persisted, so a stray key cannot pollute the resource and dilute
// the scorer-visible weights under normalization.
func checkKnownKeys(entries map[string]weightEntry, supplied map[string]float64) error {
	for name := range supplied {
		if _, ok := canonicalWeights[name]; ok {
			continue
		}
		if _, ok := entries[name]; ok {
			continue
		}
		return &ValidationError{Field: name, Reason: "unknown weight"}
	}
	return nil
}

// toFloat accepts the numeric shapes a decoded JSON body can produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// decodeWeightEntries unmarshals the raw weights object for mutation.
func decodeWeightEntries(raw json.RawMessage) (map[string]weightEntry, error) {
	if raw == nil {
		return map[string]weightEntry{}, nil
	}
	var entries map[string]weightEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// mergeAndNormalize merges supplied weights over the persisted base values
// and normalizes the merged set to sum to 1.
func mergeAndNormalize(entries map[string]weightEntry, supplied map[string]float64) (map[string]float64, error) {
	merged := make(map[string]float64, len(entries)+len(supplied))

	for name, entry := range entries {
		rawBase, ok := entry["base"]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(rawBase, &v); err != nil {
			return nil, fmt.Errorf("persisted weight %q base is not a number: %w", name, err)
		}
		merged[name] = v
	}
	for name, v := range supplied {
		merged[name] = v
	}

	sum := 0.0
	for _, v := range merged {
		sum += v
	}
	if sum == 0 {
		return nil, ErrZeroWeightSum
	}
	for name, v := range merged {
		merged[name] = v / sum
	}
	return merged, nil
}

// bumpVersion increments a numeric version string, starting over at "1"
// for anything unparseable.
func bumpVersion(version string) string {
	var n int
	if _, err := fmt.Sscanf(version, "%d", &n); err != nil {
		n = 0
	}
	return fmt.Sprintf("%d", n+1)
}

// writeFileAtomic writes via a temp file and rename so readers never observe
// a partial document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".weights-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
