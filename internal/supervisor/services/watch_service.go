// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package services

import (
	"context"

	"github.com/rs/zerolog"
)

// Watcher blocks watching some resource until the context is canceled.
type Watcher interface {
	Watch(ctx context.Context) error
}

// WatchService runs a Watcher under supervision, e.g. the weight store's
// file watcher. Suture restarts it if the watch loop fails.
type WatchService struct {
	name    string
	watcher Watcher
	logger  zerolog.Logger
}

// NewWatchService wraps watcher for supervision.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWatchService(name string, watcher Watcher, logger zerolog.Logger) *WatchService {
	return &WatchService{
		name:    name,
		watcher: watcher,
		logger:  logger.With().Str("service", name).Logger(),
	}
}

// Serve implements suture.Service.
func (s *WatchService) Serve(ctx context.Context) error {
	s.logger.Debug().Msg("watch service starting")
	return s.watcher.Watch(ctx)
}

// String names the service in supervisor logs.
func (s *WatchService) String() string {
	return s.name
}
