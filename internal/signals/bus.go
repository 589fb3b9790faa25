// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

// Package signals carries learning signals from the recommendation engine to
// the interaction history store over an in-process watermill pub/sub. The
// engine publishes fire-and-forget; the consumer persists asynchronously so
// a slow store never blocks a recommendation request.
package signals

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelsage/reelsage/internal/history"
	"github.com/reelsage/reelsage/internal/logging"
)

// Topic is the learning-signal topic name.
const Topic = "learning.signals"

// Bus is an in-process pub/sub for learning signals.
type Bus struct {
	channel *gochannel.GoChannel
	logger  zerolog.Logger
}

// NewBus creates the gochannel-backed bus.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBus(logger zerolog.Logger) *Bus {
	componentLogger := logger.With().Str("component", "signal-bus").Logger()
	return &Bus{
		channel: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			logging.NewWatermillAdapter(componentLogger),
		),
		logger: componentLogger,
	}
}

// Publish implements recommend.SignalPublisher.
func (b *Bus) Publish(ctx context.Context, rec history.InteractionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal learning signal: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	if err := b.channel.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish learning signal: %w", err)
	}
	return nil
}

// Subscribe returns the signal message stream for a consumer.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	messages, err := b.channel.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", Topic, err)
	}
	return messages, nil
}

// Close shuts the bus down; pending subscribers see their channels closed.
func (b *Bus) Close() error {
	return b.channel.Close()
}
