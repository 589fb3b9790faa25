// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package signals

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reelsage/reelsage/internal/history"
)

// Consumer drains the learning-signal topic into the history store.
// It implements suture.Service so the supervision tree restarts it on
// failure.
type Consumer struct {
	bus    *Bus
	writer history.Writer
	logger zerolog.Logger
}

// NewConsumer wires a consumer to the bus and history writer.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewConsumer(bus *Bus, writer history.Writer, logger zerolog.Logger) *Consumer {
	return &Consumer{
		bus:    bus,
		writer: writer,
		logger: logger.With().Str("component", "signal-consumer").Logger(),
	}
}

// Serve implements suture.Service: subscribe and persist until the context
// is canceled or the bus closes.
//
// A record that fails to decode is acked and dropped; retrying a permanently
// malformed payload would wedge the topic. A store write failure nacks the
// message for redelivery.
func (c *Consumer) Serve(ctx context.Context) error {
	messages, err := c.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	var rec history.InteractionRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable learning signal")
		msg.Ack()
		return
	}

	if err := c.writer.AppendInteraction(ctx, rec); err != nil {
		c.logger.Error().Err(err).
			Str("message_id", msg.UUID).
			Int("user_id", rec.UserID).
			Msg("failed to persist learning signal")
		msg.Nack()
		return
	}

	c.logger.Debug().
		Int("user_id", rec.UserID).
		Int("movie_id", rec.MovieID).
		Str("action", string(rec.Action)).
		Msg("learning signal persisted")
	msg.Ack()
}

// String implements fmt.Stringer for supervision logs.
func (c *Consumer) String() string {
	return "signal-consumer"
}
