// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build nats

package main

import (
	"context"
	"fmt"

	"github.com/attributiond/backend/internal/config"
	"github.com/attributiond/backend/internal/eventprocessor"
	"github.com/attributiond/backend/internal/logging"
)

// natsEventPublisher adapts *eventprocessor.Publisher to api.EventPublisher.
type natsEventPublisher struct {
	pub *eventprocessor.Publisher
}

func (n *natsEventPublisher) PublishImpressionSaved(ctx context.Context, site string) error {
	return n.pub.PublishEvent(ctx, eventprocessor.NewAttributionEvent(eventprocessor.EventKindImpressionSaved, site))
}

func (n *natsEventPublisher) PublishConversionMeasured(ctx context.Context, site string) error {
	return n.pub.PublishEvent(ctx, eventprocessor.NewAttributionEvent(eventprocessor.EventKindConversionMeasured, site))
}

func (n *natsEventPublisher) PublishStateCleared(ctx context.Context, mode string) error {
	return n.pub.PublishEvent(ctx, eventprocessor.NewAttributionEvent(eventprocessor.EventKindStateCleared, mode))
}

// initNATSPublisher constructs the optional NATS event publisher side
// channel. It returns a nil publisher (and nil error) when NATS is
// disabled in configuration.
func initNATSPublisher(cfg *config.Config) (*natsEventPublisher, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS event publishing disabled (NATS.Enabled=false)")
		return nil, nil
	}

	pubCfg := eventprocessor.DefaultPublisherConfig(cfg.NATS.URL)
	pub, err := eventprocessor.NewPublisher(pubCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("nats publisher: %w", err)
	}

	breaker := eventprocessor.NewCircuitBreaker(eventprocessor.DefaultCircuitBreakerConfig("attribution-events"))
	pub.SetCircuitBreaker(breaker)

	logging.Info().Str("url", cfg.NATS.URL).Msg("NATS event publishing enabled")
	return &natsEventPublisher{pub: pub}, nil
}
