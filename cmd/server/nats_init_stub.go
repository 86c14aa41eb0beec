// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !nats

package main

import (
	"context"

	"github.com/attributiond/backend/internal/config"
	"github.com/attributiond/backend/internal/logging"
)

// natsEventPublisher is a no-op stand-in when the binary is built
// without -tags=nats.
type natsEventPublisher struct{}

func (n *natsEventPublisher) PublishImpressionSaved(ctx context.Context, site string) error {
	return nil
}

func (n *natsEventPublisher) PublishConversionMeasured(ctx context.Context, site string) error {
	return nil
}

func (n *natsEventPublisher) PublishStateCleared(ctx context.Context, mode string) error {
	return nil
}

// initNATSPublisher always returns nil: without the nats build tag the
// event-publishing side channel is unavailable, and Handler.Events is
// left nil (handlers skip publishing entirely).
func initNATSPublisher(cfg *config.Config) (*natsEventPublisher, error) {
	if cfg.NATS.Enabled {
		logging.Warn().Msg("NATS.Enabled=true but binary was built without -tags=nats; event publishing disabled")
	}
	return nil, nil
}
