// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !nats

package eventprocessor

import (
	"context"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Publisher is a stub used when NATS dependencies are not compiled in.
// Build with -tags=nats to enable the real Watermill/NATS publisher.
type Publisher struct {
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
}

// NewPublisher returns ErrNATSNotEnabled; build with -tags=nats for the real publisher.
func NewPublisher(cfg PublisherConfig, logger interface{}) (*Publisher, error) {
	return nil, ErrNATSNotEnabled
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// Publish is a stub that returns ErrNATSNotEnabled.
func (p *Publisher) Publish(ctx context.Context, topic string, msg interface{}) error {
	return ErrNATSNotEnabled
}

// PublishEvent is a stub that returns ErrNATSNotEnabled.
func (p *Publisher) PublishEvent(ctx context.Context, event *AttributionEvent) error {
	return ErrNATSNotEnabled
}

// Close is a no-op stub.
func (p *Publisher) Close() error {
	return nil
}
