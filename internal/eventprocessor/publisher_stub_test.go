// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !nats

package eventprocessor

import (
	"context"
	"errors"
	"testing"
)

func TestNewPublisher_StubReturnsErrNATSNotEnabled(t *testing.T) {
	_, err := NewPublisher(DefaultPublisherConfig("nats://localhost:4222"), nil)
	if !errors.Is(err, ErrNATSNotEnabled) {
		t.Errorf("expected ErrNATSNotEnabled, got %v", err)
	}
}

func TestPublisher_StubPublishEvent(t *testing.T) {
	p := &Publisher{}
	ev := NewAttributionEvent(EventKindStateCleared, "publisher.example")

	if err := p.PublishEvent(context.Background(), ev); !errors.Is(err, ErrNATSNotEnabled) {
		t.Errorf("expected ErrNATSNotEnabled, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("expected nil from stub Close, got %v", err)
	}
}
