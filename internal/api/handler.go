// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/attributiond/backend/internal/attribution"
	"github.com/attributiond/backend/internal/audit"
	"github.com/attributiond/backend/internal/authz"
	"github.com/attributiond/backend/internal/config"
	"github.com/attributiond/backend/internal/websocket"
)

// Handler holds every collaborator the HTTP layer needs to serve a
// request. A single Handler is shared across all goroutines serving
// requests; every field is either immutable after construction or
// already safe for concurrent use (Engine guards itself with an
// internal mutex, audit.Logger is append-only, websocket.Hub is
// goroutine-safe).
type Handler struct {
	Engine   *attribution.Engine
	Config   *config.Config
	Audit    *audit.Logger
	Enforcer *authz.Enforcer
	Hub      *websocket.Hub
	Events   EventPublisher

	startTime time.Time
}

// EventPublisher is the optional NATS event-publishing side channel:
// publishing a domain event never blocks or fails a request, so
// handlers log publish errors and otherwise ignore them.
// Satisfied by an *eventprocessor.Publisher adapter built in cmd/server
// under the "nats" build tag; nil when NATS is not configured.
type EventPublisher interface {
	PublishImpressionSaved(ctx context.Context, site string) error
	PublishConversionMeasured(ctx context.Context, site string) error
	PublishStateCleared(ctx context.Context, mode string) error
}

// NewHandler constructs a Handler. Engine is required; Audit, Enforcer,
// and Hub may be nil when their subsystems are not configured (e.g. the
// websocket hub is only built when an operator wants live broadcast of
// state changes).
func NewHandler(engine *attribution.Engine, cfg *config.Config) *Handler {
	return &Handler{
		Engine:    engine,
		Config:    cfg,
		startTime: time.Now(),
	}
}

// WithAudit wires the audit logger and returns the Handler for chaining.
func (h *Handler) WithAudit(logger *audit.Logger) *Handler {
	h.Audit = logger
	return h
}

// WithEnforcer wires the Casbin enforcer and returns the Handler for
// chaining.
func (h *Handler) WithEnforcer(enforcer *authz.Enforcer) *Handler {
	h.Enforcer = enforcer
	return h
}

// WithHub wires the websocket broadcast hub and returns the Handler for
// chaining.
func (h *Handler) WithHub(hub *websocket.Hub) *Handler {
	h.Hub = hub
	return h
}

// WithEvents wires the NATS event publisher side channel and returns
// the Handler for chaining.
func (h *Handler) WithEvents(events EventPublisher) *Handler {
	h.Events = events
	return h
}

func (h *Handler) handlerContext(r *http.Request) *HandlerContext {
	if h.Enforcer != nil {
		return GetHandlerContextWithEnforcer(r, h.Enforcer)
	}
	return GetHandlerContext(r)
}
