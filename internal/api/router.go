// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

// router.go mounts the attribution HTTP surface onto a chi router: the
// six façade operations, health/readiness probes, and the audit trail.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/attributiond/backend/internal/auth"
	"github.com/attributiond/backend/internal/config"
)

// Router assembles a Handler and the middleware chain that guards it
// into a servable http.Handler.
type Router struct {
	handler    *Handler
	authMW     *auth.Middleware
	security   config.SecurityConfig
	auditHdlrs *AuditHandlers
}

// NewRouter constructs a Router. authMW may be nil when AUTH_MODE is
// "none" (§ SecurityConfig.AuthMode); in that case every request is
// treated as unauthenticated and authorization falls back to
// HandlerContext's role-only checks, which deny every mutating route.
func NewRouter(handler *Handler, authMW *auth.Middleware, security config.SecurityConfig) *Router {
	return &Router{handler: handler, authMW: authMW, security: security}
}

// ConfigureAudit wires the audit-log read endpoints.
func (router *Router) ConfigureAudit(h *AuditHandlers) {
	router.auditHdlrs = h
}

func (router *Router) authenticate(next http.HandlerFunc) http.HandlerFunc {
	if router.authMW == nil {
		return next
	}
	return router.authMW.Authenticate(next)
}

// Mount builds the chi.Router serving the attribution API.
func (router *Router) Mount() http.Handler {
	r := chi.NewRouter()

	cm := NewChiMiddlewareFromAuth(router.security.CORSOrigins, router.security.RateLimitReqs, router.security.RateLimitWindow, router.security.RateLimitDisabled)
	r.Use(RequestIDWithLogging())
	r.Use(cm.CORS())
	r.Use(APISecurityHeaders())
	r.Use(E2EDebugLogging())

	h := router.handler

	r.Get("/health", h.Health)
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(cm.RateLimitByIP())

		v1.Post("/impressions", router.authenticate(h.SaveImpression))
		v1.Post("/conversions", router.authenticate(h.MeasureConversion))
		v1.Post("/state/clear", router.authenticate(h.ClearState))
		v1.Post("/sites/{site}/clear", router.authenticate(h.ClearImpressionsForSite))
		v1.With(RequireAdminMiddleware()).Post("/engine/enabled", router.authenticate(h.SetEnabled))
		v1.Get("/state", router.authenticate(h.State))

		if router.auditHdlrs != nil {
			v1.Route("/audit", func(a chi.Router) {
				a.Use(RequireAdminMiddleware())
				a.Get("/events", router.authenticate(router.auditHdlrs.ListEvents))
				a.Get("/events/{id}", router.authenticate(router.auditHdlrs.GetEvent))
				a.Get("/stats", router.authenticate(router.auditHdlrs.GetStats))
				a.Get("/types", router.authenticate(router.auditHdlrs.GetTypes))
				a.Get("/severities", router.authenticate(router.auditHdlrs.GetSeverities))
				a.Get("/export", router.authenticate(router.auditHdlrs.ExportEvents))
			})
		}
	})

	return r
}
