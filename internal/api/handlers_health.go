// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"
)

// Health handles GET /health. It always returns 200 as long as the
// process is serving requests; use HealthReady to check dependency
// availability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	})
}

// HealthLive handles GET /health/live — a liveness probe that only
// confirms the process can still handle HTTP requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{"status": "alive"})
}

// HealthReady handles GET /health/ready — a readiness probe checking
// that the attribution engine and its configured collaborators are
// wired. It does not attempt any network calls.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if h.Engine == nil {
		checks["engine"] = "unavailable"
		ready = false
	} else {
		checks["engine"] = "ok"
		if h.Engine.Enabled() {
			checks["engine_enabled"] = "true"
		} else {
			checks["engine_enabled"] = "false"
		}
	}

	if h.Audit != nil {
		checks["audit"] = "ok"
	} else {
		checks["audit"] = "disabled"
	}

	if h.Enforcer != nil {
		checks["authz"] = "ok"
	} else {
		checks["authz"] = "disabled"
	}

	if !ready {
		WriteError(w, r, http.StatusServiceUnavailable, "NOT_READY", "one or more dependencies are unavailable")
		return
	}

	WriteSuccess(w, r, map[string]interface{}{"status": "ready", "checks": checks})
}
