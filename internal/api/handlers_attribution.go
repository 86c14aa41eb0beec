// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

// handlers_attribution.go wires the HTTP surface for the six façade
// operations (save_impression, measure_conversion,
// clear_impressions_for_site, clear_state, set_enabled, and read-only
// state introspection) onto internal/attribution.Engine.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/attributiond/backend/internal/attribution"
	"github.com/attributiond/backend/internal/audit"
	"github.com/attributiond/backend/internal/logging"
)

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, r, "malformed JSON request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var attrErr *attribution.Error
	if errors.As(err, &attrErr) {
		WriteError(w, r, statusFor(err), attrErr.Kind.String(), attrErr.Error())
		return
	}
	WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", op+" failed")
}

// SaveImpression handles POST /v1/impressions.
func (h *Handler) SaveImpression(w http.ResponseWriter, r *http.Request) {
	hctx := h.handlerContext(r)
	if err := hctx.Authorize("impressions", "write"); err != nil {
		RespondAuthError(w, r, err)
		return
	}
	if h.Engine == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", ErrEngineUnavailable.Error())
		return
	}

	var req SaveImpressionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.Engine.SaveImpression(req.toInput())
	if err != nil {
		h.writeEngineError(w, r, "SaveImpression", err)
		return
	}

	h.logAttributionEvent(r, audit.EventTypeImpressionSaved, hctx, "save_impression", req.ImpressionSite)
	h.publishEvent(r, func(ctx context.Context) error {
		return h.Events.PublishImpressionSaved(ctx, req.ImpressionSite)
	})
	WriteSuccess(w, r, result)
}

// MeasureConversion handles POST /v1/conversions.
func (h *Handler) MeasureConversion(w http.ResponseWriter, r *http.Request) {
	hctx := h.handlerContext(r)
	if err := hctx.Authorize("conversions", "write"); err != nil {
		RespondAuthError(w, r, err)
		return
	}
	if h.Engine == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", ErrEngineUnavailable.Error())
		return
	}

	var req MeasureConversionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.Engine.MeasureConversion(req.toInput())
	if err != nil {
		h.writeEngineError(w, r, "MeasureConversion", err)
		return
	}

	h.logAttributionEvent(r, audit.EventTypeConversionMeasured, hctx, "measure_conversion", req.TopLevelSite)
	h.publishEvent(r, func(ctx context.Context) error {
		return h.Events.PublishConversionMeasured(ctx, req.TopLevelSite)
	})

	WriteSuccess(w, r, struct {
		EncryptedReport string  `json:"encrypted_report"`
		Histogram       []int64 `json:"histogram,omitempty"`
		BudgetExhausted bool    `json:"budget_exhausted"`
	}{
		EncryptedReport: base64.StdEncoding.EncodeToString(result.EncryptedReport),
		Histogram:       result.Histogram,
		BudgetExhausted: result.BudgetExhausted,
	})
}

// ClearState handles POST /v1/state/clear.
func (h *Handler) ClearState(w http.ResponseWriter, r *http.Request) {
	hctx := h.handlerContext(r)
	if err := hctx.Authorize("state", "delete"); err != nil {
		RespondAuthError(w, r, err)
		return
	}
	if h.Engine == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", ErrEngineUnavailable.Error())
		return
	}

	var req ClearStateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	var mode attribution.ClearStateMode
	switch req.Mode {
	case "delete_all":
		mode = attribution.ClearStateModeDeleteAll
	case "delete":
		mode = attribution.ClearStateModeDelete
	case "keep":
		mode = attribution.ClearStateModeKeep
	default:
		WriteBadRequest(w, r, "mode must be one of delete_all, delete, keep")
		return
	}

	if err := h.Engine.ClearState(attribution.ClearStateInput{Mode: mode, Sites: req.Sites}); err != nil {
		h.writeEngineError(w, r, "ClearState", err)
		return
	}

	h.logAttributionEvent(r, audit.EventTypeStateCleared, hctx, "clear_state", req.Mode)
	if h.Hub != nil {
		h.Hub.BroadcastStateCleared(req.Mode)
	}
	h.publishEvent(r, func(ctx context.Context) error {
		return h.Events.PublishStateCleared(ctx, req.Mode)
	})
	WriteSuccess(w, r, map[string]interface{}{"cleared": true})
}

// ClearImpressionsForSite handles POST /v1/sites/{site}/clear.
func (h *Handler) ClearImpressionsForSite(w http.ResponseWriter, r *http.Request) {
	hctx := h.handlerContext(r)
	if err := hctx.Authorize("impressions", "delete"); err != nil {
		RespondAuthError(w, r, err)
		return
	}
	if h.Engine == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", ErrEngineUnavailable.Error())
		return
	}

	site := chi.URLParam(r, "site")
	if site == "" {
		WriteBadRequest(w, r, "site path parameter is required")
		return
	}

	if err := h.Engine.ClearImpressionsForSite(site); err != nil {
		h.writeEngineError(w, r, "ClearImpressionsForSite", err)
		return
	}

	h.logAttributionEvent(r, audit.EventTypeStateCleared, hctx, "clear_impressions_for_site", site)
	WriteSuccess(w, r, map[string]interface{}{"cleared": true})
}

// SetEnabled handles POST /v1/engine/enabled.
func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	hctx := h.handlerContext(r)
	if err := hctx.RequireAdmin(); err != nil {
		RespondAuthError(w, r, err)
		return
	}
	if h.Engine == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", ErrEngineUnavailable.Error())
		return
	}

	var req SetEnabledRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	h.Engine.SetEnabled(req.Enabled)
	h.logAttributionEvent(r, audit.EventTypeEngineToggled, hctx, "set_enabled", boolString(req.Enabled))

	if h.Hub != nil {
		h.Hub.BroadcastEngineToggled(req.Enabled)
	}

	WriteSuccess(w, r, map[string]interface{}{"enabled": req.Enabled})
}

// State handles GET /v1/state — a read-only introspection endpoint
// surfacing the engine's current impressions, privacy budget ledger,
// epoch origins, and enabled flag. Intended for operator dashboards and
// debugging, not for the hot path.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	hctx := h.handlerContext(r)
	if err := hctx.Authorize("state", "read"); err != nil {
		RespondAuthError(w, r, err)
		return
	}
	if h.Engine == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", ErrEngineUnavailable.Error())
		return
	}

	lastClear := h.Engine.LastBrowsingHistoryClear()

	WriteSuccess(w, r, map[string]interface{}{
		"enabled":                      h.Engine.Enabled(),
		"impression_count":             len(h.Engine.Impressions()),
		"privacy_budget_entries":       h.Engine.PrivacyBudgetEntries(),
		"last_browsing_history_clear":  lastClear,
		"aggregation_service_count":    len(h.Engine.AggregationServices()),
	})
}

func (h *Handler) logAttributionEvent(r *http.Request, eventType audit.EventType, hctx *HandlerContext, action, target string) {
	if h.Audit == nil {
		return
	}
	actorID := "anonymous"
	actorRoles := []string(nil)
	if hctx.IsAuthenticated() {
		actorID = hctx.CallerID
		actorRoles = hctx.Subject.Roles
	}
	h.Audit.Log(&audit.Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Severity:  audit.SeverityInfo,
		Outcome:   audit.OutcomeSuccess,
		Actor: audit.Actor{
			ID:    actorID,
			Type:  "user",
			Roles: actorRoles,
		},
		Target: &audit.Target{
			ID:   target,
			Type: "attribution_state",
		},
		Source: audit.Source{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		},
		Action:    action,
		RequestID: hctx.RequestID,
	})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// publishEvent fires the optional NATS event-publishing side channel:
// it never blocks the response and a publish failure is logged, not
// surfaced to the caller.
func (h *Handler) publishEvent(r *http.Request, publish func(ctx context.Context) error) {
	if h.Events == nil {
		return
	}
	if err := publish(r.Context()); err != nil {
		logging.Warn().Err(err).Msg("event publish failed")
	}
}

func boolString(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
