// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package api provides the HTTP REST surface over the attribution engine.

It exposes a small number of endpoints under /v1, assembled by
router.go:

  - POST /v1/impressions — save_impression
  - POST /v1/conversions — measure_conversion
  - POST /v1/state/clear — clear_state
  - POST /v1/sites/{site}/clear — clear_impressions_for_site
  - POST /v1/engine/enabled — set_enabled (admin only)
  - GET  /v1/state — introspection accessors
  - GET  /v1/audit/* — audit trail (admin only)
  - GET  /health, /health/live, /health/ready

Handlers translate HTTP requests into internal/attribution calls,
translate the engine's typed errors into HTTP status codes (errors.go),
and publish an audit record for every state-mutating call
(handlers_attribution.go).
*/
package api
