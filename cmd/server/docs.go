// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main provides the attribution measurement backend HTTP server.
//
// @title Attribution Measurement Backend API
// @version 1.0
// @description Browser-resident conversion measurement: impressions, epoch-scoped
// @description matching, fair credit allocation, and a differential-privacy budget
// @description ledger, exposed over a small HTTP surface.
// @description
// @description ## Authentication
// @description
// @description Mutating endpoints require authentication via JWT (Bearer token) or
// @description HTTP Basic Auth, depending on AUTH_MODE. Authorization is role-gated
// @description (viewer, editor, admin) through a Casbin RBAC policy.
// @description
// @description ## Rate Limiting
// @description
// @description Requests under /v1 are rate-limited per IP address; limits are
// @description configurable via RATE_LIMIT_REQS and RATE_LIMIT_WINDOW.
// @description
// @description ## Error Responses
// @description
// @description All error responses follow this format:
// @description ```json
// @description {
// @description   "success": false,
// @description   "error": {
// @description     "code": "ERROR_CODE",
// @description     "message": "Human-readable error message"
// @description   }
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/attributiond/backend/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:3857
// @BasePath /v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT bearer token. Obtain via the configured JWT issuance flow.
//
// @tag.name Attribution
// @tag.description save_impression, measure_conversion, and state management
//
// @tag.name Audit
// @tag.description Read-only audit trail of state-mutating calls
package main
