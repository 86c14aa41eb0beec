// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides HTTP handlers over the attribution engine.
//
// errors.go maps internal/attribution's typed errors to HTTP status
// codes and a uniform JSON error body.
package api

import (
	"errors"
	"net/http"

	"github.com/attributiond/backend/internal/attribution"
)

// ErrEngineUnavailable is returned by handlers when the engine
// dependency was not wired (a construction-time bug, not a request
// error).
var ErrEngineUnavailable = errors.New("attribution engine is not configured")

// statusFor maps an attribution.Kind to the HTTP status code a client
// should see. Unrecognized errors map to 500.
func statusFor(err error) int {
	var attrErr *attribution.Error
	if errors.As(err, &attrErr) {
		switch attrErr.Kind {
		case attribution.KindInvalidSyntax, attribution.KindOutOfRange:
			return http.StatusBadRequest
		case attribution.KindUnknownReference:
			return http.StatusNotFound
		case attribution.KindInvalidState:
			return http.StatusInternalServerError
		case attribution.KindDisabled:
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}
