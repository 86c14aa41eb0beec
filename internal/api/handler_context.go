// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
handler_context.go provides helpers for extracting and using
authentication context in API handlers. It integrates with
internal/authz's Casbin enforcer to provide easy-to-use authorization
checks.

Usage:

	func (h *Handler) SomeHandler(w http.ResponseWriter, r *http.Request) {
	    hctx := GetHandlerContext(r)
	    if err := hctx.RequireEditor(); err != nil {
	        RespondAuthError(w, err)
	        return
	    }
	    // ... proceed with handler logic
	}
*/
package api

import (
	"errors"
	"net/http"

	"github.com/attributiond/backend/internal/auth"
	"github.com/attributiond/backend/internal/authz"
)

// HandlerContext provides request-scoped authorization context for
// handlers. It encapsulates the authenticated caller's identity and
// role information.
type HandlerContext struct {
	// Subject is the authenticated caller from the request context.
	// May be nil for unauthenticated requests.
	Subject *auth.AuthSubject

	// CallerID is the unique identifier for the authenticated caller.
	// Empty string for unauthenticated requests.
	CallerID string

	// IsAdmin indicates whether the caller has the admin role.
	IsAdmin bool

	// IsEditor indicates whether the caller has the editor role or
	// higher. Editors inherit viewer permissions and can mutate
	// attribution state (save impressions, measure conversions,
	// clear state).
	IsEditor bool

	// EffectiveRole is the caller's effective role (viewer, editor,
	// admin).
	EffectiveRole string

	// RequestID is the unique identifier for this request.
	RequestID string

	enforcer *authz.Enforcer
}

// GetHandlerContext extracts the authentication context from an HTTP
// request. Returns a non-nil HandlerContext even for unauthenticated
// requests; check IsAuthenticated() before trusting identity fields.
func GetHandlerContext(r *http.Request) *HandlerContext {
	subject := auth.GetAuthSubject(r.Context())

	hctx := &HandlerContext{
		Subject:   subject,
		RequestID: r.Header.Get("X-Request-ID"),
	}

	if subject != nil {
		hctx.CallerID = subject.ID
		hctx.IsAdmin = subject.HasRole(RoleAdmin)
		hctx.IsEditor = subject.HasRole(RoleEditor) || hctx.IsAdmin

		switch {
		case hctx.IsAdmin:
			hctx.EffectiveRole = RoleAdmin
		case hctx.IsEditor:
			hctx.EffectiveRole = RoleEditor
		default:
			hctx.EffectiveRole = RoleViewer
		}
	}

	return hctx
}

// GetHandlerContextWithEnforcer extracts authentication context and
// wires the Casbin enforcer for object/action-level checks (aggregation
// service allow-listing, per-route authorization).
func GetHandlerContextWithEnforcer(r *http.Request, enforcer *authz.Enforcer) *HandlerContext {
	hctx := GetHandlerContext(r)
	hctx.enforcer = enforcer
	return hctx
}

// IsAuthenticated returns true if the request has valid authentication.
func (hctx *HandlerContext) IsAuthenticated() bool {
	return hctx != nil && hctx.Subject != nil
}

// HasRole checks if the caller has a specific role or higher.
// Role hierarchy: admin > editor > viewer.
func (hctx *HandlerContext) HasRole(role string) bool {
	if hctx == nil || hctx.Subject == nil {
		return false
	}
	switch role {
	case RoleAdmin:
		return hctx.IsAdmin
	case RoleEditor:
		return hctx.IsEditor
	case RoleViewer:
		return true
	default:
		return false
	}
}

// RequireAdmin returns an error if the caller is not an admin.
func (hctx *HandlerContext) RequireAdmin() error {
	if hctx == nil || hctx.Subject == nil {
		return ErrNotAuthenticated
	}
	if !hctx.IsAdmin {
		return ErrNotAuthorized
	}
	return nil
}

// RequireEditor returns an error if the caller is not an editor or
// admin. Used to gate the attribution engine's mutating operations
// (save_impression, measure_conversion, clear_state, set_enabled).
func (hctx *HandlerContext) RequireEditor() error {
	if hctx == nil || hctx.Subject == nil {
		return ErrNotAuthenticated
	}
	if !hctx.IsEditor {
		return ErrNotAuthorized
	}
	return nil
}

// Authorize enforces a Casbin object/action check for the caller
// using the enforcer passed to GetHandlerContextWithEnforcer. Falls
// back to a role-only check if no enforcer was wired.
func (hctx *HandlerContext) Authorize(object, action string) error {
	if hctx == nil || hctx.Subject == nil {
		return ErrNotAuthenticated
	}
	if hctx.enforcer == nil {
		return hctx.RequireEditor()
	}
	allowed, err := hctx.enforcer.EnforceWithRoles(hctx.Subject.ID, hctx.Subject.Roles, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrNotAuthorized
	}
	return nil
}

// Handler authorization errors.
var (
	// ErrNotAuthenticated is returned when authentication is required
	// but not present.
	ErrNotAuthenticated = &AuthError{
		Code:       "AUTH_REQUIRED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrNotAuthorized is returned when the caller lacks permission
	// for the action.
	ErrNotAuthorized = &AuthError{
		Code:       "FORBIDDEN",
		Message:    "Access denied: insufficient permissions",
		StatusCode: http.StatusForbidden,
	}
)

// AuthError represents a structured error for authorization failures.
// This is separate from APIError (in response.go) to avoid conflicts.
type AuthError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return e.Message
}

// RespondAuthError writes an authorization error response.
func RespondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		WriteError(w, r, authErr.StatusCode, authErr.Code, authErr.Message)
		return
	}
	WriteError(w, r, http.StatusForbidden, "FORBIDDEN", "Access denied")
}
