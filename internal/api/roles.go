// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

// Role names used throughout authentication and authorization. These
// match the roles named in internal/authz's embedded Casbin policy.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)
