// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package eventprocessor

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version.
const SchemaVersion = 1

// EventKind identifies which façade operation produced an event.
type EventKind string

const (
	EventKindImpressionSaved     EventKind = "impression_saved"
	EventKindConversionMeasured  EventKind = "conversion_measured"
	EventKindStateCleared        EventKind = "state_cleared"
)

// AttributionEvent is the canonical event format published for
// host-side fan-out. Site is never carried in the clear: SiteHash
// holds a SHA-256 digest of the registrable site instead.
type AttributionEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	Kind          EventKind `json:"kind"`
	SiteHash      string    `json:"site_hash"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewAttributionEvent builds an event with a unique ID, timestamp, and
// schema version, hashing site with HashSite.
func NewAttributionEvent(kind EventKind, site string) *AttributionEvent {
	return &AttributionEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Kind:          kind,
		SiteHash:      HashSite(site),
		Timestamp:     time.Now().UTC(),
	}
}

// HashSite returns the hex-encoded SHA-256 digest of a registrable
// site, so cross-site browsing data never leaves the process in the
// clear.
func HashSite(site string) string {
	sum := sha256.Sum256([]byte(site))
	return hex.EncodeToString(sum[:])
}

// Topic returns the NATS subject for this event.
// Format: attribution.<kind>
func (e *AttributionEvent) Topic() string {
	return "attribution." + string(e.Kind)
}
