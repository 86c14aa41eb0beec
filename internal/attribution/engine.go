// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import (
	"net/url"
	"sync"
	"time"
)

// DefaultMaxConversionEpsilon is the compile-time MAX_CONVERSION_EPSILON
// constant from §6: the hard ceiling no single conversion's epsilon may
// exceed, independent of the per-cell configured budget. It is exposed
// as a config default (not a Go const) so tests can override it without
// forking the package, but production callers should leave it alone.
const DefaultMaxConversionEpsilon = 1.0

// EngineConfig holds the construction-time limits of §6: everything
// fixed for the lifetime of an Engine.
type EngineConfig struct {
	MaxConversionSitesPerImpression   int
	MaxConversionCallersPerImpression int
	MaxCreditSize                     int
	MaxLookbackDays                   int
	MaxHistogramSize                  int
	PrivacyBudgetMicroEpsilons        uint64
	PrivacyBudgetEpoch                time.Duration
	MaxConversionEpsilon              float64

	DefaultMatchValue   uint64
	DefaultLifetimeDays int
	DefaultPriority     int32
	DefaultEpsilon      float64
	DefaultValue        int64
	DefaultMaxValue     int64

	// IncludeUnencryptedHistogram is a test/debug toggle; when true,
	// MeasureConversionResult carries the plaintext histogram alongside
	// the encrypted report.
	IncludeUnencryptedHistogram bool
}

// Collaborators holds the engine's injected, non-deterministic or
// I/O-capable dependencies (§6). All four are required.
type Collaborators struct {
	Clock               Clock
	Rng                 Rng
	Encryptor           Encryptor
	SiteCanonicalizer   SiteCanonicalizer
	AggregationServices map[string]AggregationService
}

// Engine is the Attribution Backend façade: saveImpression,
// measureConversion, clearImpressionsForSite, clearState,
// clearExpiredImpressions, set_enabled, and the read-only accessors.
//
// Engine is not safe for concurrent use by multiple goroutines calling
// different methods at once (§5: the engine is single-threaded
// cooperative and expects the host to serialize). Its internal mutex
// exists only to make "serialize calls" a documented requirement rather
// than a silent data race when a host gets it wrong; it is not a
// substitute for host-side serialization guarantees like ordering.
type Engine struct {
	mu sync.Mutex

	cfg   EngineConfig
	clock Clock
	rng   Rng
	enc   Encryptor
	canon SiteCanonicalizer
	aggs  map[string]AggregationService

	store  *store
	oracle *epochOracle
	ledger *ledger
	state  GlobalState
}

// New constructs an Engine. Every aggregation service key must already
// be in normalized URL form (url.Parse then re-stringify, unchanged); a
// non-normalized key is a construction-time fatal error per §6.
func New(cfg EngineConfig, collab Collaborators) (*Engine, error) {
	if collab.Clock == nil || collab.Rng == nil || collab.Encryptor == nil || collab.SiteCanonicalizer == nil {
		return nil, invalidState("New", "Clock, Rng, Encryptor, and SiteCanonicalizer are all required")
	}
	for key := range collab.AggregationServices {
		if !isNormalizedURL(key) {
			return nil, invalidState("New", "aggregation service key %q is not a normalized URL", key)
		}
	}

	aggs := make(map[string]AggregationService, len(collab.AggregationServices))
	for k, v := range collab.AggregationServices {
		aggs[k] = v
	}

	return &Engine{
		cfg:    cfg,
		clock:  collab.Clock,
		rng:    collab.Rng,
		enc:    collab.Encryptor,
		canon:  collab.SiteCanonicalizer,
		aggs:   aggs,
		store:  newStore(),
		oracle: newEpochOracle(cfg.PrivacyBudgetEpoch, collab.Rng),
		ledger: newLedger(cfg.PrivacyBudgetMicroEpsilons, cfg.MaxConversionEpsilon),
		state:  GlobalState{Enabled: true},
	}, nil
}

func isNormalizedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.String() == raw
}

func (e *Engine) maxLookback() time.Duration {
	return time.Duration(e.cfg.MaxLookbackDays) * 24 * time.Hour
}

func (e *Engine) canonicalize(op, raw string) (Site, error) {
	if raw == "" {
		return "", invalidSyntax(op, "site must not be empty")
	}
	s, err := e.canon.Canonicalize(raw)
	if err != nil {
		return "", invalidSyntax(op, "site %q does not canonicalize: %w", raw, err)
	}
	if s == "" {
		return "", invalidSyntax(op, "site %q canonicalizes to the empty string", raw)
	}
	return Site(s), nil
}

func (e *Engine) canonicalizeSet(op string, raw []string, max int) (map[Site]struct{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw) > max {
		return nil, outOfRange(op, "set of size %d exceeds limit %d", len(raw), max)
	}
	out := make(map[Site]struct{}, len(raw))
	for _, r := range raw {
		s, err := e.canonicalize(op, r)
		if err != nil {
			return nil, err
		}
		out[s] = struct{}{}
	}
	return out, nil
}
