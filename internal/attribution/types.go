// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import "time"

// Site is a canonical registrable site (eTLD+1 form of a host name).
// Every Site value entering the engine has already passed through the
// injected SiteCanonicalizer; the engine never canonicalizes partially.
type Site string

// Impression is an append-only record that an ad was shown, tied to the
// site where it was shown. It is immutable after creation except for
// ConversionSites and ConversionCallers, which may be narrowed in place
// by ClearImpressionsForSite.
type Impression struct {
	// id disambiguates impressions with otherwise identical fields and
	// preserves arrival order (invariant I1) independent of slice
	// mutation during filtering.
	id uint64

	ImpressionSite   Site
	IntermediarySite Site // empty means absent

	// ConversionSites and ConversionCallers are nil or empty to mean
	// "any". A non-nil, non-empty map constrains matching to sites it
	// contains.
	ConversionSites   map[Site]struct{}
	ConversionCallers map[Site]struct{}

	MatchValue     uint64
	Timestamp      time.Time
	Lifetime       time.Duration
	HistogramIndex int
	Priority       int32
}

// Expired reports whether the impression can no longer contribute to
// matching as of now (invariant I2).
func (imp *Impression) Expired(now time.Time) bool {
	return now.After(imp.Timestamp.Add(imp.Lifetime))
}

// clone returns a deep copy suitable for handing to callers outside the
// engine's lock (read-only accessors must never leak internal maps).
func (imp *Impression) clone() Impression {
	out := *imp
	out.ConversionSites = cloneSiteSet(imp.ConversionSites)
	out.ConversionCallers = cloneSiteSet(imp.ConversionCallers)
	return out
}

func cloneSiteSet(in map[Site]struct{}) map[Site]struct{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[Site]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

// GlobalState holds the engine's coarse-grained lifecycle flags: whether
// side-effectful writes are enabled, and when browsing history was last
// cleared (used to quarantine epochs after a clear, see EpochOracle).
type GlobalState struct {
	Enabled                  bool
	LastBrowsingHistoryClear *time.Time
}

// AggregationService describes a configured recipient of encrypted
// histograms, keyed by its normalized URL. The descriptor is opaque to
// the engine; it exists so construction can fail fast if a caller wires
// an aggregation service the Encryptor collaborator doesn't recognize.
type AggregationService struct {
	Name string
}
