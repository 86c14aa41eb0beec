// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import "time"

// SaveImpressionInput is the validated-on-entry argument to
// Engine.SaveImpression (§6). Zero-valued optional fields take the
// engine's configured defaults.
type SaveImpressionInput struct {
	ImpressionSite   string
	IntermediarySite string // empty means absent

	ConversionSites   []string // empty means "any"
	ConversionCallers []string // empty means "any"

	MatchValue *uint64 // nil -> DefaultMatchValue
	Timestamp  *time.Time // nil -> clock.Now()
	Lifetime   *time.Duration // nil -> DefaultLifetimeDays
	Priority   *int32 // nil -> DefaultPriority

	// HistogramIndex selects which bucket of a future conversion's
	// histogram this impression contributes to if it is later matched
	// and credited. Must be within [0, MaxHistogramSize); defaults to 0.
	HistogramIndex *int
}

// SaveImpressionResult reports whether the impression was actually
// recorded; Saved is false only when the engine is disabled.
type SaveImpressionResult struct {
	Saved bool
}

// MeasureConversionInput is the validated-on-entry argument to
// Engine.MeasureConversion (§6).
type MeasureConversionInput struct {
	TopLevelSite     string
	IntermediarySite string // empty means absent

	ImpressionSites   []string // empty means "any"
	ImpressionCallers []string // empty means "any"
	MatchValues       []uint64 // empty means "any"

	Lookback *time.Duration // nil -> MaxLookbackDays

	// HistogramSize is the required length of the emitted histogram
	// (§6's histogram_size). Validated to [1, MaxHistogramSize]; every
	// histogram this call returns, encrypted or not, has exactly this
	// length (I4/P1).
	HistogramSize int

	// Credit is the per-impression weight vector consumed in ranked
	// order (highest priority/most recent first); its length caps the
	// number of impressions that can receive credit for this
	// conversion (Step B truncation).
	Credit []float64

	Value    *int64   // nil -> DefaultValue
	MaxValue *int64   // nil -> DefaultMaxValue
	Epsilon  *float64 // nil -> DefaultEpsilon

	AggregationService string
}

// MeasureConversionResult is the outcome of a conversion measurement.
// EncryptedReport is always populated (with a zeroed histogram if the
// privacy budget was exhausted or the engine is disabled); Histogram is
// only populated when the engine is configured with
// IncludeUnencryptedHistogram.
type MeasureConversionResult struct {
	EncryptedReport []byte
	Histogram       []int64
	BudgetExhausted bool
}
