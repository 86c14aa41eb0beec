// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

// requests.go defines the JSON request bodies accepted by the
// attribution handlers and their conversion into the engine's
// attribution.*Input structs. Fields mirror the engine inputs closely;
// defaulting is left to the engine (nil pointers mean "use the
// configured default").
package api

import (
	"time"

	"github.com/attributiond/backend/internal/attribution"
)

// SaveImpressionRequest is the JSON body for POST /v1/impressions.
type SaveImpressionRequest struct {
	ImpressionSite    string   `json:"impression_site" validate:"required"`
	IntermediarySite  string   `json:"intermediary_site,omitempty"`
	ConversionSites   []string `json:"conversion_sites,omitempty"`
	ConversionCallers []string `json:"conversion_callers,omitempty"`

	MatchValue     *uint64 `json:"match_value,omitempty"`
	TimestampUnix  *int64  `json:"timestamp_unix,omitempty"`
	LifetimeDays   *int    `json:"lifetime_days,omitempty" validate:"omitempty,min=0"`
	Priority       *int32  `json:"priority,omitempty"`
	HistogramIndex *int    `json:"histogram_index,omitempty" validate:"omitempty,min=0"`
}

func (req *SaveImpressionRequest) toInput() (in attribution.SaveImpressionInput) {
	in.ImpressionSite = req.ImpressionSite
	in.IntermediarySite = req.IntermediarySite
	in.ConversionSites = req.ConversionSites
	in.ConversionCallers = req.ConversionCallers
	in.MatchValue = req.MatchValue
	in.Priority = req.Priority
	in.HistogramIndex = req.HistogramIndex
	if req.TimestampUnix != nil {
		t := time.Unix(*req.TimestampUnix, 0).UTC()
		in.Timestamp = &t
	}
	if req.LifetimeDays != nil {
		d := time.Duration(*req.LifetimeDays) * 24 * time.Hour
		in.Lifetime = &d
	}
	return in
}

// MeasureConversionRequest is the JSON body for POST /v1/conversions.
type MeasureConversionRequest struct {
	TopLevelSite     string `json:"top_level_site" validate:"required"`
	IntermediarySite string `json:"intermediary_site,omitempty"`

	ImpressionSites   []string `json:"impression_sites,omitempty"`
	ImpressionCallers []string `json:"impression_callers,omitempty"`
	MatchValues       []uint64 `json:"match_values,omitempty"`

	LookbackDays *int `json:"lookback_days,omitempty" validate:"omitempty,min=0"`

	HistogramSize int `json:"histogram_size" validate:"required,min=1"`

	Credit []float64 `json:"credit" validate:"required,min=1"`

	Value    *int64   `json:"value,omitempty"`
	MaxValue *int64   `json:"max_value,omitempty"`
	Epsilon  *float64 `json:"epsilon,omitempty" validate:"omitempty,gt=0"`

	AggregationService string `json:"aggregation_service" validate:"required"`
}

func (req *MeasureConversionRequest) toInput() (in attribution.MeasureConversionInput) {
	in.TopLevelSite = req.TopLevelSite
	in.IntermediarySite = req.IntermediarySite
	in.ImpressionSites = req.ImpressionSites
	in.ImpressionCallers = req.ImpressionCallers
	in.MatchValues = req.MatchValues
	in.HistogramSize = req.HistogramSize
	in.Credit = req.Credit
	in.Value = req.Value
	in.MaxValue = req.MaxValue
	in.Epsilon = req.Epsilon
	in.AggregationService = req.AggregationService
	if req.LookbackDays != nil {
		d := time.Duration(*req.LookbackDays) * 24 * time.Hour
		in.Lookback = &d
	}
	return in
}

// ClearStateRequest is the JSON body for POST /v1/state/clear.
type ClearStateRequest struct {
	// Mode is one of "delete_all", "delete", "keep".
	Mode  string   `json:"mode" validate:"required,oneof=delete_all delete keep"`
	Sites []string `json:"sites,omitempty"`
}

// SetEnabledRequest is the JSON body for POST /v1/engine/enabled.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}
