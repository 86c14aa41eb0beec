// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import (
	"fmt"
	"time"
)

// fixedClock always returns the same instant.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// sequenceRng replays a fixed sequence of draws, looping once exhausted
// (tests that need more draws than they bothered to list get the last
// value repeated, which is fine for the deterministic branches they
// target).
type sequenceRng struct {
	draws []float64
	i     int
}

func (r *sequenceRng) Float64() float64 {
	if len(r.draws) == 0 {
		return 0
	}
	v := r.draws[r.i]
	if r.i < len(r.draws)-1 {
		r.i++
	}
	return v
}

// identityCanonicalizer treats every non-empty input as already
// canonical, rejecting only the sentinel "invalid".
type identityCanonicalizer struct{}

func (identityCanonicalizer) Canonicalize(raw string) (string, error) {
	if raw == "invalid" {
		return "", fmt.Errorf("not a valid site")
	}
	return raw, nil
}

// plaintextEncryptor "encrypts" by tagging the histogram with a fixed
// prefix so tests can assert on the exact bytes without a real codec.
type plaintextEncryptor struct{}

func (plaintextEncryptor) Encrypt(histogram []int64) ([]byte, error) {
	return []byte(fmt.Sprintf("report:%v", histogram)), nil
}

func testEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConversionSitesPerImpression:   5,
		MaxConversionCallersPerImpression: 5,
		MaxCreditSize:                     20,
		MaxLookbackDays:                   30,
		MaxHistogramSize:                  8,
		PrivacyBudgetMicroEpsilons:        1_000_000,
		PrivacyBudgetEpoch:                24 * time.Hour,
		MaxConversionEpsilon:              1.0,
		DefaultMatchValue:                 0,
		DefaultLifetimeDays:               30,
		DefaultPriority:                   0,
		DefaultEpsilon:                    0.5,
		DefaultValue:                      100,
		DefaultMaxValue:                   100,
		IncludeUnencryptedHistogram:       true,
	}
}

func newTestEngine(now time.Time, draws ...float64) *Engine {
	cfg := testEngineConfig()
	collab := Collaborators{
		Clock:             fixedClock{now: now},
		Rng:               &sequenceRng{draws: draws},
		Encryptor:         plaintextEncryptor{},
		SiteCanonicalizer: identityCanonicalizer{},
		AggregationServices: map[string]AggregationService{
			"https://agg.example/": {Name: "test-aggregator"},
		},
	}
	e, err := New(cfg, collab)
	if err != nil {
		panic(err)
	}
	return e
}
