// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import (
	"testing"
	"time"
)

func TestEpochOracleOriginIsStableAfterFirstSample(t *testing.T) {
	o := newEpochOracle(24*time.Hour, &sequenceRng{draws: []float64{0.25}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := o.originFor("a.example", now)
	second := o.originFor("a.example", now.Add(48*time.Hour))

	if !first.Equal(second) {
		t.Fatalf("origin changed between calls: %v != %v", first, second)
	}
}

func TestEpochOracleDistinctSitesDoNotShareOrigin(t *testing.T) {
	o := newEpochOracle(24*time.Hour, &sequenceRng{draws: []float64{0.1, 0.9}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := o.originFor("a.example", now)
	b := o.originFor("b.example", now)

	if a.Equal(b) {
		t.Fatalf("expected distinct origins for distinct sites, got the same instant")
	}
}

func TestEpochOraclePanicsOnOutOfRangeDraw(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-range Rng draw")
		}
	}()
	o := newEpochOracle(24*time.Hour, &sequenceRng{draws: []float64{1.0}})
	o.originFor("a.example", time.Now())
}

func TestEpochIndexIsFloorDivision(t *testing.T) {
	o := newEpochOracle(24*time.Hour, &sequenceRng{draws: []float64{0}})
	origin := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o.originFor("a.example", origin)

	if got := o.epochIndex("a.example", origin); got != 0 {
		t.Errorf("epochIndex at origin = %d, want 0", got)
	}
	if got := o.epochIndex("a.example", origin.Add(23*time.Hour)); got != 0 {
		t.Errorf("epochIndex within first period = %d, want 0", got)
	}
	if got := o.epochIndex("a.example", origin.Add(25*time.Hour)); got != 1 {
		t.Errorf("epochIndex into second period = %d, want 1", got)
	}
	if got := o.epochIndex("a.example", origin.Add(-1*time.Hour)); got != -1 {
		t.Errorf("epochIndex before origin = %d, want -1", got)
	}
}

func TestStartEpochQuarantinesAfterClear(t *testing.T) {
	o := newEpochOracle(24*time.Hour, &sequenceRng{draws: []float64{0}})
	origin := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o.originFor("a.example", origin)

	now := origin.Add(240 * time.Hour) // epoch 10
	clear := origin.Add(72 * time.Hour) // epoch 3

	got := o.startEpoch("a.example", now, 30*24*time.Hour, &clear)
	if got != 5 { // clearEpoch(3) + 2
		t.Errorf("startEpoch = %d, want 5 (clearEpoch+2)", got)
	}
}

func TestStartEpochUsesLookbackWhenLaterThanClear(t *testing.T) {
	o := newEpochOracle(24*time.Hour, &sequenceRng{draws: []float64{0}})
	origin := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o.originFor("a.example", origin)

	now := origin.Add(240 * time.Hour) // epoch 10
	clear := origin.Add(24 * time.Hour) // epoch 1, clearEpoch+2 = 3

	got := o.startEpoch("a.example", now, 5*24*time.Hour, &clear) // earliest = epoch 5
	if got != 5 {
		t.Errorf("startEpoch = %d, want 5 (lookback bound dominates)", got)
	}
}

func TestForgetSiteResamplesOrigin(t *testing.T) {
	o := newEpochOracle(24*time.Hour, &sequenceRng{draws: []float64{0.1, 0.9}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := o.originFor("a.example", now)
	o.forgetSite("a.example")
	second := o.originFor("a.example", now)

	if first.Equal(second) {
		t.Fatalf("expected a fresh origin after forgetSite")
	}
}
