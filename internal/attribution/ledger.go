// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import (
	"math"
	"sync"
)

// budgetKey identifies a single privacy-budget cell.
type budgetKey struct {
	site  Site
	epoch int64
}

// budgetEntry is the per-(site, epoch) epsilon counter (invariant I3:
// remaining is monotonically non-increasing outside of clearState).
type budgetEntry struct {
	remaining uint64
}

// ledger is the Privacy Budget Ledger (component 4.5): a linear,
// keyed-by-(site,epoch) map of remaining micro-epsilon budget, searched
// in O(1) via the map rather than the reference implementation's linear
// scan (§9 explicitly permits this as long as semantics don't change).
type ledger struct {
	mu                   sync.Mutex
	entries              map[budgetKey]*budgetEntry
	configuredMicroBudget uint64
	maxConversionEpsilon float64
}

func newLedger(configuredMicroBudget uint64, maxConversionEpsilon float64) *ledger {
	return &ledger{
		entries:               make(map[budgetKey]*budgetEntry),
		configuredMicroBudget: configuredMicroBudget,
		maxConversionEpsilon:  maxConversionEpsilon,
	}
}

// newBudgetEntry seeds a fresh cell with the configured budget plus the
// undocumented 1000 micro-epsilon grace (§4.5, §9): this absorbs the
// first query's rounding and must be reproduced exactly, not "fixed".
func (l *ledger) newBudgetEntry() *budgetEntry {
	return &budgetEntry{remaining: l.configuredMicroBudget + 1000}
}

func (l *ledger) entryFor(key budgetKey) *budgetEntry {
	e, ok := l.entries[key]
	if !ok {
		e = l.newBudgetEntry()
		l.entries[key] = e
	}
	return e
}

// deduct attempts to pay for a histogram of the given value/maxValue
// emitted for (site, epoch), with sensitivity the given L1 norm if
// known, or 2*value (worst case) otherwise. It returns whether the
// deduction succeeded; on failure the cell is zeroized and any caller
// must replace the histogram it was about to emit with zeros.
func (l *ledger) deduct(site Site, epoch int64, epsilon float64, value, maxValue int64, l1Norm *int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entryFor(budgetKey{site, epoch})

	sensitivity := 2 * float64(value)
	if l1Norm != nil {
		sensitivity = float64(*l1Norm)
	}

	noiseScale := 2 * float64(maxValue) / epsilon
	raw := sensitivity / noiseScale

	if raw < 0 || raw > l.maxConversionEpsilon {
		e.remaining = 0
		return false
	}

	cost := uint64(math.Ceil(raw * 1_000_000))
	if cost > e.remaining {
		e.remaining = 0
		return false
	}

	e.remaining -= cost
	return true
}

// zero sets the budget cell for (site, epoch) to zero, creating it first
// if absent. Used by clearState's non-forgetting branch.
func (l *ledger) zero(site Site, epoch int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := budgetKey{site, epoch}
	e, ok := l.entries[key]
	if !ok {
		e = &budgetEntry{remaining: 0}
		l.entries[key] = e
		return
	}
	e.remaining = 0
}

func (l *ledger) clearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[budgetKey]*budgetEntry)
}

// dropSites removes every budget cell belonging to a site in sites.
func (l *ledger) dropSites(sites map[Site]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.entries {
		if _, ok := sites[key.site]; ok {
			delete(l.entries, key)
		}
	}
}

// keepOnlySites removes every budget cell whose site is not in sites
// (the complement of dropSites), used by clearState's PRESERVE mode.
func (l *ledger) keepOnlySites(sites map[Site]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.entries {
		if _, ok := sites[key.site]; !ok {
			delete(l.entries, key)
		}
	}
}

// BudgetEntrySnapshot is a read-only view of one ledger cell, returned by
// Engine.PrivacyBudgetEntries for introspection.
type BudgetEntrySnapshot struct {
	Site               Site
	Epoch              int64
	RemainingMicroEpsilons uint64
}

func (l *ledger) snapshot() []BudgetEntrySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]BudgetEntrySnapshot, 0, len(l.entries))
	for key, e := range l.entries {
		out = append(out, BudgetEntrySnapshot{
			Site:                   key.site,
			Epoch:                  key.epoch,
			RemainingMicroEpsilons: e.remaining,
		})
	}
	return out
}
