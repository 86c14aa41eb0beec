// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import "time"

// Impressions returns a defensive snapshot of every currently-recorded
// impression, in arrival order, for introspection and debugging
// endpoints. Callers must not assume this is cheap; it deep-copies every
// impression's constraint sets.
func (e *Engine) Impressions() []Impression {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.snapshot()
}

// PrivacyBudgetEntries returns a snapshot of every non-default privacy
// budget cell currently tracked by the ledger.
func (e *Engine) PrivacyBudgetEntries() []BudgetEntrySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.snapshot()
}

// EpochStarts returns a snapshot of the sampled epoch origin for every
// site the engine has observed.
func (e *Engine) EpochStarts() map[Site]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.oracle.snapshot()
}

// LastBrowsingHistoryClear returns the instant ClearState was last
// invoked, or nil if it never has been.
func (e *Engine) LastBrowsingHistoryClear() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.LastBrowsingHistoryClear == nil {
		return nil
	}
	t := *e.state.LastBrowsingHistoryClear
	return &t
}

// AggregationServices returns the configured aggregation service
// descriptors, keyed by normalized URL.
func (e *Engine) AggregationServices() map[string]AggregationService {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]AggregationService, len(e.aggs))
	for k, v := range e.aggs {
		out[k] = v
	}
	return out
}

// Enabled reports whether SaveImpression and MeasureConversion are
// currently taking effect.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Enabled
}
