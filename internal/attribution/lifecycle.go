// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

// ClearStateMode selects which sites' recorded state survives a
// ClearState call (§4.6). Regardless of mode, the call always advances
// GlobalState.LastBrowsingHistoryClear, which quarantines the current
// and next epoch from future matching (see epochOracle.startEpoch).
type ClearStateMode int

const (
	// ClearStateModeDeleteAll wipes every impression, budget cell, and
	// sampled epoch origin. Sites is ignored.
	ClearStateModeDeleteAll ClearStateMode = iota
	// ClearStateModeDelete removes only the listed sites' data.
	ClearStateModeDelete
	// ClearStateModeKeep removes every site's data except the listed
	// sites' (the complement of ClearStateModeDelete).
	ClearStateModeKeep
)

// ClearStateInput is the argument to Engine.ClearState.
type ClearStateInput struct {
	Mode  ClearStateMode
	Sites []string // ignored when Mode is ClearStateModeDeleteAll
}

// ClearState implements component 4.6: the browsing-history-clear
// notification a host delivers when the user clears some or all of
// their history. It is the only operation permitted to reduce ledger
// `remaining` counters back upward (by dropping cells outright) or to
// re-sample an epoch origin.
func (e *Engine) ClearState(in ClearStateInput) error {
	const op = "ClearState"

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()

	switch in.Mode {
	case ClearStateModeDeleteAll:
		e.store.clearAll()
		e.ledger.clearAll()
		e.oracle.forgetAll()

	case ClearStateModeDelete:
		sites, err := e.canonicalizeSet(op, in.Sites, len(in.Sites))
		if err != nil {
			return err
		}
		e.store.filterInPlace(func(imp *Impression) bool {
			if _, ok := sites[imp.ImpressionSite]; ok {
				return false
			}
			if imp.IntermediarySite != "" {
				if _, ok := sites[imp.IntermediarySite]; ok {
					return false
				}
			}
			return true
		})
		e.ledger.dropSites(sites)
		for site := range sites {
			e.oracle.forgetSite(site)
		}

	case ClearStateModeKeep:
		sites, err := e.canonicalizeSet(op, in.Sites, len(in.Sites))
		if err != nil {
			return err
		}
		e.store.filterInPlace(func(imp *Impression) bool {
			if _, ok := sites[imp.ImpressionSite]; ok {
				return true
			}
			if imp.IntermediarySite != "" {
				if _, ok := sites[imp.IntermediarySite]; ok {
					return true
				}
			}
			return false
		})
		e.ledger.keepOnlySites(sites)
		e.oracle.forgetAllExcept(sites)

	default:
		return invalidState(op, "unknown ClearStateMode %d", in.Mode)
	}

	e.state.LastBrowsingHistoryClear = &now
	return nil
}

// ClearImpressionsForSite implements component 4.1's narrowing clear: it
// drops or narrows impressions touching site without affecting the
// privacy budget ledger, epoch origins, or LastBrowsingHistoryClear.
// Use this for a single-site data-deletion request; use ClearState for a
// browsing-history-clear notification.
func (e *Engine) ClearImpressionsForSite(rawSite string) error {
	const op = "ClearImpressionsForSite"

	e.mu.Lock()
	defer e.mu.Unlock()

	site, err := e.canonicalize(op, rawSite)
	if err != nil {
		return err
	}
	e.store.clearForSite(site)
	return nil
}

// ClearExpiredImpressions drops every impression whose lifetime has
// elapsed as of now (invariant I2). Hosts are expected to call this
// periodically; no façade operation implicitly expires impressions on
// its own.
func (e *Engine) ClearExpiredImpressions() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.store.filterInPlace(func(imp *Impression) bool {
		return !imp.Expired(now)
	})
}

// SetEnabled toggles whether SaveImpression and MeasureConversion
// actually mutate state (§4.6). Existing impressions, budget cells, and
// epoch origins are left untouched by the toggle itself.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Enabled = enabled
}
