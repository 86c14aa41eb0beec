// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import "sync"

// store is the ordered, append-only impression log (component 4.1 of the
// design). Append is O(1) amortized; filterInPlace backs expiry,
// ClearImpressionsForSite, and forget-visits. Iteration order follows
// arrival order (invariant I1) and matching depends on that determinism.
type store struct {
	mu     sync.Mutex
	items  []*Impression
	nextID uint64
}

func newStore() *store {
	return &store{}
}

func (s *store) append(imp *Impression) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	imp.id = s.nextID
	s.items = append(s.items, imp)
}

// filterInPlace keeps only the impressions for which keep returns true,
// preserving relative order.
func (s *store) filterInPlace(keep func(*Impression) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, imp := range s.items {
		if keep(imp) {
			kept = append(kept, imp)
		}
	}
	s.items = kept
}

// snapshot returns the impression log as a defensive copy, used by the
// read-only Impressions() accessor and by clearImpressionsForSite's
// non-destructive narrowing, which must not alias the caller's view.
func (s *store) snapshot() []Impression {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Impression, len(s.items))
	for i, imp := range s.items {
		out[i] = imp.clone()
	}
	return out
}

// withItems invokes fn with the current impression slice under the
// store's lock. fn must not retain the slice past the call: it is used
// by the matcher to iterate without taking a full snapshot copy on every
// conversion.
func (s *store) withItems(fn func([]*Impression)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.items)
}

func (s *store) clearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// clearForSite implements §4.1's clearImpressionsForSite predicate: an
// impression is dropped if the site is its (unintermediated) impression
// site, its intermediary, or the last remaining member of its
// conversion-sites/conversion-callers constraint set. Narrowing a
// still-non-empty constraint set is a permitted in-place mutation of the
// surviving impression, not a removal.
func (s *store) clearForSite(site Site) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, imp := range s.items {
		_, inConversionSites := imp.ConversionSites[site]
		emptiesConversionSites := inConversionSites && len(imp.ConversionSites) == 1

		_, inConversionCallers := imp.ConversionCallers[site]
		emptiesConversionCallers := inConversionCallers && len(imp.ConversionCallers) == 1

		remove := (imp.IntermediarySite == "" && imp.ImpressionSite == site) ||
			imp.IntermediarySite == site ||
			emptiesConversionSites ||
			emptiesConversionCallers

		if remove {
			continue
		}

		if inConversionSites {
			delete(imp.ConversionSites, site)
		}
		if inConversionCallers {
			delete(imp.ConversionCallers, site)
		}
		kept = append(kept, imp)
	}
	s.items = kept
}
