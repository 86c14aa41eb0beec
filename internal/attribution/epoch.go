// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import (
	"math"
	"sync"
	"time"
)

// epochOracle maps (site, instant) to an epoch index using a per-site
// randomized origin (component 4.2). The origin is global mutable state
// keyed by site, sampled lazily on first use from the injected Rng so
// that epoch rollovers are not globally observable and tests can pin the
// exact origin.
type epochOracle struct {
	mu     sync.Mutex
	period time.Duration
	rng    Rng
	origin map[Site]time.Time
}

func newEpochOracle(period time.Duration, rng Rng) *epochOracle {
	return &epochOracle{
		period: period,
		rng:    rng,
		origin: make(map[Site]time.Time),
	}
}

// originFor returns the sampled epoch origin for site, drawing a fresh
// one against instant if this is the first time the site is seen
// (invariant I5: stable thereafter until the site's state is forgotten).
func (o *epochOracle) originFor(site Site, instant time.Time) time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()

	if t, ok := o.origin[site]; ok {
		return t
	}

	p := o.rng.Float64()
	if p < 0 || p >= 1 {
		panic("attribution: Rng.Float64 returned a value outside [0, 1)")
	}

	t := instant.Add(-time.Duration(p * float64(o.period)))
	o.origin[site] = t
	return t
}

// epochIndex returns floor((instant - origin) / period) for site,
// sampling the origin on first use.
func (o *epochOracle) epochIndex(site Site, instant time.Time) int64 {
	origin := o.originFor(site, instant)
	delta := instant.Sub(origin)
	return int64(math.Floor(delta.Seconds() / o.period.Seconds()))
}

// startEpoch returns max(earliest, clearEpoch+2) per §4.2: earliest is
// the epoch index of now-maxLookback, and clearEpoch is the epoch index
// of lastClear (if any). The +2 quarantines the current and next full
// epoch after a browsing-history clear from attribution.
func (o *epochOracle) startEpoch(site Site, now time.Time, maxLookback time.Duration, lastClear *time.Time) int64 {
	earliest := o.epochIndex(site, now.Add(-maxLookback))
	if lastClear == nil {
		return earliest
	}
	clearEpoch := o.epochIndex(site, *lastClear)
	if clearEpoch+2 > earliest {
		return clearEpoch + 2
	}
	return earliest
}

// forgetSite drops the stored origin for site, so the next call samples
// a fresh one.
func (o *epochOracle) forgetSite(site Site) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.origin, site)
}

func (o *epochOracle) forgetAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.origin = make(map[Site]time.Time)
}

// forgetAllExcept drops every stored origin for a site not in sites, the
// complement of forgetSite used by clearState's PRESERVE mode.
func (o *epochOracle) forgetAllExcept(sites map[Site]struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for site := range o.origin {
		if _, ok := sites[site]; !ok {
			delete(o.origin, site)
		}
	}
}

// snapshot returns a copy of the epoch-start map for read-only
// introspection.
func (o *epochOracle) snapshot() map[Site]time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[Site]time.Time, len(o.origin))
	for k, v := range o.origin {
		out[k] = v
	}
	return out
}
