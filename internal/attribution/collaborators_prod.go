// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

// SystemClock is the production Clock: a thin wrapper over time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// MathRng is the production Rng, backed by math/rand's default source.
// It is not cryptographically secure; nothing in the engine's use of
// Rng (epoch origin sampling, credit allocation tie-breaking) requires
// that property, only that draws are uniform over [0, 1).
type MathRng struct {
	r *rand.Rand
}

// NewMathRng constructs a MathRng seeded from the current time.
func NewMathRng() *MathRng {
	return &MathRng{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Float64 returns a pseudo-random value in [0, 1).
func (m *MathRng) Float64() float64 { return m.r.Float64() }

// StubSiteCanonicalizer reduces a raw host or URL to a registrable site
// by stripping scheme, port, userinfo, path, and a leading "www.". This
// is intentionally not a full Public Suffix List implementation (site
// canonicalization is an explicit spec non-goal); it is enough to group
// impressions and conversions by the host the caller actually asserted.
type StubSiteCanonicalizer struct{}

// Canonicalize implements SiteCanonicalizer.
func (StubSiteCanonicalizer) Canonicalize(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("site: empty input")
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("site: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("site: %q has no host", raw)
	}

	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host, nil
}
