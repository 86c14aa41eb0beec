// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import "time"

// Clock is the engine's only source of wall-clock time. Operations never
// call time.Now() directly so that tests can pin the instant a call
// observes.
type Clock interface {
	Now() time.Time
}

// Rng is the engine's only source of entropy. Implementations must
// return a value in the half-open interval [0, 1); the engine treats any
// other value as a fatal construction/usage error, since a biased or
// out-of-range draw would silently corrupt the epoch origin sampling
// (EpochOracle) and the fair credit allocation (fairlyAllocateCredit).
type Rng interface {
	Float64() float64
}

// Encryptor wraps a finished histogram into the opaque report bytes the
// host delivers to an aggregation service. The wire format is out of
// scope for this package (see spec §1 non-goals); the engine only needs
// to know that every histogram it finalizes, zeroed or not, passes
// through exactly one Encrypt call before being returned to the caller.
type Encryptor interface {
	Encrypt(histogram []int64) ([]byte, error)
}

// SiteCanonicalizer reduces a raw host/URL string to its registrable
// site (eTLD+1) form. A non-nil error means the input does not
// canonicalize to a non-empty registrable site.
type SiteCanonicalizer interface {
	Canonicalize(raw string) (string, error)
}
