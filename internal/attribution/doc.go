// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attribution implements the synchronous, single-threaded core of
// a browser-resident attribution measurement engine: it records
// impressions bound to a top-level site, matches impressions against
// conversion queries within randomized per-site privacy epochs, allocates
// integer credit across the surviving impressions, and enforces a
// per-site, per-epoch differential-privacy budget on every histogram it
// emits.
//
// The package has no I/O and no goroutines. Every exported method on
// Engine runs to completion before returning; callers (a browser host, or
// the HTTP façade in internal/api) are responsible for serializing calls
// the way a single browser profile would. Time and randomness are
// supplied entirely by the injected Clock and Rng collaborators so that
// behavior is reproducible in tests.
package attribution
