// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package eventprocessor publishes attribution domain events
// (impression_saved, conversion_measured, state_cleared) to NATS
// JetStream via Watermill, for host-side fan-out to downstream
// consumers such as a separate aggregation-service submitter.
//
// This is a side channel off the internal/attribution.Engine façade:
// the engine itself never imports this package or depends on its
// availability. It is compiled in only with the "nats" build tag; the
// default build links the stub in publisher_stub.go, whose methods all
// return ErrNATSNotEnabled.
//
// Site identifiers are hashed with SHA-256 before publish (see
// events.go's HashSite) so that cross-site browsing data never reaches
// the message bus in the clear.
package eventprocessor
