// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package aggregation provides the production internal/attribution.Encryptor:
// a network call to an aggregation service's report endpoint, guarded by
// a circuit breaker so a slow or down service degrades the conversion
// call into a typed error instead of hanging the engine. The wire
// format of the "encrypted" payload delivered to the aggregation
// service is intentionally out of scope (spec Non-goals: wire encoding,
// transport/delivery) — this client hands the histogram to the
// configured endpoint as an opaque JSON envelope and returns whatever
// bytes it gets back, unmodified, as the report.
package aggregation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/attributiond/backend/internal/logging"
)

// Config configures the default aggregation service the Encryptor
// delivers histograms to.
type Config struct {
	// Endpoint is the report-submission URL of the default aggregation
	// service. Required unless Encryptor is only ever used in tests.
	Endpoint string
	// Timeout bounds each submission call.
	Timeout time.Duration
}

// Encryptor implements internal/attribution.Encryptor by POSTing the
// histogram to the configured aggregation endpoint. It is not an actual
// encryption scheme — see the package doc.
type Encryptor struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[interface{}]
}

// NewEncryptor constructs an Encryptor wrapped in a circuit breaker.
func NewEncryptor(cfg Config) *Encryptor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Encryptor{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newCircuitBreaker(),
	}
}

// newCircuitBreaker configures gobreaker the same way the
// eventprocessor publisher does: five consecutive
// failures trip the breaker open for 10s, with up to 3 probe requests
// allowed through while half-open.
func newCircuitBreaker() *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "aggregation-encryptor",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

type reportEnvelope struct {
	Histogram []int64 `json:"histogram"`
}

// Encrypt submits histogram to the configured aggregation endpoint and
// returns the response body as the opaque report. When no endpoint is
// configured (e.g. a local/offline deployment), it falls back to a
// JSON-marshaled envelope with no network call — this keeps the engine
// usable without an aggregation service wired, at the cost of not
// actually protecting the histogram in transit.
func (e *Encryptor) Encrypt(histogram []int64) ([]byte, error) {
	if e.cfg.Endpoint == "" {
		return json.Marshal(reportEnvelope{Histogram: histogram})
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.submit(histogram)
	})
	if err != nil {
		logging.Error().Err(err).Str("endpoint", e.cfg.Endpoint).Msg("aggregation service submission failed")
		return nil, fmt.Errorf("aggregation: submit report: %w", err)
	}
	return result.([]byte), nil
}

func (e *Encryptor) submit(histogram []int64) ([]byte, error) {
	body, err := json.Marshal(reportEnvelope{Histogram: histogram})
	if err != nil {
		return nil, fmt.Errorf("marshal report envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("aggregation service returned status %d", resp.StatusCode)
	}
	return respBody, nil
}
