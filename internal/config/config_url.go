// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validateHTTPURL ensures rawURL is a well-formed absolute HTTP(S) URL.
func validateHTTPURL(field, rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%s: must not be empty", field)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s: invalid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}

// validateNATSURL ensures rawURL is a well-formed nats:// or tls:// URL.
func validateNATSURL(field, rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%s: must not be empty", field)
	}
	if !strings.HasPrefix(rawURL, "nats://") && !strings.HasPrefix(rawURL, "tls://") {
		return fmt.Errorf("%s: must start with nats:// or tls://, got %q", field, rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s: invalid URL: %w", field, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}
