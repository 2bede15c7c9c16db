package model

import (
	"net/url"
	"strings"
	"time"
)

const (
	DefaultInstanceID      = "default"
	DefaultScanIntervalSec = 300

	redactedValue = "**REDACTED**"
)

// Options is the normalized connection profile for one BookStack instance.
// It is immutable for the lifetime of a session.
type Options struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	TokenID         string `json:"token_id"`
	TokenSecret     string `json:"token_secret"`
	ScanIntervalSec int    `json:"scan_interval"`
	PerShelfEnabled bool   `json:"per_shelf_enabled"`
}

// PollInterval returns the refresh cadence, falling back to the default
// when the configured value is not positive.
func (o Options) PollInterval() time.Duration {
	if o.ScanIntervalSec <= 0 {
		return DefaultScanIntervalSec * time.Second
	}
	return time.Duration(o.ScanIntervalSec) * time.Second
}

// BaseURL returns the instance URL without trailing slashes. Missing schemes
// default to https.
func (o Options) BaseURL() string {
	raw := strings.TrimSpace(o.URL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/")
}

// AuthorizationHeader builds the BookStack token header value.
func (o Options) AuthorizationHeader() string {
	return "Token " + o.TokenID + ":" + o.TokenSecret
}

// Redacted returns a copy safe for logs and diagnostics.
func (o Options) Redacted() Options {
	if o.TokenID != "" {
		o.TokenID = redactedValue
	}
	if o.TokenSecret != "" {
		o.TokenSecret = redactedValue
	}
	return o
}
