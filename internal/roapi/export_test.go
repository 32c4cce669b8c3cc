package roapi

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type MockTimeProvider struct {
	CurrentTime int64
}

func (m MockTimeProvider) Now() time.Time {
	return time.UnixMilli(m.CurrentTime)
}

// WithVignetteURL overrides the public vignette endpoint URL.
func WithVignetteURL(url string) Options {
	return func(o *options) {
		o.vignetteURL = url
	}
}

// WithVignetteTimeout overrides the vignette call timeout.
func WithVignetteTimeout(d time.Duration) Options {
	return func(o *options) {
		o.vignetteTimeout = d
	}
}

// WithPrivateTimeout overrides the RCA/ITP call timeout.
func WithPrivateTimeout(d time.Duration) Options {
	return func(o *options) {
		o.privateTimeout = d
	}
}

// WithHTTPClient overrides the HTTP client used for calls.
func WithHTTPClient(c *http.Client) Options {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLimiter overrides the private endpoints rate limiter.
func WithLimiter(l *rate.Limiter) Options {
	return func(o *options) {
		o.limiter = l
	}
}

// WithTimeProvider overrides the time provider used for anti-cache tokens.
func WithTimeProvider(tp timeProvider) Options {
	return func(o *options) {
		o.timeProvider = tp
	}
}

// NormalizeEndpoint exposes endpoint normalization for tests.
func NormalizeEndpoint(base, suffix string) string {
	return normalizeEndpoint(base, suffix)
}

// CacheBuster exposes anti-cache token generation for tests.
func CacheBuster(now time.Time) string {
	return cacheBuster(now)
}

// Endpoint exposes the computed endpoint of the private clients for tests.
func (c *RCAClient) Endpoint() string { return c.client.endpoint }

// Endpoint exposes the computed endpoint of the private clients for tests.
func (c *ITPClient) Endpoint() string { return c.client.endpoint }
