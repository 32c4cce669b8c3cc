// Package roapi implements the clients for the three Romanian vehicle
// compliance subsystems: the public erovinieta vignette check, and the
// private RCA and ITP endpoints.
//
// The clients are stateless: each call performs exactly one network round
// trip and returns a normalized record or an error. The three upstreams
// genuinely differ in authentication, timeout and response shape, so no
// attempt is made to unify them behind one protocol.
package roapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	// ErrTimeout is returned when a call does not complete within the client's timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrUpstreamStatus is returned when the upstream answers with a non-2xx status.
	ErrUpstreamStatus = errors.New("unexpected upstream status")

	// ErrMalformedBody is returned when the response body is not valid JSON.
	ErrMalformedBody = errors.New("malformed response body")

	// ErrUnexpectedShape is returned when the response is valid JSON but not
	// a mapping where one is required.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// cacheBuster returns a fresh anti-cache token. The millisecond timestamp is
// combined with a random component so that back-to-back calls within the same
// millisecond still produce distinct tokens.
func cacheBuster(now time.Time) string {
	return fmt.Sprintf("%d-%.8s", now.UnixMilli(), uuid.NewString())
}

// normalizeEndpoint appends suffix to a configured base URL unless the URL
// already ends with it, so re-saving an already-normalized URL is a no-op.
func normalizeEndpoint(base, suffix string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(base, suffix) {
		return base
	}
	return base + suffix
}

type timeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time {
	return time.Now()
}

// doJSON performs req within timeout and returns the raw response body.
// Timeouts, upstream status errors and read failures are mapped to the
// package's error taxonomy.
func doJSON(ctx context.Context, client *http.Client, req *http.Request, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	return body, nil
}

// decodeMapping unmarshals body into v, requiring the body to be a JSON mapping.
func decodeMapping(body []byte, v any) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		if !json.Valid(body) {
			return fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		return ErrUnexpectedShape
	}
	// A JSON null unmarshals without error into a nil map; null is not a mapping.
	if probe == nil {
		return ErrUnexpectedShape
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}

// authedClient is the shared plumbing for the private Basic-Auth endpoints.
type authedClient struct {
	http     *http.Client
	endpoint string
	username string
	password string
	timeout  time.Duration
	limiter  *rate.Limiter
	time     timeProvider
}

// postJSON sends payload to the endpoint with Basic Auth and a fresh
// anti-cache token, and decodes the response mapping into v.
func (c authedClient) postJSON(ctx context.Context, payload, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait aborted: %v", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %v", err)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL %s: %v", c.endpoint, err)
	}
	q := u.Query()
	q.Set("cacheBuster", cacheBuster(c.time.Now()))
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.SetBasicAuth(c.username, c.password)

	body, err := doJSON(ctx, c.http, req, c.timeout)
	if err != nil {
		return err
	}

	return decodeMapping(body, v)
}
