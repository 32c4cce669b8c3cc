package roapi

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ubuntu/decorate"
	"github.com/mihaiblaga89/ro-auto/internal/constants"
)

// RCAData is the normalized result of one RCA insurance check.
type RCAData struct {
	QueryDate         string `json:"queryDate"`
	IsValid           bool   `json:"isValid"`
	ValidityStartDate string `json:"validityStartDate"`
	ValidityEndDate   string `json:"validityEndDate"`
}

// RCAClient checks insurance validity against a private RCA endpoint.
type RCAClient struct {
	client authedClient

	log *slog.Logger
}

// NewRCA returns a client for an authenticated RCA endpoint.
// The endpoint is the configured base URL with the RCA check path appended,
// unless the URL already ends with it.
func NewRCA(l *slog.Logger, baseURL, username, password string, args ...Options) *RCAClient {
	opts := defaultOptions()
	for _, opt := range args {
		opt(&opts)
	}

	return &RCAClient{
		client: authedClient{
			http:     opts.httpClient,
			endpoint: normalizeEndpoint(baseURL, constants.RCAPathSuffix),
			username: username,
			password: password,
			timeout:  opts.privateTimeout,
			limiter:  opts.limiter,
			time:     opts.timeProvider,
		},
		log: l,
	}
}

// Check fetches the RCA record for one plate number.
func (c *RCAClient) Check(ctx context.Context, plate string) (data RCAData, err error) {
	defer decorate.OnError(&err, "RCA check failed for %s", plate)

	payload := struct {
		Plate string `json:"plate"`
	}{Plate: strings.ToUpper(strings.TrimSpace(plate))}

	if err := c.client.postJSON(ctx, payload, &data); err != nil {
		return RCAData{}, err
	}

	c.log.Debug("RCA checked", "plate", plate, "valid", data.IsValid)
	return data, nil
}
