package roapi

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ubuntu/decorate"
	"github.com/mihaiblaga89/ro-auto/internal/constants"
)

// ITPData is the normalized result of one periodic technical inspection check.
type ITPData struct {
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	ResultVIN     string `json:"vin"`
	ValidUntilRaw string `json:"validUntil"`
}

// IsValid reports whether the inspection is currently valid: the upstream
// answered "ok" and supplied a validity date.
func (d ITPData) IsValid() bool {
	return d.Status == "ok" && d.ValidUntilRaw != ""
}

// ITPClient checks inspection validity against a private ITP endpoint.
type ITPClient struct {
	client authedClient

	log *slog.Logger
}

// NewITP returns a client for an authenticated ITP endpoint.
// The endpoint is the configured base URL with the ITP check path appended,
// unless the URL already ends with it.
func NewITP(l *slog.Logger, baseURL, username, password string, args ...Options) *ITPClient {
	opts := defaultOptions()
	for _, opt := range args {
		opt(&opts)
	}

	return &ITPClient{
		client: authedClient{
			http:     opts.httpClient,
			endpoint: normalizeEndpoint(baseURL, constants.ITPPathSuffix),
			username: username,
			password: password,
			timeout:  opts.privateTimeout,
			limiter:  opts.limiter,
			time:     opts.timeProvider,
		},
		log: l,
	}
}

// Check fetches the ITP record for one VIN.
func (c *ITPClient) Check(ctx context.Context, vin string) (data ITPData, err error) {
	defer decorate.OnError(&err, "ITP check failed for %s", vin)

	payload := struct {
		VIN string `json:"vin"`
	}{VIN: strings.ToUpper(strings.TrimSpace(vin))}

	if err := c.client.postJSON(ctx, payload, &data); err != nil {
		return ITPData{}, err
	}

	c.log.Debug("ITP checked", "vin", vin, "status", data.Status)
	return data, nil
}
