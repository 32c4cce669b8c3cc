package roapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ubuntu/decorate"
)

// VignetteData is the normalized result of one vignette check.
type VignetteData struct {
	// Valid is true when the vehicle has at least one active vignette.
	Valid bool `json:"vignetteValid"`

	// ExpiryDate is the vignette stop date, trimmed but otherwise as reported.
	// Empty when no vignette exists.
	ExpiryDate string `json:"vignetteExpiryDate,omitempty"`

	// StopDateRaw is the raw stop-date string from the upstream.
	StopDateRaw string `json:"dataStop,omitempty"`

	// Plate and VIN are the identity fields as the upstream reports them.
	// They may differ in formatting from the configured values and take
	// precedence for display once observed.
	Plate string `json:"nrAuto,omitempty"`
	VIN   string `json:"serieSasiu,omitempty"`
}

// vignetteItem is one element of the upstream response list.
type vignetteItem struct {
	NrAuto     string `json:"nrAuto"`
	SerieSasiu string `json:"serieSasiu"`
	DataStop   string `json:"dataStop"`
}

// VignetteClient checks vignette validity against the public erovinieta endpoint.
type VignetteClient struct {
	http    *http.Client
	url     string
	timeout time.Duration
	time    timeProvider

	log *slog.Logger
}

// NewVignette returns a client for the public vignette endpoint.
func NewVignette(l *slog.Logger, args ...Options) *VignetteClient {
	opts := defaultOptions()
	for _, opt := range args {
		opt(&opts)
	}

	return &VignetteClient{
		http:    opts.httpClient,
		url:     opts.vignetteURL,
		timeout: opts.vignetteTimeout,
		time:    opts.timeProvider,
		log:     l,
	}
}

// Check fetches the vignette record for one vehicle.
//
// The upstream returns a list: a non-empty list means a valid vignette and
// the first element supplies the normalized values. All string fields are
// trimmed and uppercased, except the expiry date which is only trimmed.
func (c *VignetteClient) Check(ctx context.Context, plate, vin string) (data VignetteData, err error) {
	defer decorate.OnError(&err, "vignette check failed for %s/%s", plate, vin)

	u, err := url.Parse(c.url)
	if err != nil {
		return VignetteData{}, fmt.Errorf("invalid vignette URL %s: %v", c.url, err)
	}
	q := u.Query()
	q.Set("plateNumber", strings.ToUpper(strings.TrimSpace(plate)))
	q.Set("vin", strings.ToUpper(strings.TrimSpace(vin)))
	q.Set("cacheBuster", cacheBuster(c.time.Now()))
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return VignetteData{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	body, err := doJSON(ctx, c.http, req, c.timeout)
	if err != nil {
		return VignetteData{}, err
	}

	var items []vignetteItem
	if err := json.Unmarshal(body, &items); err != nil {
		if !json.Valid(body) {
			return VignetteData{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		return VignetteData{}, ErrUnexpectedShape
	}
	// A JSON null unmarshals without error into a nil slice; null is not a list.
	if items == nil {
		return VignetteData{}, ErrUnexpectedShape
	}

	data = normalizeVignette(items)
	c.log.Debug("Vignette checked", "plate", plate, "vin", vin, "valid", data.Valid)
	return data, nil
}

// normalizeVignette maps the upstream list to a VignetteData record.
func normalizeVignette(items []vignetteItem) VignetteData {
	if len(items) == 0 {
		return VignetteData{Valid: false}
	}

	first := items[0]
	return VignetteData{
		Valid:       true,
		ExpiryDate:  strings.TrimSpace(first.DataStop),
		StopDateRaw: strings.TrimSpace(first.DataStop),
		Plate:       strings.ToUpper(strings.TrimSpace(first.NrAuto)),
		VIN:         strings.ToUpper(strings.TrimSpace(first.SerieSasiu)),
	}
}
