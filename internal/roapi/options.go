package roapi

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"github.com/mihaiblaga89/ro-auto/internal/constants"
)

type options struct {
	// Private members exported for tests.
	httpClient      *http.Client
	vignetteURL     string
	vignetteTimeout time.Duration
	privateTimeout  time.Duration
	limiter         *rate.Limiter
	timeProvider    timeProvider
}

func defaultOptions() options {
	return options{
		httpClient:      http.DefaultClient,
		vignetteURL:     constants.VignetteAPIURL,
		vignetteTimeout: constants.VignetteTimeout,
		privateTimeout:  constants.PrivateEndpointTimeout,
		// The private endpoints are slow and shared; keep calls at a gentle pace.
		limiter:      rate.NewLimiter(rate.Every(time.Second), 5),
		timeProvider: realTimeProvider{},
	}
}

// Options represents an optional function to override client default values.
type Options func(*options)
