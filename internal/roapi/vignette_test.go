package roapi_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mihaiblaga89/ro-auto/internal/roapi"
)

func TestVignetteCheck(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		response   string
		statusCode int
		hang       bool

		wantValid  bool
		wantExpiry string
		wantPlate  string
		wantVIN    string
		wantErr    error
	}{
		"Valid vignette": {
			response:   `[{"nrAuto": " b100xyz ", "serieSasiu": " abc123 ", "dataStop": " 2026-07-31 23:59:59 "}]`,
			wantValid:  true,
			wantExpiry: "2026-07-31 23:59:59",
			wantPlate:  "B100XYZ",
			wantVIN:    "ABC123",
		},
		"No vignette": {
			response:  `[]`,
			wantValid: false,
		},
		"Extra elements use only the first": {
			response:   `[{"nrAuto": "B100XYZ", "serieSasiu": "ABC123", "dataStop": "2026-07-31"}, {"nrAuto": "ZZ99ZZZ"}]`,
			wantValid:  true,
			wantExpiry: "2026-07-31",
			wantPlate:  "B100XYZ",
			wantVIN:    "ABC123",
		},

		"Upstream error status": {response: `[]`, statusCode: http.StatusBadGateway, wantErr: roapi.ErrUpstreamStatus},
		"Malformed body":        {response: `{"oops`, wantErr: roapi.ErrMalformedBody},
		"Not a list":            {response: `{"vignettes": []}`, wantErr: roapi.ErrUnexpectedShape},
		"Null body":             {response: `null`, wantErr: roapi.ErrUnexpectedShape},
		"Timeout":               {hang: true, wantErr: roapi.ErrTimeout},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var gotQuery map[string]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.hang {
					time.Sleep(500 * time.Millisecond)
				}

				q := r.URL.Query()
				gotQuery = map[string]string{
					"plateNumber": q.Get("plateNumber"),
					"vin":         q.Get("vin"),
					"cacheBuster": q.Get("cacheBuster"),
				}

				if tc.statusCode != 0 {
					w.WriteHeader(tc.statusCode)
				}
				_, _ = w.Write([]byte(tc.response))
			}))
			t.Cleanup(server.Close)

			client := roapi.NewVignette(slog.Default(),
				roapi.WithVignetteURL(server.URL),
				roapi.WithVignetteTimeout(100*time.Millisecond),
			)

			data, err := client.Check(context.Background(), "b100xyz", "abc123")
			if tc.wantErr != nil {
				require.Error(t, err, "Check should return an error")
				require.ErrorIs(t, err, tc.wantErr, "Check should return the expected error kind")
				return
			}
			require.NoError(t, err, "Check should not return an error")

			assert.Equal(t, tc.wantValid, data.Valid, "Check should report the expected validity")
			assert.Equal(t, tc.wantExpiry, data.ExpiryDate, "Check should report the expected expiry date")
			assert.Equal(t, tc.wantPlate, data.Plate, "Check should report the expected observed plate")
			assert.Equal(t, tc.wantVIN, data.VIN, "Check should report the expected observed VIN")

			assert.Equal(t, "B100XYZ", gotQuery["plateNumber"], "Check should uppercase the plate query parameter")
			assert.Equal(t, "ABC123", gotQuery["vin"], "Check should uppercase the vin query parameter")
			assert.NotEmpty(t, gotQuery["cacheBuster"], "Check should attach an anti-cache token")
		})
	}
}

func TestCacheBusterUniqueness(t *testing.T) {
	t.Parallel()

	// Same millisecond, distinct tokens.
	now := time.Now()
	seen := make(map[string]struct{})
	for range 100 {
		token := roapi.CacheBuster(now)
		_, dup := seen[token]
		require.False(t, dup, "CacheBuster should not repeat tokens within one millisecond: %s", token)
		seen[token] = struct{}{}
	}
}
