package fleet_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mihaiblaga89/ro-auto/internal/fleet"
)

func writeFleetFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fleet.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600), "Setup: writing the fleet file should not fail")
	return path
}

const validFleet = `
fleet_name = "Family"
instance_id = "home"

[[vehicles]]
name = "Dacia"
make = "Dacia"
model = "Duster"
year = 2021
vin = "uu1abc12345678901"
plate = " b100xyz "

[[vehicles]]
name = "Trailer"
vin = "TRAILER123"
plate = "B200ABC"
vignette_enabled = false

[rca]
enabled = true
url = "https://rca.example.com"
username = "user"
password = "secret"

[itp]
enabled = false
url = "https://itp.example.com"
username = "user"
password = "secret"
`

func TestLoad(t *testing.T) {
	t.Parallel()

	l := slog.Default()
	cfg, err := fleet.Load(l, writeFleetFile(t, validFleet))
	require.NoError(t, err, "Load should not fail on a valid fleet file")

	assert.Equal(t, "Family", cfg.FleetName, "the fleet name should be read")
	assert.Equal(t, "home", cfg.InstanceID, "the instance ID should be read")
	require.Len(t, cfg.Vehicles, 2, "both vehicles should be read")

	dacia := cfg.Vehicles[0]
	assert.Equal(t, "UU1ABC12345678901", dacia.VIN, "the VIN should be trimmed and uppercased")
	assert.Equal(t, "B100XYZ", dacia.Plate, "the plate should be trimmed and uppercased")
	assert.True(t, fleet.VehicleVignetteEnabled(dacia), "vignette checks default to enabled")

	trailer := cfg.Vehicles[1]
	assert.False(t, fleet.VehicleVignetteEnabled(trailer), "the trailer opted out of vignette checks")

	assert.True(t, cfg.RcaEnabled(), "RCA should be enabled with complete credentials")
	assert.False(t, cfg.ItpEnabled(), "ITP should be disabled when not enabled, even with credentials")
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeFleetFile(t, `
[[vehicles]]
vin = "VIN1"
plate = "B100XYZ"
`)

	cfg, err := fleet.Load(slog.Default(), path)
	require.NoError(t, err, "Load should not fail")

	assert.NotEmpty(t, cfg.FleetName, "a missing fleet name should get a default")
	assert.Equal(t, "default", cfg.InstanceID, "a missing instance ID should get the default")
	assert.False(t, cfg.RcaEnabled(), "RCA should be disabled without credentials")
	assert.False(t, cfg.ItpEnabled(), "ITP should be disabled without credentials")
}

func TestLoadInvalidFleets(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string

		wantErr error
	}{
		"No vehicles": {
			content: `fleet_name = "Empty"`,
			wantErr: fleet.ErrNoVehicles,
		},
		"Duplicate VIN": {
			content: `
[[vehicles]]
vin = "VIN1"
plate = "B100XYZ"
[[vehicles]]
vin = "VIN1"
plate = "B200ABC"
`,
			wantErr: fleet.ErrDuplicateVIN,
		},
		"Duplicate VIN after normalization": {
			content: `
[[vehicles]]
vin = "vin1"
plate = "B100XYZ"
[[vehicles]]
vin = " VIN1 "
plate = "B200ABC"
`,
			wantErr: fleet.ErrDuplicateVIN,
		},
		"Missing VIN": {
			content: `
[[vehicles]]
name = "NoVIN"
plate = "B100XYZ"
`,
		},
		"Missing plate": {
			content: `
[[vehicles]]
name = "NoPlate"
vin = "VIN1"
`,
		},
		"Implausible year": {
			content: `
[[vehicles]]
vin = "VIN1"
plate = "B100XYZ"
year = 1900
`,
		},
		"Not TOML": {
			content: `{"vehicles": []}`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := fleet.Load(slog.Default(), writeFleetFile(t, tc.content))
			require.Error(t, err, "Load should reject the fleet file")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr, "Load should return the expected error kind")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := fleet.Load(slog.Default(), filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err, "Load should fail for a missing file")
}

func TestSubsystemEnabled(t *testing.T) {
	t.Parallel()

	off := false
	creds := fleet.Credentials{Enabled: true, URL: "https://x.example.com", Username: "u", Password: "p"}

	tests := map[string]struct {
		cfg     fleet.Config
		vehicle fleet.Vehicle
		sub     fleet.Subsystem

		want bool
	}{
		"Vignette on by default":        {vehicle: fleet.Vehicle{VIN: "V"}, sub: fleet.Vignette, want: true},
		"Vignette opt-out":              {vehicle: fleet.Vehicle{VIN: "V", VignetteEnabled: &off}, sub: fleet.Vignette, want: false},
		"RCA with credentials":          {cfg: fleet.Config{RCA: creds}, vehicle: fleet.Vehicle{VIN: "V"}, sub: fleet.RCA, want: true},
		"RCA without credentials":       {vehicle: fleet.Vehicle{VIN: "V"}, sub: fleet.RCA, want: false},
		"RCA with incomplete creds":     {cfg: fleet.Config{RCA: fleet.Credentials{Enabled: true, URL: "https://x"}}, vehicle: fleet.Vehicle{VIN: "V"}, sub: fleet.RCA, want: false},
		"ITP disabled despite creds":    {cfg: fleet.Config{ITP: fleet.Credentials{URL: "https://x", Username: "u", Password: "p"}}, vehicle: fleet.Vehicle{VIN: "V"}, sub: fleet.ITP, want: false},
		"Unknown subsystem is disabled": {vehicle: fleet.Vehicle{VIN: "V"}, sub: fleet.Subsystem("dmv"), want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := tc.cfg.SubsystemEnabled(tc.vehicle, tc.sub)
			assert.Equal(t, tc.want, got, "SubsystemEnabled should report the expected state")
		})
	}
}
