// Package fleet is the implementation of the fleet configuration component.
// It describes the vehicles to track, which compliance subsystems are enabled
// for each of them, and the credentials for the authenticated subsystems.
// The configuration is read-only for the rest of the application.
package fleet

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ubuntu/decorate"
	"github.com/mihaiblaga89/ro-auto/internal/constants"
)

var (
	// ErrNoVehicles is returned when the fleet file does not define any vehicle.
	ErrNoVehicles = errors.New("fleet has no vehicles")

	// ErrDuplicateVIN is returned when two vehicles share the same VIN.
	ErrDuplicateVIN = errors.New("duplicate VIN in fleet")
)

// Subsystem identifies one of the compliance subsystems checked per vehicle.
type Subsystem string

const (
	// Vignette is the road-toll vignette subsystem.
	Vignette Subsystem = "vignette"
	// RCA is the third-party liability insurance subsystem.
	RCA Subsystem = "rca"
	// ITP is the periodic technical inspection subsystem.
	ITP Subsystem = "itp"
)

// Vehicle describes one configured vehicle.
type Vehicle struct {
	Name  string `toml:"name"`
	Make  string `toml:"make"`
	Model string `toml:"model"`
	Year  int    `toml:"year"`
	VIN   string `toml:"vin"`
	Plate string `toml:"plate"`

	// VignetteEnabled opts a vehicle out of vignette checks when false.
	// Defaults to true for vehicles that don't set it.
	VignetteEnabled *bool `toml:"vignette_enabled"`
}

// Credentials holds the settings for one authenticated subsystem.
// The subsystem is only usable when Enabled is true and all fields are set.
type Credentials struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// complete returns true if the credentials are usable for client construction.
func (c Credentials) complete() bool {
	return c.Enabled && c.URL != "" && c.Username != "" && c.Password != ""
}

// Config is the static description of a fleet. It is replaced wholesale when
// the fleet file changes, never mutated in place.
type Config struct {
	FleetName  string `toml:"fleet_name"`
	InstanceID string `toml:"instance_id"`

	Vehicles []Vehicle `toml:"vehicles"`

	RCA Credentials `toml:"rca"`
	ITP Credentials `toml:"itp"`
}

// Load reads and validates a fleet configuration file.
func Load(l *slog.Logger, path string) (cfg Config, err error) {
	defer decorate.OnError(&err, "could not load fleet configuration %s", path)

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		l.Warn("Fleet file has unknown keys", "file", path, "keys", undecoded)
	}

	if err := cfg.sanitize(); err != nil {
		return Config{}, err
	}

	l.Debug("Loaded fleet configuration", "file", path, "vehicles", len(cfg.Vehicles),
		"rca", cfg.RcaEnabled(), "itp", cfg.ItpEnabled())
	return cfg, nil
}

// sanitize normalizes vehicle identity fields and rejects invalid fleets.
// Duplicate VINs are rejected here, at configuration time, so the refresh
// logic can treat VINs as unique keys.
func (c *Config) sanitize() error {
	if c.FleetName == "" {
		c.FleetName = "RO Auto"
	}
	if c.InstanceID == "" {
		c.InstanceID = constants.DefaultInstanceID
	}

	if len(c.Vehicles) == 0 {
		return ErrNoVehicles
	}

	maxYear := time.Now().Year() + 1
	seen := make(map[string]struct{}, len(c.Vehicles))
	for i := range c.Vehicles {
		v := &c.Vehicles[i]
		v.Name = strings.TrimSpace(v.Name)
		v.Make = strings.TrimSpace(v.Make)
		v.Model = strings.TrimSpace(v.Model)
		v.VIN = strings.ToUpper(strings.TrimSpace(v.VIN))
		v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))

		if v.VIN == "" {
			return fmt.Errorf("vehicle %q has no VIN", v.Name)
		}
		if v.Plate == "" {
			return fmt.Errorf("vehicle %q has no registration number", v.Name)
		}
		if v.Year != 0 && (v.Year < 1950 || v.Year > maxYear) {
			return fmt.Errorf("vehicle %q has an implausible year %d", v.Name, v.Year)
		}

		if _, ok := seen[v.VIN]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateVIN, v.VIN)
		}
		seen[v.VIN] = struct{}{}
	}

	return nil
}

// VehicleVignetteEnabled reports whether vignette checks are enabled for v.
func VehicleVignetteEnabled(v Vehicle) bool {
	return v.VignetteEnabled == nil || *v.VignetteEnabled
}

// RcaEnabled reports whether the RCA subsystem can be used. Missing
// credentials simply disable the subsystem.
func (c Config) RcaEnabled() bool {
	return c.RCA.complete()
}

// ItpEnabled reports whether the ITP subsystem can be used. Missing
// credentials simply disable the subsystem.
func (c Config) ItpEnabled() bool {
	return c.ITP.complete()
}

// SubsystemEnabled reports whether sub is enabled for vehicle v under this config.
func (c Config) SubsystemEnabled(v Vehicle, sub Subsystem) bool {
	switch sub {
	case Vignette:
		return VehicleVignetteEnabled(v)
	case RCA:
		return c.RcaEnabled()
	case ITP:
		return c.ItpEnabled()
	default:
		return false
	}
}
