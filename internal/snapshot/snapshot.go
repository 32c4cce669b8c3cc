// Package snapshot defines the merged per-vehicle compliance state and the
// rules for overlaying fresh subsystem results on top of it.
//
// The invariant maintained here is that a subsystem's data fields change only
// when a call for that subsystem succeeds. A failure records an error string
// and touches nothing else, so an RCA outage can never discard a valid
// vignette reading and vice versa.
package snapshot

import (
	"time"

	"github.com/mihaiblaga89/ro-auto/internal/fleet"
	"github.com/mihaiblaga89/ro-auto/internal/roapi"
)

// Vehicle is the merged state for one vehicle. Every field exists from the
// moment the shell is created, with null sentinels before the first
// successful call, so consumers never see missing keys.
type Vehicle struct {
	Name  string `json:"name"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	VIN   string `json:"vin"`
	Plate string `json:"registrationNumber"`

	VignetteValid      *bool      `json:"vignetteValid"`
	VignetteExpiryDate *string    `json:"vignetteExpiryDate"`
	VignetteStopDate   *string    `json:"dataStop"`
	VignetteUpdatedAt  *time.Time `json:"vignetteUpdatedAt"`
	VignetteError      *string    `json:"vignetteError"`

	RcaValid         *bool      `json:"rcaIsValid"`
	RcaQueryDate     *string    `json:"rcaQueryDate"`
	RcaValidityStart *string    `json:"rcaValidityStartDate"`
	RcaValidityEnd   *string    `json:"rcaValidityEndDate"`
	RcaUpdatedAt     *time.Time `json:"rcaUpdatedAt"`
	RcaError         *string    `json:"rcaError"`

	ItpValid      *bool      `json:"itpIsValid"`
	ItpStatus     *string    `json:"itpStatus"`
	ItpAttempts   *int       `json:"itpAttempts"`
	ItpResultVIN  *string    `json:"itpResultVin"`
	ItpValidUntil *string    `json:"itpValidUntil"`
	ItpUpdatedAt  *time.Time `json:"itpUpdatedAt"`
	ItpError      *string    `json:"itpError"`

	// LastUpdate is the latest timestamp across subsystems that succeeded.
	LastUpdate *time.Time `json:"lastUpdate"`
}

// Fleet maps uppercase VINs to vehicle snapshots. It is the unit exchanged
// with the cache and the presentation layer, and is always replaced
// atomically as a whole, never mutated field by field from the outside.
type Fleet map[string]*Vehicle

// NewVehicle creates a fully initialized shell for a configured vehicle.
func NewVehicle(v fleet.Vehicle) *Vehicle {
	return &Vehicle{
		Name:  v.Name,
		Make:  v.Make,
		Model: v.Model,
		Year:  v.Year,
		VIN:   v.VIN,
		Plate: v.Plate,
	}
}

// Clone returns a copy of the fleet snapshot with copied vehicle records.
// Pointer fields are shared; they are treated as immutable once set.
func (f Fleet) Clone() Fleet {
	out := make(Fleet, len(f))
	for vin, v := range f {
		c := *v
		out[vin] = &c
	}
	return out
}

// ApplyVignette overwrites the vignette fields with a successful result,
// clears the vignette error, and bumps both the vignette timestamp and the
// vehicle's overall last update.
//
// The plate and VIN the upstream reports may differ in formatting from the
// configured values; once observed they take precedence for display.
func (v *Vehicle) ApplyVignette(data roapi.VignetteData, at time.Time) {
	v.VignetteValid = ptr(data.Valid)
	v.VignetteExpiryDate = optStr(data.ExpiryDate)
	v.VignetteStopDate = optStr(data.StopDateRaw)
	v.VignetteUpdatedAt = ptr(at)
	v.VignetteError = nil
	v.touch(at)

	if data.Plate != "" {
		v.Plate = data.Plate
	}
	if data.VIN != "" {
		v.VIN = data.VIN
	}
}

// ApplyRCA overwrites the RCA fields with a successful result and clears the
// RCA error.
func (v *Vehicle) ApplyRCA(data roapi.RCAData, at time.Time) {
	v.RcaValid = ptr(data.IsValid)
	v.RcaQueryDate = optStr(data.QueryDate)
	v.RcaValidityStart = optStr(data.ValidityStartDate)
	v.RcaValidityEnd = optStr(data.ValidityEndDate)
	v.RcaUpdatedAt = ptr(at)
	v.RcaError = nil
	v.touch(at)
}

// ApplyITP overwrites the ITP fields with a successful result and clears the
// ITP error.
func (v *Vehicle) ApplyITP(data roapi.ITPData, at time.Time) {
	v.ItpValid = ptr(data.IsValid())
	v.ItpStatus = optStr(data.Status)
	v.ItpAttempts = ptr(data.Attempts)
	v.ItpResultVIN = optStr(data.ResultVIN)
	v.ItpValidUntil = optStr(data.ValidUntilRaw)
	v.ItpUpdatedAt = ptr(at)
	v.ItpError = nil
	v.touch(at)
}

// ApplyError records a failure for one subsystem. Prior data fields and
// timestamps are preserved; only the error string is replaced.
func (v *Vehicle) ApplyError(sub fleet.Subsystem, msg string) {
	switch sub {
	case fleet.Vignette:
		v.VignetteError = ptr(msg)
	case fleet.RCA:
		v.RcaError = ptr(msg)
	case fleet.ITP:
		v.ItpError = ptr(msg)
	}
}

// Error returns the recorded error for a subsystem, or "" if none.
func (v *Vehicle) Error(sub fleet.Subsystem) string {
	var e *string
	switch sub {
	case fleet.Vignette:
		e = v.VignetteError
	case fleet.RCA:
		e = v.RcaError
	case fleet.ITP:
		e = v.ItpError
	}
	if e == nil {
		return ""
	}
	return *e
}

// Attempted reports whether a subsystem has either a value or a recorded
// error, i.e. whether at least one call for it ever completed.
func (v *Vehicle) Attempted(sub fleet.Subsystem) bool {
	switch sub {
	case fleet.Vignette:
		return v.VignetteValid != nil || v.VignetteError != nil
	case fleet.RCA:
		return v.RcaValid != nil || v.RcaError != nil
	case fleet.ITP:
		return v.ItpValid != nil || v.ItpError != nil
	default:
		return false
	}
}

// Expirations returns the parsed expiry date per subsystem for the values
// currently known. Absent or unparseable dates are omitted.
func (v *Vehicle) Expirations() map[fleet.Subsystem]time.Time {
	out := make(map[fleet.Subsystem]time.Time, 3)
	for sub, raw := range map[fleet.Subsystem]*string{
		fleet.Vignette: v.VignetteExpiryDate,
		fleet.RCA:      v.RcaValidityEnd,
		fleet.ITP:      v.ItpValidUntil,
	} {
		if raw == nil {
			continue
		}
		if t, ok := roapi.ParseDate(*raw); ok {
			out[sub] = t
		}
	}
	return out
}

// touch advances the overall last update timestamp, never moving it backwards.
func (v *Vehicle) touch(at time.Time) {
	if v.LastUpdate == nil || at.After(*v.LastUpdate) {
		v.LastUpdate = ptr(at)
	}
}

func ptr[T any](v T) *T {
	return &v
}

// optStr returns nil for an empty string, keeping absent values as JSON null.
func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
