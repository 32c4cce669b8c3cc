package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ubuntu/decorate"
	"github.com/mihaiblaga89/ro-auto/internal/constants"
	"github.com/mihaiblaga89/ro-auto/internal/fleet"
	"github.com/mihaiblaga89/ro-auto/internal/snapshot"
)

// reportedSubsystems is the scan order, which is also the order of lines
// within one vehicle in the digest.
var reportedSubsystems = []fleet.Subsystem{fleet.Vignette, fleet.RCA, fleet.ITP}

// Reporter builds the aggregated failure digest and drives a Notifier.
type Reporter struct {
	notifier Notifier
	title    string
}

// NewReporter returns a failure reporter using the given backend.
func NewReporter(n Notifier) *Reporter {
	return &Reporter{
		notifier: n,
		title:    "RO Auto refresh failures",
	}
}

// Report scans the snapshot for recorded errors on enabled subsystems.
// With no errors it dismisses any previously raised notification; otherwise
// it (re)creates the single aggregated notification. Repeated calls with the
// same error set recreate the same content, they never accumulate.
//
// A subsystem that is disabled or unconfigured for a vehicle never appears
// in the digest, whatever the snapshot records for it.
func (r *Reporter) Report(ctx context.Context, cfg fleet.Config, snap snapshot.Fleet) (err error) {
	defer decorate.OnError(&err, "failure report failed")

	digest := Digest(cfg, snap)
	if digest == "" {
		return r.notifier.Dismiss(ctx, constants.FailureNotificationID)
	}

	return r.notifier.Create(ctx, constants.FailureNotificationID, r.title, digest)
}

// Digest renders the failure lines for every enabled (vehicle, subsystem)
// pair currently in an error state, one per line, ordered by vehicle name
// and then by subsystem. It returns "" when there is nothing to report.
func Digest(cfg fleet.Config, snap snapshot.Fleet) string {
	vehicles := make([]fleet.Vehicle, len(cfg.Vehicles))
	copy(vehicles, cfg.Vehicles)
	sort.Slice(vehicles, func(i, j int) bool {
		if vehicles[i].Name != vehicles[j].Name {
			return vehicles[i].Name < vehicles[j].Name
		}
		return vehicles[i].VIN < vehicles[j].VIN
	})

	var lines []string
	for _, vehicle := range vehicles {
		record, ok := snap[vehicle.VIN]
		if !ok {
			continue
		}

		for _, sub := range reportedSubsystems {
			if !cfg.SubsystemEnabled(vehicle, sub) {
				continue
			}
			if msg := record.Error(sub); msg != "" {
				lines = append(lines, fmt.Sprintf("%s: %s error: %s", vehicleLabel(vehicle), sub, msg))
			}
		}
	}

	return strings.Join(lines, "\n")
}

func vehicleLabel(v fleet.Vehicle) string {
	if v.Name != "" {
		return v.Name
	}
	return v.VIN
}
