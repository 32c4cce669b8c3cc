// Package orchestrator is the implementation of the refresh orchestrator
// component. For N vehicles and up to three compliance subsystems it fans out
// concurrent network calls, isolates failures per (vehicle, subsystem) pair,
// merges results on top of the last known-good snapshot, persists the result
// for fast restart, and reports the failure digest.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ubuntu/decorate"
	"github.com/mihaiblaga89/ro-auto/internal/fleet"
	"github.com/mihaiblaga89/ro-auto/internal/roapi"
	"github.com/mihaiblaga89/ro-auto/internal/snapshot"
	"github.com/mihaiblaga89/ro-auto/internal/store"
)

var (
	// ErrRefreshInFlight is returned when a refresh cycle would overlap one
	// that is still running.
	ErrRefreshInFlight = errors.New("a refresh cycle is already in flight")

	// ErrManualSubsystem is returned when a manual refresh names a subsystem
	// that does not support it or is not enabled.
	ErrManualSubsystem = errors.New("subsystem not available for manual refresh")
)

// VignetteChecker checks the vignette subsystem for one vehicle.
type VignetteChecker interface {
	Check(ctx context.Context, plate, vin string) (roapi.VignetteData, error)
}

// RCAChecker checks the RCA insurance subsystem for one plate.
type RCAChecker interface {
	Check(ctx context.Context, plate string) (roapi.RCAData, error)
}

// ITPChecker checks the inspection subsystem for one VIN.
type ITPChecker interface {
	Check(ctx context.Context, vin string) (roapi.ITPData, error)
}

// Store persists and restores fleet snapshots.
type Store interface {
	Load() (store.Envelope, bool)
	Save(snapshot.Fleet) error
}

// Reporter turns the snapshot's recorded errors into a user-facing digest.
type Reporter interface {
	Report(ctx context.Context, cfg fleet.Config, snap snapshot.Fleet) error
}

// Publisher pushes the current snapshot to the presentation surface.
type Publisher interface {
	PublishSnapshot(ctx context.Context, instanceID string, snap snapshot.Fleet) error
}

// Clients holds the per-capability subsystem clients. A nil client means the
// capability is absent for this deployment; it is checked before dispatch.
type Clients struct {
	Vignette VignetteChecker
	RCA      RCAChecker
	ITP      ITPChecker
}

// Outcome summarizes one refresh cycle.
type Outcome struct {
	// Attempted is the number of (vehicle, subsystem) calls dispatched.
	// Zero means the cycle was a no-op.
	Attempted int
	// Failed is the number of calls that ended in a captured failure.
	Failed int
}

type timeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time {
	return time.Now()
}

// Orchestrator owns the current fleet snapshot. It is the only writer to the
// snapshot store; subsystem clients are stateless and own no data.
type Orchestrator struct {
	store     Store
	reporter  Reporter
	publisher Publisher

	// mu guards config, clients and the current snapshot. The snapshot is
	// replaced atomically as a whole at the end of a cycle; in-progress
	// state is never visible to readers.
	mu      sync.RWMutex
	config  fleet.Config
	clients Clients
	current snapshot.Fleet

	// refreshMu serializes refresh cycles: a cycle that would overlap a
	// running one is skipped rather than queued.
	refreshMu sync.Mutex

	cacheTTL time.Duration
	time     timeProvider

	log *slog.Logger
}

type options struct {
	// Private members exported for tests.
	timeProvider timeProvider
}

var defaultOptions = options{
	timeProvider: realTimeProvider{},
}

// Options represents an optional function to override Orchestrator default values.
type Options func(*options)

// New returns an orchestrator for the given fleet. publisher may be nil when
// no presentation backend is configured.
func New(l *slog.Logger, cfg fleet.Config, clients Clients, st Store, reporter Reporter, publisher Publisher, cacheTTL time.Duration, args ...Options) (*Orchestrator, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if reporter == nil {
		return nil, errors.New("reporter cannot be nil")
	}

	opts := defaultOptions
	for _, opt := range args {
		opt(&opts)
	}

	return &Orchestrator{
		store:     st,
		reporter:  reporter,
		publisher: publisher,
		config:    cfg,
		clients:   clients,
		current:   snapshot.Fleet{},
		cacheTTL:  cacheTTL,
		time:      opts.timeProvider,
		log:       l,
	}, nil
}

// Snapshot returns the current fleet snapshot. The returned value is
// read-only: the orchestrator never mutates a published snapshot, it swaps
// in a new one at the end of a cycle.
func (o *Orchestrator) Snapshot() snapshot.Fleet {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// Config returns the fleet configuration currently in use.
func (o *Orchestrator) Config() fleet.Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.config
}

// UpdateFleet replaces the fleet configuration and the subsystem clients,
// keeping the accumulated snapshot. Vehicles removed from the fleet simply
// stop being refreshed; their stale records are dropped on the next cycle.
func (o *Orchestrator) UpdateFleet(cfg fleet.Config, clients Clients) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.config = cfg
	o.clients = clients
	o.log.Info("Fleet configuration replaced", "vehicles", len(cfg.Vehicles),
		"rca", cfg.RcaEnabled(), "itp", cfg.ItpEnabled())
}

// LoadCache installs the persisted snapshot as the current one, without any
// network calls, if a valid envelope exists and is not older than the cache
// TTL. It reports whether a snapshot was installed.
//
// This is purely a cold-start optimization: pairs that never had data remain
// unattempted and are picked up by PrimeMissingData.
func (o *Orchestrator) LoadCache() bool {
	env, ok := o.store.Load()
	if !ok {
		return false
	}

	if age := o.time.Now().Sub(env.SavedAt); age > o.cacheTTL {
		o.log.Info("Cached snapshot is stale, ignoring it", "age", age, "ttl", o.cacheTTL)
		return false
	}

	o.mu.Lock()
	o.current = env.Data
	o.mu.Unlock()

	o.log.Info("Cached snapshot installed", "savedAt", env.SavedAt, "vehicles", len(env.Data))
	return true
}

// NeedsInitialRefresh reports whether a full blocking refresh is still
// required: the snapshot is empty, or some enabled (vehicle, subsystem) pair
// has neither a value nor a recorded error.
func (o *Orchestrator) NeedsInitialRefresh() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if len(o.current) == 0 {
		return true
	}

	for _, vehicle := range o.config.Vehicles {
		record := o.current[vehicle.VIN]
		for _, sub := range []fleet.Subsystem{fleet.Vignette, fleet.RCA, fleet.ITP} {
			if !o.enabled(vehicle, sub) {
				continue
			}
			if record == nil || !record.Attempted(sub) {
				return true
			}
		}
	}
	return false
}

// PrimeMissingData issues exactly one call for every enabled (vehicle,
// subsystem) pair that has neither a value nor a recorded error, as one flat
// concurrent batch. With nothing to prime it is a no-op reporting zero
// attempts. Calling it twice without intervening state change performs zero
// network calls the second time, since the first call recorded either a
// value or an error for every pair.
func (o *Orchestrator) PrimeMissingData(ctx context.Context) (Outcome, error) {
	return o.refresh(ctx, o.collectTasks(false, ""))
}

// FullRefresh issues exactly one call for every enabled (vehicle, subsystem)
// pair regardless of current state. This is the steady-state periodic
// operation.
func (o *Orchestrator) FullRefresh(ctx context.Context) (Outcome, error) {
	return o.refresh(ctx, o.collectTasks(true, ""))
}

// ManualRefresh refreshes a single subsystem (RCA or ITP) across all
// vehicles for which it is enabled, leaving every other subsystem untouched.
// An available subsystem with no vehicles to check is a zero-attempt no-op,
// not an error.
func (o *Orchestrator) ManualRefresh(ctx context.Context, sub fleet.Subsystem) (Outcome, error) {
	if sub != fleet.RCA && sub != fleet.ITP {
		return Outcome{}, fmt.Errorf("%w: %s", ErrManualSubsystem, sub)
	}
	if !o.subsystemAvailable(sub) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrManualSubsystem, sub)
	}

	return o.refresh(ctx, o.collectTasks(true, sub))
}

// subsystemAvailable reports whether sub is configured with usable
// credentials and has a client to dispatch to.
func (o *Orchestrator) subsystemAvailable(sub fleet.Subsystem) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	switch sub {
	case fleet.RCA:
		return o.config.RcaEnabled() && o.clients.RCA != nil
	case fleet.ITP:
		return o.config.ItpEnabled() && o.clients.ITP != nil
	default:
		return false
	}
}

// refresh runs one cycle: flat fan-out, keyed fan-in, overlay merge, atomic
// snapshot swap, persist, report.
func (o *Orchestrator) refresh(ctx context.Context, tasks []task) (out Outcome, err error) {
	defer decorate.OnError(&err, "refresh cycle failed")

	if len(tasks) == 0 {
		o.log.Info("Nothing to refresh, no calls attempted")
		return Outcome{}, nil
	}

	if !o.refreshMu.TryLock() {
		return Outcome{}, ErrRefreshInFlight
	}
	defer o.refreshMu.Unlock()

	o.log.Debug("Starting refresh cycle", "tasks", len(tasks))
	results := runBatch(ctx, tasks)

	o.mu.Lock()
	cfg := o.config
	next := o.merge(o.current, cfg, results)
	o.current = next
	o.mu.Unlock()

	out.Attempted = len(tasks)
	for _, res := range results {
		if res.err != nil {
			out.Failed++
		}
	}

	// Cache write failures are logged and swallowed: the in-memory snapshot
	// is already updated and the next cycle will try again.
	if err := o.store.Save(next); err != nil {
		o.log.Warn("Failed to persist snapshot", "error", err)
	}

	if err := o.reporter.Report(ctx, cfg, next); err != nil {
		o.log.Warn("Failed to report refresh failures", "error", err)
	}

	if o.publisher != nil {
		if err := o.publisher.PublishSnapshot(ctx, cfg.InstanceID, next); err != nil {
			o.log.Warn("Failed to publish snapshot", "error", err)
		}
	}

	o.log.Info("Refresh cycle finished", "attempted", out.Attempted, "failed", out.Failed)
	return out, nil
}

// merge overlays the batch results on the previous snapshot: a success
// overwrites exactly its subsystem's fields and clears its error; a failure
// writes only the error string. Every configured vehicle gets a fully
// initialized record even if no call for it ever succeeded.
func (o *Orchestrator) merge(prev snapshot.Fleet, cfg fleet.Config, results map[taskKey]taskResult) snapshot.Fleet {
	next := prev.Clone()
	now := o.time.Now()

	configured := make(map[string]struct{}, len(cfg.Vehicles))
	for _, vehicle := range cfg.Vehicles {
		configured[vehicle.VIN] = struct{}{}
		if _, ok := next[vehicle.VIN]; !ok {
			next[vehicle.VIN] = snapshot.NewVehicle(vehicle)
		}
	}

	// Drop records for vehicles no longer in the fleet.
	for vin := range next {
		if _, ok := configured[vin]; !ok {
			delete(next, vin)
		}
	}

	for key, res := range results {
		record, ok := next[key.vin]
		if !ok {
			// The fleet changed mid-cycle and the vehicle is gone.
			continue
		}
		if res.err != nil {
			record.ApplyError(key.sub, res.err.Error())
			continue
		}
		res.apply(record, now)
	}

	return next
}

// enabled reports whether sub is enabled for vehicle AND a client for it is present.
func (o *Orchestrator) enabled(vehicle fleet.Vehicle, sub fleet.Subsystem) bool {
	if !o.config.SubsystemEnabled(vehicle, sub) {
		return false
	}
	switch sub {
	case fleet.Vignette:
		return o.clients.Vignette != nil
	case fleet.RCA:
		return o.clients.RCA != nil
	case fleet.ITP:
		return o.clients.ITP != nil
	default:
		return false
	}
}
