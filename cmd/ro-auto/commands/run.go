package commands

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/mihaiblaga89/ro-auto/internal/fleet"
	"github.com/mihaiblaga89/ro-auto/internal/orchestrator"
)

func installRunCmd(app *App) {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the refresh daemon",
		Long: `Run the refresh daemon.

On startup the daemon installs the cached snapshot if it is fresh enough,
primes data for any (vehicle, subsystem) pair that never got a result, and
falls back to a full live refresh when needed. It then refreshes the whole
fleet on a fixed interval, and reloads the fleet file whenever it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runDaemon(cmd.Context())
		},
	}

	app.cmd.AddCommand(runCmd)
}

// runDaemon runs the startup sequence and then the periodic refresh loop
// until interrupted.
func (a *App) runDaemon(ctx context.Context) error {
	l := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fleetManager := fleet.NewManager(l, a.config.FleetFile)
	if err := fleetManager.Load(); err != nil {
		return err
	}

	orch, cleanup, err := a.buildOrchestrator(ctx, l, fleetManager.Config())
	if err != nil {
		return err
	}
	defer cleanup()

	// Startup: cached snapshot first, then live calls only for what's missing.
	if !orch.LoadCache() {
		l.Info("No usable cached snapshot, starting from live data")
	}
	if _, err := orch.PrimeMissingData(ctx); err != nil {
		l.Warn("Failed to prime missing data", "error", err)
	}
	if orch.NeedsInitialRefresh() {
		l.Info("Initial full refresh still required")
		if _, err := orch.FullRefresh(ctx); err != nil {
			l.Warn("Initial full refresh failed", "error", err)
		}
	}

	changes, watchErrs, err := fleetManager.Watch(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	l.Info("Daemon started", "interval", a.config.Interval, "vehicles", len(fleetManager.Config().Vehicles))

	for {
		select {
		case <-ctx.Done():
			l.Info("Daemon stopping")
			return nil

		case <-ticker.C:
			if _, err := orch.FullRefresh(ctx); err != nil {
				if errors.Is(err, orchestrator.ErrRefreshInFlight) {
					l.Warn("Previous refresh cycle still running, skipping this one")
					continue
				}
				l.Warn("Scheduled refresh failed", "error", err)
			}

		case _, ok := <-changes:
			if !ok {
				continue
			}
			cfg := fleetManager.Config()
			orch.UpdateFleet(cfg, buildClients(l, cfg))
			if _, err := orch.PrimeMissingData(ctx); err != nil {
				l.Warn("Failed to prime data after fleet change", "error", err)
			}

		case err, ok := <-watchErrs:
			if !ok {
				continue
			}
			// Keep running on a broken watcher: the periodic refresh still works.
			l.Warn("Fleet file watcher failed, config reloads disabled", "error", err)
		}
	}
}
