package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/mihaiblaga89/ro-auto/internal/fleet"
	"github.com/mihaiblaga89/ro-auto/internal/orchestrator"
)

func installRefreshCmd(app *App) {
	refreshCmd := &cobra.Command{
		Use:   "refresh [rca|itp]",
		Short: "Refresh compliance data once and exit",
		Long: `Refresh compliance data once and exit.

Without an argument every enabled (vehicle, subsystem) pair is refreshed.
With "rca" or "itp" only that subsystem is refreshed across the fleet,
leaving all other data untouched.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(fleet.RCA), string(fleet.ITP)},
		RunE: func(cmd *cobra.Command, args []string) error {
			sub := fleet.Subsystem("")
			if len(args) == 1 {
				sub = fleet.Subsystem(args[0])
			}
			return app.refreshRun(cmd, sub)
		},
	}

	app.cmd.AddCommand(refreshCmd)
}

// refreshRun performs one refresh cycle on top of whatever snapshot is cached.
func (a *App) refreshRun(cmd *cobra.Command, sub fleet.Subsystem) error {
	l := slog.Default()
	ctx := cmd.Context()

	cfg, err := fleet.Load(l, a.config.FleetFile)
	if err != nil {
		return err
	}

	orch, cleanup, err := a.buildOrchestrator(ctx, l, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// Merge on top of the cached snapshot so untouched subsystems keep their data.
	orch.LoadCache()

	var out orchestrator.Outcome
	if sub == "" {
		out, err = orch.FullRefresh(ctx)
	} else {
		out, err = orch.ManualRefresh(ctx, sub)
	}
	if err != nil {
		return err
	}

	if out.Attempted == 0 {
		fmt.Println("Nothing to refresh.")
		return nil
	}
	fmt.Printf("Refreshed %d checks, %d failed.\n", out.Attempted, out.Failed)
	return nil
}
