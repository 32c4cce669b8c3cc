package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/mihaiblaga89/ro-auto/internal/fleet"
	"github.com/mihaiblaga89/ro-auto/internal/notify"
	"github.com/mihaiblaga89/ro-auto/internal/snapshot"
	"github.com/mihaiblaga89/ro-auto/internal/store"
)

func installShowCmd(app *App) {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cached fleet snapshot",
		Long: `Print the cached fleet snapshot as JSON, along with the failure digest
for anything currently in an error state. No network calls are made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showRun()
		},
	}

	app.cmd.AddCommand(showCmd)
}

func (a *App) showRun() error {
	l := slog.Default()

	cfg, err := fleet.Load(l, a.config.FleetFile)
	if err != nil {
		return err
	}

	st, err := store.New(l, a.config.CacheDir, cfg.InstanceID)
	if err != nil {
		return err
	}

	env, ok := st.Load()
	if !ok {
		fmt.Println("No cached snapshot. Run `ro-auto refresh` first.")
		return nil
	}

	out, err := json.MarshalIndent(env.Data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render snapshot: %v", err)
	}

	fmt.Printf("Snapshot saved at %s:\n%s\n", env.SavedAt.Format("2006-01-02 15:04:05"), out)

	if lines := expiryLines(env.Data); len(lines) > 0 {
		fmt.Printf("\nUpcoming expirations:\n%s\n", strings.Join(lines, "\n"))
	}

	if digest := notify.Digest(cfg, env.Data); digest != "" {
		fmt.Printf("\nCurrent failures:\n%s\n", digest)
	}
	return nil
}

// expiryLines renders the known expiry dates, soonest first.
func expiryLines(snap snapshot.Fleet) []string {
	type expiry struct {
		label string
		sub   fleet.Subsystem
		date  time.Time
	}

	var expiries []expiry
	for _, record := range snap {
		label := record.Name
		if label == "" {
			label = record.VIN
		}
		for sub, date := range record.Expirations() {
			expiries = append(expiries, expiry{label: label, sub: sub, date: date})
		}
	}
	sort.Slice(expiries, func(i, j int) bool {
		if !expiries[i].date.Equal(expiries[j].date) {
			return expiries[i].date.Before(expiries[j].date)
		}
		if expiries[i].label != expiries[j].label {
			return expiries[i].label < expiries[j].label
		}
		return expiries[i].sub < expiries[j].sub
	})

	lines := make([]string, 0, len(expiries))
	for _, e := range expiries {
		lines = append(lines, fmt.Sprintf("%s: %s expires %s", e.label, e.sub, e.date.Format("2006-01-02")))
	}
	return lines
}
