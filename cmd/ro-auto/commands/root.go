// Package commands contains the commands of the ro-auto CLI.
package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/mihaiblaga89/ro-auto/internal/cli"
	"github.com/mihaiblaga89/ro-auto/internal/constants"
)

// App represents the application.
type App struct {
	cmd   *cobra.Command
	viper *viper.Viper

	config appConfig
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int

	FleetFile string
	CacheDir  string

	Interval time.Duration
	CacheTTL time.Duration

	MQTT mqttConfig
}

// mqttConfig holds the optional MQTT presentation backend settings.
// The backend is only used when a broker URL is set.
type mqttConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "Track vignette, RCA and ITP compliance for a fleet of vehicles",
		Long: `ro-auto periodically checks the Romanian road-toll vignette, RCA insurance
and ITP inspection status for every configured vehicle, keeps the merged
results cached on disk, and raises a single aggregated notification for
anything that fails to refresh.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true

			cli.SetVerbosity(a.config.Verbosity) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config, viper.DecodeHook(
				mapstructure.StringToTimeDurationHookFunc(),
			)); err != nil {
				return fmt.Errorf("unable to decode configuration into struct: %w", err)
			}

			cli.SetVerbosity(a.config.Verbosity)
			slog.Debug("Got app config", "config", a.config)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootFlags(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	installRunCmd(&a)
	installRefreshCmd(&a)
	installShowCmd(&a)
	installVersionCmd(&a)

	return &a, nil
}

func installRootFlags(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")

	cmd.PersistentFlags().StringVar(&app.config.FleetFile, "fleet-file",
		filepath.Join(constants.DefaultConfigPath, constants.DefaultFleetFileName),
		"path to the fleet configuration file")
	cmd.PersistentFlags().StringVar(&app.config.CacheDir, "cache-dir",
		constants.DefaultCachePath, "directory to persist fleet snapshots in")

	cmd.PersistentFlags().DurationVar(&app.config.Interval, "interval",
		constants.DefaultRefreshInterval, "how often the daemon runs a full refresh")
	cmd.PersistentFlags().DurationVar(&app.config.CacheTTL, "cache-ttl",
		constants.DefaultCacheTTL, "maximum age of the persisted snapshot before it is ignored at startup")

	cmd.PersistentFlags().StringVar(&app.config.MQTT.Broker, "mqtt-broker", "",
		"MQTT broker URL to publish snapshots and notifications to (disabled when empty)")
	cmd.PersistentFlags().StringVar(&app.config.MQTT.ClientID, "mqtt-client-id", constants.CmdName,
		"MQTT client identifier")
	cmd.PersistentFlags().StringVar(&app.config.MQTT.Username, "mqtt-username", "", "MQTT username")
	cmd.PersistentFlags().StringVar(&app.config.MQTT.Password, "mqtt-password", "", "MQTT password")
	cmd.PersistentFlags().StringVar(&app.config.MQTT.TopicPrefix, "mqtt-topic-prefix", constants.CmdName,
		"prefix for published MQTT topics")

	if err := cmd.MarkPersistentFlagFilename("fleet-file"); err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark fleet-file flag as filename: %v", err))
	}
	if err := cmd.MarkPersistentFlagDirname("cache-dir"); err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark cache-dir flag as dirname: %v", err))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a *App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

func installVersionCmd(app *App) {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Returns the version of " + constants.CmdName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s\t%s\n", constants.CmdName, constants.Version)
			return nil
		},
	}

	app.cmd.AddCommand(versionCmd)
}
