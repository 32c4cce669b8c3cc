// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default configuration and cache paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "ro-auto"

	// DefaultAppFolder is the name of the default root folder.
	DefaultAppFolder = "ro-auto"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultFleetFileName is the default base name of the fleet configuration file.
	DefaultFleetFileName = "fleet.toml"

	// SnapshotFileName is the name of the persisted snapshot cache file.
	SnapshotFileName = "snapshots.json"

	// DefaultInstanceID is the store key used when the fleet file does not set one.
	DefaultInstanceID = "default"

	// DefaultRefreshInterval is how often the daemon runs a full refresh.
	DefaultRefreshInterval = 12 * time.Hour

	// DefaultCacheTTL is the maximum age of a persisted snapshot before it
	// is considered stale at startup.
	DefaultCacheTTL = 24 * time.Hour

	// VignetteTimeout bounds calls to the public vignette endpoint.
	VignetteTimeout = 20 * time.Second

	// PrivateEndpointTimeout bounds calls to the RCA and ITP endpoints,
	// which are slower and less reliable than the public one.
	PrivateEndpointTimeout = 45 * time.Second

	// FailureNotificationID identifies the aggregated failure notification,
	// so repeated reports overwrite rather than accumulate.
	FailureNotificationID = "ro-auto-refresh-failures"

	// VignetteAPIURL is the public erovinieta vignette check endpoint.
	VignetteAPIURL = "https://www.erovinieta.ro/vgncheck/api/findVignettes"

	// RCAPathSuffix is appended to a configured RCA base URL unless already present.
	RCAPathSuffix = "/api/rca/check"

	// ITPPathSuffix is appended to a configured ITP base URL unless already present.
	ITPPathSuffix = "/api/itp/check"
)

var (
	// DefaultConfigPath is the default app user configuration path. It's overridden when imported.
	DefaultConfigPath = DefaultAppFolder

	// DefaultCachePath is the default app user cache path. It's overridden when imported.
	DefaultCachePath = DefaultAppFolder
)

func init() {
	initializePaths()
}

// initializePaths initializes the default configuration and cache paths based
// on the user's home directory.
func initializePaths() {
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		DefaultConfigPath = filepath.Join(userConfigDir, DefaultAppFolder)
	} else {
		slog.Warn("Could not determine user config directory", "error", err)
	}

	if userCacheDir, err := os.UserCacheDir(); err == nil {
		DefaultCachePath = filepath.Join(userCacheDir, DefaultAppFolder)
	} else {
		slog.Warn("Could not determine user cache directory", "error", err)
	}
}
