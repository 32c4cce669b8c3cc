// Package store is the implementation of the snapshot store component.
// It persists the last merged fleet snapshot per configuration instance, so
// the daemon can restart without hitting the upstreams when the cached data
// is fresh enough.
//
// All envelopes share one physical file, multiplexed by instance key: saving
// replaces only this instance's envelope and leaves the others untouched.
// Load failures of any kind are non-fatal and simply mean "no cache".
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ubuntu/decorate"
	"github.com/mihaiblaga89/ro-auto/internal/constants"
	"github.com/mihaiblaga89/ro-auto/internal/fileutils"
	"github.com/mihaiblaga89/ro-auto/internal/snapshot"
)

// envelopeVersion is bumped when the persisted shape changes incompatibly.
// Envelopes with a different version are treated as absent.
const envelopeVersion = 1

// Envelope wraps a persisted fleet snapshot with its save timestamp.
type Envelope struct {
	Version int            `json:"version"`
	SavedAt time.Time      `json:"savedAt"`
	Data    snapshot.Fleet `json:"data"`
}

type timeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time {
	return time.Now()
}

// Store reads and writes snapshot envelopes for one instance key.
type Store struct {
	path       string
	instanceID string

	time timeProvider

	log *slog.Logger
}

type options struct {
	// Private members exported for tests.
	timeProvider timeProvider
}

var defaultOptions = options{
	timeProvider: realTimeProvider{},
}

// Options represents an optional function to override Store default values.
type Options func(*options)

// New returns a store writing to the snapshot file under cacheDir, keyed by
// instanceID.
func New(l *slog.Logger, cacheDir, instanceID string, args ...Options) (*Store, error) {
	if instanceID == "" {
		return nil, errors.New("instance ID cannot be empty")
	}

	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %v", err)
	}

	opts := defaultOptions
	for _, opt := range args {
		opt(&opts)
	}

	return &Store{
		path:       filepath.Join(cacheDir, constants.SnapshotFileName),
		instanceID: instanceID,
		time:       opts.timeProvider,
		log:        l,
	}, nil
}

// Load returns this instance's envelope, if a valid one is persisted.
// Any failure (missing file, I/O error, corrupt JSON, version mismatch) is
// logged and reported as "no cache", never as a hard error.
func (s *Store) Load() (Envelope, bool) {
	envelopes, err := s.readAll()
	if err != nil {
		s.log.Warn("Could not read snapshot cache, proceeding without it", "file", s.path, "error", err)
		return Envelope{}, false
	}

	env, ok := envelopes[s.instanceID]
	if !ok {
		s.log.Debug("No cached snapshot for instance", "instance", s.instanceID)
		return Envelope{}, false
	}

	if env.Version != envelopeVersion {
		s.log.Warn("Cached snapshot has an incompatible version, ignoring it",
			"instance", s.instanceID, "version", env.Version)
		return Envelope{}, false
	}
	if env.Data == nil {
		s.log.Warn("Cached snapshot has no data, ignoring it", "instance", s.instanceID)
		return Envelope{}, false
	}

	return env, true
}

// Save stamps the current time and replaces this instance's envelope,
// preserving envelopes persisted by other instances in the same file.
func (s *Store) Save(data snapshot.Fleet) (err error) {
	defer decorate.OnError(&err, "could not save snapshot for instance %s", s.instanceID)

	envelopes, err := s.readAll()
	if err != nil {
		// A cache we cannot read is a cache we are allowed to replace.
		s.log.Warn("Could not read existing snapshot cache, replacing it", "file", s.path, "error", err)
		envelopes = map[string]Envelope{}
	}

	envelopes[s.instanceID] = Envelope{
		Version: envelopeVersion,
		SavedAt: s.time.Now(),
		Data:    data,
	}

	out, err := json.Marshal(envelopes)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot cache: %v", err)
	}

	if err := fileutils.AtomicWrite(s.path, out); err != nil {
		return fmt.Errorf("failed to write snapshot cache: %v", err)
	}

	s.log.Debug("Snapshot saved", "file", s.path, "instance", s.instanceID, "vehicles", len(data))
	return nil
}

// readAll reads every instance's envelope from the snapshot file.
// A missing file yields an empty map and no error.
func (s *Store) readAll() (map[string]Envelope, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Envelope{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot cache: %v", err)
	}
	defer f.Close()

	var envelopes map[string]Envelope
	if err := fileutils.ParseJSON(f, &envelopes); err != nil {
		return nil, err
	}
	if envelopes == nil {
		envelopes = map[string]Envelope{}
	}

	return envelopes, nil
}
