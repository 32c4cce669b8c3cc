package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager loads and watches the fleet configuration file, handing out the
// current Config to the rest of the application.
type Manager struct {
	config Config
	loaded bool
	lock   sync.RWMutex
	path   string

	log *slog.Logger
}

// NewManager creates a new fleet configuration manager for the given file path.
func NewManager(l *slog.Logger, path string) *Manager {
	return &Manager{path: path, log: l}
}

// Load reads the fleet file and replaces the current configuration.
// An invalid file leaves the previous configuration in place.
func (m *Manager) Load() error {
	cfg, err := Load(m.log, m.path)
	if err != nil {
		return err
	}

	m.lock.Lock()
	m.config = cfg
	m.loaded = true
	m.lock.Unlock()

	return nil
}

// Config returns the current fleet configuration.
func (m *Manager) Config() Config {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.config
}

// Watch starts watching the fleet file for changes.
//
// It returns two channels: one for changes which result in a successful load
// and another for unrecoverable watcher errors.
func (m *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	fleetDir, _ := filepath.Split(m.path)
	if fleetDir == "" {
		fleetDir = "."
	}
	if err := watcher.Add(fleetDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", fleetDir, err)
	}

	m.log.Info("Watching fleet configuration directory", "dir", fleetDir)
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				m.log.Info("Fleet configuration watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if event.Name != m.path {
					continue
				}

				m.log.Debug("Fleet file changed. Reloading...")
				if err := m.Load(); err != nil {
					m.log.Warn("Error reloading fleet file, keeping previous fleet", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				m.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}
