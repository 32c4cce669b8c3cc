package store

import "time"

type MockTimeProvider struct {
	CurrentTime int64
}

func (m MockTimeProvider) Now() time.Time {
	return time.Unix(m.CurrentTime, 0)
}

// WithTimeProvider sets the time provider for the store.
func WithTimeProvider(tp timeProvider) Options {
	return func(o *options) {
		o.timeProvider = tp
	}
}

// Path exposes the snapshot file path for tests.
func (s *Store) Path() string {
	return s.path
}
