// Package notify is the implementation of the failure reporting component.
// It aggregates per-vehicle, per-subsystem refresh errors into one
// human-readable digest, and hands it to a notification backend with
// create/dismiss semantics.
package notify

import (
	"context"
	"log/slog"
)

// Notifier is the notification surface the failure reporter talks to.
// Create replaces any previous notification with the same id; it is not
// additive. Dismiss removes it.
type Notifier interface {
	Create(ctx context.Context, id, title, message string) error
	Dismiss(ctx context.Context, id string) error
}

// LogNotifier is the default backend: it surfaces notifications in the log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a Notifier writing to l.
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	return &LogNotifier{log: l}
}

// Create logs the notification content at warning level.
func (n *LogNotifier) Create(_ context.Context, id, title, message string) error {
	n.log.Warn("Notification raised", "id", id, "title", title, "message", message)
	return nil
}

// Dismiss logs that the notification cleared.
func (n *LogNotifier) Dismiss(_ context.Context, id string) error {
	n.log.Info("Notification dismissed", "id", id)
	return nil
}
