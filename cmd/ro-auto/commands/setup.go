package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mihaiblaga89/ro-auto/internal/fleet"
	"github.com/mihaiblaga89/ro-auto/internal/notify"
	"github.com/mihaiblaga89/ro-auto/internal/orchestrator"
	"github.com/mihaiblaga89/ro-auto/internal/roapi"
	"github.com/mihaiblaga89/ro-auto/internal/store"
)

// buildClients constructs the per-capability subsystem clients. The vignette
// client needs no credentials and is always present; the RCA and ITP clients
// exist only when usable credentials were supplied, so missing credentials
// simply leave the subsystem disabled.
func buildClients(l *slog.Logger, cfg fleet.Config) orchestrator.Clients {
	clients := orchestrator.Clients{
		Vignette: roapi.NewVignette(l),
	}

	if cfg.RcaEnabled() {
		clients.RCA = roapi.NewRCA(l, cfg.RCA.URL, cfg.RCA.Username, cfg.RCA.Password)
	}
	if cfg.ItpEnabled() {
		clients.ITP = roapi.NewITP(l, cfg.ITP.URL, cfg.ITP.Username, cfg.ITP.Password)
	}

	return clients
}

// buildOrchestrator wires the store, notification backend and subsystem
// clients into an orchestrator for the given fleet. The returned cleanup
// function disconnects the MQTT backend, if one was configured.
func (a *App) buildOrchestrator(ctx context.Context, l *slog.Logger, cfg fleet.Config) (*orchestrator.Orchestrator, func(), error) {
	st, err := store.New(l, a.config.CacheDir, cfg.InstanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create snapshot store: %v", err)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(l)
	var publisher orchestrator.Publisher
	cleanup := func() {}

	if a.config.MQTT.Broker != "" {
		mqtt, err := notify.NewMQTT(ctx, l, notify.MQTTConfig{
			Broker:      a.config.MQTT.Broker,
			ClientID:    a.config.MQTT.ClientID,
			Username:    a.config.MQTT.Username,
			Password:    a.config.MQTT.Password,
			TopicPrefix: a.config.MQTT.TopicPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up MQTT backend: %v", err)
		}
		notifier = mqtt
		publisher = mqtt
		cleanup = func() {
			if err := mqtt.Close(context.Background()); err != nil {
				l.Warn("Failed to disconnect from MQTT broker", "error", err)
			}
		}
	}

	orch, err := orchestrator.New(l, cfg, buildClients(l, cfg), st,
		notify.NewReporter(notifier), publisher, a.config.CacheTTL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create orchestrator: %v", err)
	}

	return orch, cleanup, nil
}
