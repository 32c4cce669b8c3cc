package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mihaiblaga89/ro-auto/internal/fleet"
	"github.com/mihaiblaga89/ro-auto/internal/notify"
	"github.com/mihaiblaga89/ro-auto/internal/roapi"
	"github.com/mihaiblaga89/ro-auto/internal/snapshot"
)

func TestMQTTCreate(t *testing.T) {
	t.Parallel()

	conn := &notify.MockConnection{}
	n := notify.NewMQTTWithConnection(slog.Default(), "ro-auto", conn)

	require.NoError(t, n.Create(context.Background(), "failures", "RO Auto", "Dacia: rca error: boom"),
		"Create should not fail")

	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	require.Len(t, conn.Published, 1, "Create should publish exactly one message")

	msg := conn.Published[0]
	assert.Equal(t, "ro-auto/notifications/failures", msg.Topic, "Create should publish to the notification topic")
	assert.True(t, msg.Retain, "the notification should be retained for late subscribers")
	assert.Equal(t, byte(1), msg.QoS, "the notification should be published at QoS 1")

	var payload struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload), "the payload should be valid JSON")
	assert.Equal(t, "failures", payload.ID, "the payload should carry the notification ID")
	assert.Equal(t, "RO Auto", payload.Title, "the payload should carry the title")
	assert.Equal(t, "Dacia: rca error: boom", payload.Message, "the payload should carry the digest")
}

func TestMQTTDismissClearsRetainedTopic(t *testing.T) {
	t.Parallel()

	conn := &notify.MockConnection{}
	n := notify.NewMQTTWithConnection(slog.Default(), "ro-auto", conn)

	require.NoError(t, n.Dismiss(context.Background(), "failures"), "Dismiss should not fail")

	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	require.Len(t, conn.Published, 1, "Dismiss should publish exactly one message")

	msg := conn.Published[0]
	assert.Equal(t, "ro-auto/notifications/failures", msg.Topic, "Dismiss should target the same topic as Create")
	assert.True(t, msg.Retain, "the clearing message must be retained to delete the retained one")
	assert.Empty(t, msg.Payload, "Dismiss should publish an empty payload")
}

func TestMQTTPublishSnapshot(t *testing.T) {
	t.Parallel()

	conn := &notify.MockConnection{}
	n := notify.NewMQTTWithConnection(slog.Default(), "ro-auto", conn)

	snap := snapshot.Fleet{"VIN1": snapshot.NewVehicle(fleet.Vehicle{Name: "Dacia", VIN: "VIN1", Plate: "B100XYZ"})}
	require.NoError(t, n.PublishSnapshot(context.Background(), "home", snap), "PublishSnapshot should not fail")

	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	require.Len(t, conn.Published, 1, "PublishSnapshot should publish exactly one message")

	msg := conn.Published[0]
	assert.Equal(t, "ro-auto/home/snapshot", msg.Topic, "the snapshot topic should be keyed by instance")
	assert.True(t, msg.Retain, "the snapshot should be retained")

	var got snapshot.Fleet
	require.NoError(t, json.Unmarshal(msg.Payload, &got), "the payload should be the JSON snapshot")
	require.Contains(t, got, "VIN1", "the published snapshot should carry the vehicle")
	assert.Equal(t, "B100XYZ", got["VIN1"].Plate, "the vehicle record should round-trip")
}

func TestMQTTReporterLifecycle(t *testing.T) {
	t.Parallel()

	dacia := fleet.Vehicle{Name: "Dacia", VIN: "VIN1", Plate: "B100XYZ"}
	cfg := fleet.Config{Vehicles: []fleet.Vehicle{dacia}}

	conn := &notify.MockConnection{}
	r := notify.NewReporter(notify.NewMQTTWithConnection(slog.Default(), "ro-auto", conn))

	snap := snapshot.Fleet{"VIN1": snapshot.NewVehicle(dacia)}
	snap["VIN1"].ApplyError(fleet.Vignette, "request timed out")
	require.NoError(t, r.Report(context.Background(), cfg, snap), "a failing cycle should publish a notification")

	snap["VIN1"].ApplyVignette(roapi.VignetteData{Valid: true}, time.Now())
	require.NoError(t, r.Report(context.Background(), cfg, snap), "a clean cycle should clear the notification")

	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	require.Len(t, conn.Published, 2, "the lifecycle should publish create then clear")
	assert.Equal(t, conn.Published[0].Topic, conn.Published[1].Topic, "create and clear should share the topic")
	assert.NotEmpty(t, conn.Published[0].Payload, "the create message should carry the digest")
	assert.Empty(t, conn.Published[1].Payload, "the clearing message should be empty")
}

func TestMQTTPublishFailures(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		conn *notify.MockConnection
	}{
		"Connection never comes up": {conn: &notify.MockConnection{AwaitErr: errors.New("context canceled")}},
		"Publish rejected":          {conn: &notify.MockConnection{PublishErr: errors.New("broker gone")}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			n := notify.NewMQTTWithConnection(slog.Default(), "ro-auto", tc.conn)
			require.Error(t, n.Create(context.Background(), "failures", "t", "m"), "Create should surface the failure")

			tc.conn.Mu.Lock()
			defer tc.conn.Mu.Unlock()
			assert.Empty(t, tc.conn.Published, "nothing should be recorded as published")
		})
	}
}
