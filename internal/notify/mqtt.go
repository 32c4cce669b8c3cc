package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/mihaiblaga89/ro-auto/internal/snapshot"
)

// MQTTConfig holds the broker settings for the MQTT presentation backend.
// The backend is only constructed when a broker URL is configured.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// mqttConnection is the slice of autopaho.ConnectionManager the notifier
// uses. Narrowed to an interface so publish semantics are testable without a
// broker.
type mqttConnection interface {
	AwaitConnection(ctx context.Context) error
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
	Disconnect(ctx context.Context) error
}

// MQTTNotifier publishes the fleet snapshot and the failure notification to
// an MQTT broker as retained messages, so late subscribers (dashboards, home
// automation) always see the latest state. Dismissing a notification clears
// its retained topic.
type MQTTNotifier struct {
	cm     mqttConnection
	prefix string

	log *slog.Logger
}

// notification is the published payload for Create.
type notification struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NewMQTT connects to the broker and returns the backend. The connection is
// managed: it reconnects with a constant backoff until ctx is canceled.
func NewMQTT(ctx context.Context, l *slog.Logger, cfg MQTTConfig) (*MQTTNotifier, error) {
	brokerURL, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL %s: %v", cfg.Broker, err)
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "ro-auto"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "ro-auto"
	}

	n := &MQTTNotifier{prefix: cfg.TopicPrefix, log: l}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:        []*url.URL{brokerURL},
		KeepAlive:         60,
		ConnectTimeout:    10 * time.Second,
		ConnectUsername:   cfg.Username,
		ConnectPassword:   []byte(cfg.Password),
		ReconnectBackoff:  autopaho.NewConstantBackoff(5 * time.Second),
		TlsCfg:            &tls.Config{MinVersion: tls.VersionTLS12},
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			l.Info("Connected to MQTT broker", "broker", cfg.Broker)
		},
		OnConnectError: func(err error) {
			l.Warn("MQTT connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
			OnClientError: func(err error) {
				l.Warn("MQTT client error", "error", err)
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT connection manager: %v", err)
	}
	n.cm = cm

	return n, nil
}

// Create publishes the notification as a retained message.
func (n *MQTTNotifier) Create(ctx context.Context, id, title, message string) error {
	payload, err := json.Marshal(notification{ID: id, Title: title, Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %v", err)
	}
	return n.publish(ctx, n.notificationTopic(id), payload)
}

// Dismiss clears the retained notification topic.
func (n *MQTTNotifier) Dismiss(ctx context.Context, id string) error {
	// An empty retained payload deletes the retained message on the broker.
	return n.publish(ctx, n.notificationTopic(id), nil)
}

// PublishSnapshot publishes the full fleet snapshot for one instance.
func (n *MQTTNotifier) PublishSnapshot(ctx context.Context, instanceID string, snap snapshot.Fleet) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}
	return n.publish(ctx, path.Join(n.prefix, instanceID, "snapshot"), payload)
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close(ctx context.Context) error {
	return n.cm.Disconnect(ctx)
}

func (n *MQTTNotifier) notificationTopic(id string) string {
	return path.Join(n.prefix, "notifications", id)
}

func (n *MQTTNotifier) publish(ctx context.Context, topic string, payload []byte) error {
	if err := n.cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("not connected to MQTT broker: %v", err)
	}

	_, err := n.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Retain:  true,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %v", topic, err)
	}

	n.log.Debug("Published MQTT message", "topic", topic, "bytes", len(payload))
	return nil
}
