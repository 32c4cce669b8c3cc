package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eclipse/paho.golang/paho"
)

// MockConnection records published messages instead of talking to a broker.
type MockConnection struct {
	Mu        sync.Mutex
	Published []*paho.Publish

	AwaitErr   error
	PublishErr error

	Disconnected bool
}

func (m *MockConnection) AwaitConnection(context.Context) error {
	return m.AwaitErr
}

func (m *MockConnection) Publish(_ context.Context, p *paho.Publish) (*paho.PublishResponse, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.PublishErr != nil {
		return nil, m.PublishErr
	}
	m.Published = append(m.Published, p)
	return &paho.PublishResponse{}, nil
}

func (m *MockConnection) Disconnect(context.Context) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Disconnected = true
	return nil
}

// NewMQTTWithConnection returns a backend on an existing connection, for tests.
func NewMQTTWithConnection(l *slog.Logger, prefix string, conn *MockConnection) *MQTTNotifier {
	return &MQTTNotifier{cm: conn, prefix: prefix, log: l}
}
