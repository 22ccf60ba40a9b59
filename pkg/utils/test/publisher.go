package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.MessagePersistedEvent

	// Fail causes PublishMessage to return an error.
	Fail bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishMessage(_ context.Context, event *eventstream.MessagePersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if m.Fail {
		return errors.New("mock publish failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a snapshot of the published events.
func (m *MockPublisher) Events() []*eventstream.MessagePersistedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.MessagePersistedEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	return nil
}
