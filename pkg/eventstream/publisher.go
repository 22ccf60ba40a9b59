// Package eventstream publishes notifications about persisted messages to an
// event bus.
package eventstream

import "context"

// Publisher publishes message events to an event stream backend.
type Publisher interface {
	PublishMessage(ctx context.Context, event *MessagePersistedEvent) error
	Close() error
}
