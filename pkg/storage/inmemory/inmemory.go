// Package inmemory provides a map-backed storage.Driver for tests and
// ephemeral runs.
package inmemory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Driver implements storage.Driver in process memory.
type Driver struct {
	mu sync.RWMutex

	messages      []*storage.Message
	nextID        int64
	conversations map[string]*storage.Conversation
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		conversations: make(map[string]*storage.Conversation),
	}
}

// AppendMessage stores a copy of msg.
func (d *Driver) AppendMessage(_ context.Context, msg *storage.Message) error {
	if msg == nil {
		return errors.New("cannot store nil message")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	msg.ID = d.nextID
	if msg.Created.IsZero() {
		msg.Created = time.Now().UTC()
	}

	stored := *msg
	d.messages = append(d.messages, &stored)
	return nil
}

// ListMessages returns messages in creation order.
func (d *Driver) ListMessages(_ context.Context, conversationID string) ([]*storage.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.filter(conversationID), nil
}

// History returns the newest messages that fit in maxTokens, oldest first.
func (d *Driver) History(_ context.Context, conversationID string, maxTokens int) ([]*storage.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return storage.TrimHistory(d.filter(conversationID), maxTokens), nil
}

// CreateConversation stores a conversation under a new random ID.
func (d *Driver) CreateConversation(_ context.Context, userID, title string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.NewString()
	d.conversations[id] = &storage.Conversation{
		ID:      id,
		UserID:  userID,
		Title:   title,
		Created: time.Now().UTC(),
	}
	return id, nil
}

// GetConversation retrieves a conversation by ID.
func (d *Driver) GetConversation(_ context.Context, id string) (*storage.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.conversations[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	cp := *c
	return &cp, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

// filter copies the messages of one conversation. Callers hold mu.
func (d *Driver) filter(conversationID string) []*storage.Message {
	out := make([]*storage.Message, 0, len(d.messages))
	for _, m := range d.messages {
		if conversationID != "" && m.ConversationID != conversationID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}

	slices.SortStableFunc(out, func(a, b *storage.Message) int {
		return a.Created.Compare(b.Created)
	})
	return out
}
