package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMessagePersisted is emitted after a chat message is stored.
	EventTypeMessagePersisted = "chatrelay.message.persisted"

	// SourceService names this service in emitted events.
	SourceService = "chatrelay"
)

// MessagePersistedEvent is a transport-neutral event payload for a stored
// message. It carries metadata only; consumers read content from storage.
type MessagePersistedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Message       MessageMeta `json:"message"`
}

// EventSource identifies where the message originated.
type EventSource struct {
	Service string `json:"service"`
	Model   string `json:"model,omitempty"`
}

// MessageMeta describes the stored message.
type MessageMeta struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           string    `json:"role"`
	Tokens         int       `json:"n_tokens"`
	ContentBytes   int       `json:"content_bytes"`
	HasContext     bool      `json:"has_context"`
	Created        time.Time `json:"created"`
}

// NewMessagePersistedEvent builds the event for msg under a fresh event id.
func NewMessagePersistedEvent(msg *storage.Message, model string) *MessagePersistedEvent {
	return &MessagePersistedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMessagePersisted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			Service: SourceService,
			Model:   model,
		},
		Message: MessageMeta{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Role:           msg.Role,
			Tokens:         msg.Tokens,
			ContentBytes:   len(msg.Content),
			HasContext:     msg.Context != "",
			Created:        msg.Created,
		},
	}
}
