// Package storage defines persistence of conversations and their messages.
package storage

import (
	"context"
	"time"
)

// Message is one stored chat message.
type Message struct {
	ID int64 `json:"id"`

	// ConversationID is empty for messages that belong to no conversation.
	ConversationID string `json:"conversationId,omitempty"`

	Role    string `json:"role"`
	Content string `json:"content"`

	// Context is the retrieved document text the message was answered with.
	Context string `json:"context,omitempty"`

	// Tokens is the token count of Content.
	Tokens int `json:"n_tokens"`

	Created time.Time `json:"created"`
}

// Conversation groups messages under a title for one user.
type Conversation struct {
	ID      string    `json:"id"`
	UserID  string    `json:"userId"`
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
}

// Driver defines the interface for persisting and retrieving messages.
type Driver interface {
	// AppendMessage stores msg, assigning its ID and, when zero, its Created
	// timestamp.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns messages ordered by creation. An empty
	// conversationID lists every message.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// History returns the most recent messages whose cumulative token count,
	// summed from newest to oldest, does not exceed maxTokens. The result is
	// ordered oldest first. An empty conversationID spans every message.
	History(ctx context.Context, conversationID string, maxTokens int) ([]*Message, error)

	// CreateConversation stores a new conversation and returns its ID.
	CreateConversation(ctx context.Context, userID, title string) (string, error)

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// Close releases any resources held by the driver.
	Close() error
}

// TrimHistory applies the History token window to msgs ordered oldest
// first. It is shared by drivers that cannot express the window in SQL.
func TrimHistory(msgs []*Message, maxTokens int) []*Message {
	sum := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		sum += msgs[i].Tokens
		if sum > maxTokens {
			break
		}
		start = i
	}

	return msgs[start:]
}
