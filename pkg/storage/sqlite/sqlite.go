// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation (
	id      TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title   TEXT NOT NULL,
	created TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS message (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NULL REFERENCES conversation (id) ON DELETE CASCADE,
	content         TEXT NOT NULL,
	role            TEXT NOT NULL,
	context         TEXT NULL,
	n_tokens        INTEGER NOT NULL DEFAULT 0,
	created         TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS message_conversation_created_idx
	ON message (conversation_id, created);
`

const messageColumns = `id, conversation_id, content, role, context, n_tokens, created`

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver opens the database at dbPath and ensures the schema.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// AppendMessage inserts msg and fills in its ID and Created timestamp.
func (d *Driver) AppendMessage(ctx context.Context, msg *storage.Message) error {
	if msg == nil {
		return errors.New("cannot store nil message")
	}
	if msg.Created.IsZero() {
		msg.Created = time.Now().UTC()
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO message (conversation_id, content, role, context, n_tokens, created)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullString(msg.ConversationID),
		msg.Content,
		msg.Role,
		nullString(msg.Context),
		msg.Tokens,
		msg.Created,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	msg.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading message id: %w", err)
	}
	return nil
}

// ListMessages returns messages ordered by creation.
func (d *Driver) ListMessages(ctx context.Context, conversationID string) ([]*storage.Message, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+messageColumns+`
		 FROM message
		 WHERE ?1 IS NULL OR conversation_id = ?1
		 ORDER BY created, id`,
		nullString(conversationID),
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	return collectMessages(rows)
}

// History returns the newest messages that fit in maxTokens, oldest first.
func (d *Driver) History(ctx context.Context, conversationID string, maxTokens int) ([]*storage.Message, error) {
	msgs, err := d.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	return storage.TrimHistory(msgs, maxTokens), nil
}

// CreateConversation inserts a conversation under a new random ID.
func (d *Driver) CreateConversation(ctx context.Context, userID, title string) (string, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO conversation (id, user_id, title, created) VALUES (?, ?, ?, ?)`,
		id, userID, title, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting conversation: %w", err)
	}

	return id, nil
}

// GetConversation retrieves a conversation by ID.
func (d *Driver) GetConversation(ctx context.Context, id string) (*storage.Conversation, error) {
	c := &storage.Conversation{}
	err := d.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created FROM conversation WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	return c, nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func collectMessages(rows *sql.Rows) ([]*storage.Message, error) {
	defer rows.Close()

	var msgs []*storage.Message
	for rows.Next() {
		var (
			m              storage.Message
			conversationID sql.NullString
			retrieved      sql.NullString
		)
		if err := rows.Scan(&m.ID, &conversationID, &m.Content, &m.Role, &retrieved, &m.Tokens, &m.Created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.ConversationID = conversationID.String
		m.Context = retrieved.String
		msgs = append(msgs, &m)
	}

	return msgs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
