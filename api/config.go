// Package api provides the chat relay HTTP server: streamed completions,
// conversation and message storage, and context retrieval.
package api

import (
	"context"
	"io"

	"github.com/papercomputeco/chatrelay/pkg/embeddings"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/retrieval"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// Completer opens a streamed chat completion upstream.
type Completer interface {
	Stream(ctx context.Context, messages []llm.Message) (io.ReadCloser, error)
	Model() string
}

// Persister stores a message synchronously.
type Persister interface {
	PersistAndPublish(ctx context.Context, job worker.Job) (*storage.Message, error)
}

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// MaxHistoryTokens bounds the conversation history sent upstream.
	MaxHistoryTokens int

	Completer Completer
	Persister Persister

	// Recorder persists streamed assistant completions.
	Recorder *relay.Recorder

	// Retriever is optional. Without it /api/context answers 503 and
	// /api/with-context sends an empty context.
	Retriever *retrieval.Retriever

	// Embedder is optional. Without it /api/embeddings answers 503.
	Embedder embeddings.Embedder
}
