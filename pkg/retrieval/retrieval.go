// Package retrieval assembles prompt context from the documents most similar
// to a question.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/embeddings"
	"github.com/papercomputeco/chatrelay/pkg/vector"
)

const (
	// DefaultMaxTokens is the context budget when none is configured.
	DefaultMaxTokens = 2000

	// DefaultTopK is how many candidates are fetched before the token
	// budget is applied.
	DefaultTopK = 50
)

// ErrNotConfigured is returned by a nil Retriever.
var ErrNotConfigured = errors.New("retrieval is not configured")

// Config configures a Retriever.
type Config struct {
	Embedder embeddings.Embedder
	Driver   vector.Driver

	// MaxTokens caps the summed token count of the returned documents.
	MaxTokens int

	// TopK bounds the similarity search.
	TopK int

	Logger *slog.Logger
}

// Retriever embeds a query, searches the vector store and concatenates the
// closest documents while their running token total stays within budget.
type Retriever struct {
	embedder  embeddings.Embedder
	driver    vector.Driver
	maxTokens int
	topK      int
	logger    *slog.Logger
}

// New creates a Retriever.
func New(c Config) (*Retriever, error) {
	if c.Embedder == nil || c.Driver == nil {
		return nil, errors.New("retrieval requires an embedder and a vector driver")
	}

	r := &Retriever{
		embedder:  c.Embedder,
		driver:    c.Driver,
		maxTokens: c.MaxTokens,
		topK:      c.TopK,
		logger:    c.Logger,
	}
	if r.maxTokens <= 0 {
		r.maxTokens = DefaultMaxTokens
	}
	if r.topK <= 0 {
		r.topK = DefaultTopK
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r, nil
}

// Context returns the retrieved context for query.
func (r *Retriever) Context(ctx context.Context, query string) (string, error) {
	docs, err := r.Documents(ctx, query)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.Text)
	}
	return b.String(), nil
}

// Documents returns the documents making up the context for query, closest
// first.
func (r *Retriever) Documents(ctx context.Context, query string) ([]vector.Document, error) {
	if r == nil {
		return nil, ErrNotConfigured
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.driver.Query(ctx, embedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	slices.SortStableFunc(results, func(a, b vector.QueryResult) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})

	docs := Budget(results, r.maxTokens)

	r.logger.Debug("retrieved context",
		"candidates", len(results),
		"documents", len(docs),
		"max_tokens", r.maxTokens,
	)
	return docs, nil
}

// Budget keeps results, in order, while their cumulative token count does
// not exceed maxTokens.
func Budget(results []vector.QueryResult, maxTokens int) []vector.Document {
	docs := make([]vector.Document, 0, len(results))
	sum := 0
	for _, res := range results {
		sum += res.Tokens
		if sum > maxTokens {
			break
		}
		docs = append(docs, res.Document)
	}
	return docs
}

// MaxTokens returns the configured budget.
func (r *Retriever) MaxTokens() int {
	return r.maxTokens
}
