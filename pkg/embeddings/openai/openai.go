// Package openai implements pkg/embeddings' Embedder with the OpenAI
// embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/papercomputeco/chatrelay/pkg/embeddings"
	"github.com/papercomputeco/chatrelay/pkg/vector"
)

// DefaultEmbeddingModel produces 1536-dimensional embeddings.
const DefaultEmbeddingModel = string(oa.EmbeddingModelTextEmbeddingAda002)

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for a compatible gateway.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions requests shortened embeddings from models that support
	// it. Zero keeps the model's native size.
	Dimensions uint

	// Timeout bounds a single request. Defaults to 60 seconds.
	Timeout time.Duration

	// MaxRetries overrides the SDK's retry count when non-nil.
	MaxRetries *int
}

// Embedder wraps the OpenAI embeddings endpoint.
type Embedder struct {
	client     oa.Client
	model      string
	dimensions uint
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder requires an API key")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*cfg.MaxRetries))
	}

	return &Embedder{
		client:     oa.NewClient(opts...),
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := oa.EmbeddingNewParams{
		Input: oa.EmbeddingNewParamsInputUnion{OfString: oa.String(text)},
		Model: oa.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = oa.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrEmbedding)
	}

	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, f := range raw {
		out[i] = float32(f)
	}
	return out, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
