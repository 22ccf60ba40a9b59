// Package completion sends streaming chat completion requests to an
// OpenAI-compatible upstream.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const (
	// DefaultURL is the OpenAI chat completions endpoint.
	DefaultURL = "https://api.openai.com/v1/chat/completions"

	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-3.5-turbo"

	// maxErrorBody caps how much of a failed upstream response is kept.
	maxErrorBody = 64 << 10
)

// UpstreamError is returned when the upstream answers with a non-200 status.
type UpstreamError struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, bytes.TrimSpace(e.Body))
}

// Config configures a Client.
type Config struct {
	// URL is the full chat completions endpoint. Defaults to DefaultURL.
	URL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Model defaults to DefaultModel.
	Model string

	// Timeout bounds the whole request including the streamed body. Zero
	// means no timeout; an unresponsive upstream stalls the stream.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client streams chat completions.
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(c Config) (*Client, error) {
	if c.APIKey == "" {
		return nil, errors.New("completion client requires an API key")
	}

	client := &Client{
		url:        c.URL,
		apiKey:     c.APIKey,
		model:      c.Model,
		httpClient: c.HTTPClient,
		logger:     c.Logger,
	}
	if client.url == "" {
		client.url = DefaultURL
	}
	if client.model == "" {
		client.model = DefaultModel
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: c.Timeout}
	}
	if client.logger == nil {
		client.logger = slog.New(slog.DiscardHandler)
	}
	return client, nil
}

// Model returns the configured chat model.
func (c *Client) Model() string {
	return c.model
}

// Stream posts messages with stream=true and returns the event-stream body.
// The caller owns the body and must close it. A non-200 response is
// returned as *UpstreamError with the body already read and closed.
func (c *Client) Stream(ctx context.Context, messages []llm.Message) (io.ReadCloser, error) {
	payload, err := json.Marshal(llm.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending completion request",
		"url", c.url,
		"model", c.model,
		"message_count", len(messages),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}
	}

	return resp.Body, nil
}
