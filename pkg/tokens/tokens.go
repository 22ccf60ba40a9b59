// Package tokens counts model tokens in text.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is the BPE used by gpt-3.5-turbo and
// text-embedding-ada-002.
const DefaultEncoding = tokenizer.Cl100kBase

// Counter counts tokens in text.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a tiktoken BPE codec. It is safe for
// concurrent use.
type TiktokenCounter struct {
	codec tokenizer.Codec
}

// NewCounter returns a counter for encoding. An empty encoding selects
// DefaultEncoding.
func NewCounter(encoding string) (*TiktokenCounter, error) {
	enc := tokenizer.Encoding(encoding)
	if encoding == "" {
		enc = DefaultEncoding
	}

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer %s: %w", enc, err)
	}

	return &TiktokenCounter{codec: codec}, nil
}

// Count returns the number of tokens in text, estimating a quarter of the
// byte length if the codec fails.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	n, err := c.codec.Count(text)
	if err != nil {
		return Estimate(text)
	}
	return n
}

// Estimate approximates a token count without a codec.
func Estimate(text string) int {
	return (len(text) + 3) / 4
}

// EstimateCounter is a Counter backed by Estimate.
type EstimateCounter struct{}

// Count implements Counter.
func (EstimateCounter) Count(text string) int {
	return Estimate(text)
}
