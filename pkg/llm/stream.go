package llm

// StopReason is the finish_reason value that ends a completion stream.
const StopReason = "stop"

// DoneSentinel is the data payload some upstreams send after the final chunk.
const DoneSentinel = "[DONE]"

// StreamChunk is the JSON payload of a single "data:" record in a streamed
// chat completion.
type StreamChunk struct {
	ID      string         `json:"id,omitempty"`
	Model   string         `json:"model,omitempty"`
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice is one choice within a StreamChunk.
type StreamChoice struct {
	Index int `json:"index"`

	// Delta carries the incremental content for this chunk.
	Delta StreamDelta `json:"delta"`

	// FinishReason is nil until the upstream stops generating.
	FinishReason *string `json:"finish_reason"`
}

// StreamDelta is the incremental message fragment of a StreamChoice.
type StreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}
