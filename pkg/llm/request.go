package llm

// ChatRequest is the upstream chat completion request body.
type ChatRequest struct {
	// Model name (e.g., "gpt-3.5-turbo")
	Model string `json:"model"`

	// Conversation messages, system prompt first
	Messages []Message `json:"messages"`

	// Whether to stream the response as server-sent events
	Stream bool `json:"stream"`
}

// ErrorResponse is the JSON body returned for failed API calls.
type ErrorResponse struct {
	Error string `json:"error"`
}
