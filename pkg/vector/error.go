package vector

import "errors"

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDimensions is returned when an embedding does not match the
	// configured dimensions of the store.
	ErrDimensions = errors.New("embedding dimensions mismatch")
)

// DefaultTopK is used by drivers when Query is called with topK <= 0.
const DefaultTopK = 10
