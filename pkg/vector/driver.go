// Package vector provides interfaces and implementations for similarity
// search over embedded documents.
package vector

import "context"

// Document is a chunk of reference text with its embedding.
type Document struct {
	// ID is a unique identifier for the document.
	ID string

	// Text is the document content returned as retrieval context.
	Text string

	// Tokens is the token count of Text.
	Tokens int

	// Embedding is the vector representation of Text. Query results may
	// leave it empty.
	Embedding []float32
}

// QueryResult is a search hit.
type QueryResult struct {
	Document

	// Distance from the query embedding (lower = more similar).
	Distance float32
}

// Driver handles storage and retrieval of document embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK documents closest to the given embedding, ordered
	// by increasing distance.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Close releases any resources held by the driver.
	Close() error
}
