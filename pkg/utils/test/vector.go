package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/chatrelay/pkg/vector"
)

// MockVectorDriver is a test vector driver. Query returns Results as given,
// ignoring the embedding.
type MockVectorDriver struct {
	mu sync.Mutex

	Documents []vector.Document
	Results   []vector.QueryResult

	// FailQuery causes Query to return an error.
	FailQuery bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	if m.FailQuery {
		return nil, errors.New("mock query failure")
	}
	if topK <= 0 || len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
