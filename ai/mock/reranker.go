package mock

import (
	"context"
	"strings"
)

// MockReranker is a test double for ai.Reranker.
// It allows custom behavior injection via function fields.
type MockReranker struct {
	// RerankFunc is called by Rerank if set.
	// If nil, uses default term overlap scoring.
	RerankFunc func(ctx context.Context, query string, passages []string) ([]float64, error)

	callCount int
}

// NewMockReranker creates a mock reranker with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockReranker().
func NewMockReranker() *MockReranker {
	return &MockReranker{}
}

// Rerank scores passages deterministically.
// Default behavior: one point per query term contained in the passage.
func (m *MockReranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	m.callCount++

	if m.RerankFunc != nil {
		return m.RerankFunc(ctx, query, passages)
	}

	terms := strings.Fields(strings.ToLower(query))
	scores := make([]float64, len(passages))
	for i, passage := range passages {
		lower := strings.ToLower(passage)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				scores[i]++
			}
		}
	}
	return scores, nil
}

// CallCount returns the number of times Rerank was called.
func (m *MockReranker) CallCount() int {
	return m.callCount
}

// Reset clears the call count.
func (m *MockReranker) Reset() {
	m.callCount = 0
	m.RerankFunc = nil
}
