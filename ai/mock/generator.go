package mock

import (
	"context"

	"github.com/poiesic/askit/ai"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns a canned answer.
	GenerateFunc func(ctx context.Context, req ai.GenerationRequest) (string, error)

	callCount   int
	lastRequest ai.GenerationRequest
}

// NewMockGenerator creates a mock generator with default canned behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns a canned answer unless GenerateFunc is set.
// The request is recorded either way and can be inspected via LastRequest.
func (m *MockGenerator) Generate(ctx context.Context, req ai.GenerationRequest) (string, error) {
	m.callCount++
	m.lastRequest = req

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}

	return "mock answer", nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// LastRequest returns the request from the most recent Generate call.
func (m *MockGenerator) LastRequest() ai.GenerationRequest {
	return m.lastRequest
}

// Reset clears the call count and recorded request.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.lastRequest = ai.GenerationRequest{}
	m.GenerateFunc = nil
}
