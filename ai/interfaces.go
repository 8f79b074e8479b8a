package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationRequest describes a single chat completion call.
// System carries the instruction prompt, Prompt the user turn.
type GenerationRequest struct {
	// System is the system prompt. May be empty.
	System string

	// Prompt is the user message the model should respond to.
	Prompt string

	// Temperature controls sampling randomness. Zero requests
	// deterministic output.
	Temperature float64

	// MaxTokens caps the response length. Zero means no explicit cap.
	MaxTokens int

	// JSONMode asks the model to emit a single JSON object.
	JSONMode bool
}

// Generator produces chat completions from a language model.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate runs a single completion and returns the model's text.
	// Returns an error if the call fails or the model returns no output.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Reranker scores passages by relevance to a query using a cross-encoder.
// Implementations must be thread-safe for concurrent use.
type Reranker interface {
	// Rerank returns one relevance score per passage, in input order.
	// Scores are raw model logits; larger means more relevant, and
	// negative values are common. The returned slice always has
	// len(passages) entries on success.
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder, Generator, and Reranker instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the chat completion service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Reranker returns the cross-encoder scoring service.
	// The returned Reranker is safe for concurrent use.
	Reranker() Reranker

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
