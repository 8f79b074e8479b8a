// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides abstractions for AI services used in Askit.
//
// This package defines interfaces for AI operations including text embeddings,
// chat completion, and cross-encoder reranking. It follows the dependency
// inversion principle, allowing the core domain and business logic to depend
// on abstractions rather than concrete implementations.
//
// # Design Principles
//
// The package is designed around four key interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Produces chat completions from a language model
//   - Reranker: Scores passages by relevance to a query
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
// The ai package includes two implementation sub-packages:
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// This package follows a mixed constructor pattern based on use case:
//
// Public constructors (openai.NewProvider, etc.) return INTERFACE types to
// enforce abstraction and prevent accidental coupling to concrete
// implementations. This is essential for dependency injection and
// supporting multiple implementations.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockGenerator,
// mock.NewMockReranker) return CONCRETE types to enable test assertions and
// behavior injection via the mock's public methods (CallCount, function
// fields, Reset, etc.).
//
//	mockEmbed := mock.NewMockEmbedder()  // returns *mock.MockEmbedder
//	mockEmbed.EmbedTextFunc = ...        // needs concrete type
//	count := mockEmbed.CallCount()       // test assertion
//
// The mock.NewMockProvider() returns an interface since it's the primary entry
// point, but provides GetMockEmbedder()/GetMockGenerator()/GetMockReranker()
// methods to access concrete types for assertions when needed.
//
// # Usage Example
//
//	// Production usage with OpenAI provider
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	embedding, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	scores, err := provider.Reranker().Rerank(ctx, "capital of France", passages)
//
//	// Testing usage with mocks
//	mockProvider := mock.NewMockProvider()
//	embedding, err := mockProvider.Embedder().EmbedText(ctx, "test text")
//
// # Architecture Benefits
//
//   - Testability: Business logic can be tested without external AI services
//   - Flexibility: AI providers can be swapped without changing business logic
//   - Maintainability: Clear boundaries between AI services and domain logic
//   - Extensibility: New providers can be added by implementing interfaces
package ai
