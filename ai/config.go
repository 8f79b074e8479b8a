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


package ai

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// GeneratorHost is the base URL for the chat completion service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	GeneratorHost string

	// RerankHost is the base URL for the cross-encoder reranking service.
	// The service must expose a Cohere-compatible /rerank endpoint, as
	// served by Infinity or Text Embeddings Inference.
	// Example: "http://localhost:7997"
	RerankHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// GeneratorModel is the model identifier to use for answer generation
	// and query rewriting.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	GeneratorModel string

	// RerankModel is the cross-encoder model identifier.
	// Example: "bge-reranker-v2-m3"
	RerankModel string

	// RerankTimeout bounds a single rerank HTTP call.
	// Default: 30s
	RerankTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithGeneratorHost sets the chat completion service host URL.
func WithGeneratorHost(host string) ConfigOption {
	return func(c *Config) {
		c.GeneratorHost = host
	}
}

// WithRerankHost sets the reranking service host URL.
func WithRerankHost(host string) ConfigOption {
	return func(c *Config) {
		c.RerankHost = host
	}
}

// WithHost sets both embedding and generator hosts to the same URL.
// The rerank host is not touched; rerankers are usually served by a
// separate process.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.GeneratorHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithGeneratorModel sets the generator model identifier.
func WithGeneratorModel(model string) ConfigOption {
	return func(c *Config) {
		c.GeneratorModel = model
	}
}

// WithRerankModel sets the cross-encoder model identifier.
func WithRerankModel(model string) ConfigOption {
	return func(c *Config) {
		c.RerankModel = model
	}
}

// WithRerankTimeout sets the per-call timeout for rerank requests.
func WithRerankTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.RerankTimeout = timeout
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, embedding and generation use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		GeneratorHost:  defaultHost,
		RerankHost:     "http://localhost:7997",
		EmbeddingModel: "embeddinggemma",
		GeneratorModel: "qwen2.5:3b",
		RerankModel:    "bge-reranker-v2-m3",
		RerankTimeout:  30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//   cfg := NewConfig(
//       WithHost("http://localhost:11434/v1"),
//       WithEmbeddingModel("text-embedding-3-small"),
//   )
//
// Example with different hosts:
//   cfg := NewConfig(
//       WithEmbeddingHost("http://localhost:11434/v1"),
//       WithGeneratorHost("http://localhost:9100/v1"),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to the embedding and generator hosts
// if missing, which is required by most OpenAI-compatible APIs (Ollama,
// LocalAI, vLLM, etc). The rerank host is only stripped of a trailing slash;
// the reranker appends its own /rerank path.
func (c *Config) Normalize() {
	// Ensure EmbeddingHost ends with /v1 for OpenAI-compatible APIs
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		// Remove trailing slash if present before adding /v1
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	// Ensure GeneratorHost ends with /v1 for OpenAI-compatible APIs
	if c.GeneratorHost != "" && !strings.HasSuffix(c.GeneratorHost, "/v1") {
		// Remove trailing slash if present before adding /v1
		c.GeneratorHost = strings.TrimSuffix(c.GeneratorHost, "/")
		c.GeneratorHost = c.GeneratorHost + "/v1"
	}
	c.RerankHost = strings.TrimSuffix(c.RerankHost, "/")
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.GeneratorHost == "" {
		return errors.New("ai config: GeneratorHost is required")
	}
	if c.RerankHost == "" {
		return errors.New("ai config: RerankHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.GeneratorModel == "" {
		return errors.New("ai config: GeneratorModel is required")
	}
	if c.RerankModel == "" {
		return errors.New("ai config: RerankModel is required")
	}
	if c.RerankTimeout <= 0 {
		return errors.New("ai config: RerankTimeout must be positive")
	}
	return nil
}
