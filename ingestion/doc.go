// Package ingestion stores pre-chunked documents and makes them searchable.
//
// The Pipeline type manages the ingestion workflow for documents:
//   - Validating input and deriving content-based ids
//   - Persisting the document record and its segments
//   - Feeding the sparse index so lexical search works immediately
//   - Generating embeddings asynchronously on a worker pool
//
// A document is pending until its embeddings are stored, then ready; an
// embedding failure marks it failed but leaves it lexically searchable.
// Errors during async processing are logged but do not fail the ingestion
// operation.
package ingestion
