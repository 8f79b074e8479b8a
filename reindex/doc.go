// Package reindex provides functionality for rebuilding derived retrieval
// state from stored segments: reembedding dense vectors with a new or
// updated embedding model, and repopulating the in-memory lexical index.
//
// This package supports batch processing of segments, progress tracking,
// retry logic with exponential backoff, and vector normalization to ensure
// compatibility with inner-product similarity search.
package reindex
