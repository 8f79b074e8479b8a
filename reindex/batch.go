package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/askit/ai"
	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
)

// BatchProcessor handles embedding generation for batches of segments.
type BatchProcessor struct {
	repo           storage.SegmentRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	dim            int
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.SegmentRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of segments and updates them in
// the database. Vectors are normalized after embedding so inner-product
// search behaves as cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, segments []*core.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	// Extract text content
	texts := make([]string, len(segments))
	for i, segment := range segments {
		texts[i] = segment.Content
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(segments) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(segments), len(embeddings))
	}

	// Every vector in a run must share a dimension for inner-product
	// comparison to be meaningful.
	for i := range segments {
		if bp.dim == 0 {
			bp.dim = len(embeddings[i])
		} else if len(embeddings[i]) != bp.dim {
			return fmt.Errorf("embedding dimension changed: expected %d, got %d", bp.dim, len(embeddings[i]))
		}
		segments[i].Vector = core.NormalizeVector(embeddings[i])
	}

	// Update segments in database
	if _, err := bp.repo.UpdateSegments(ctx, segments...); err != nil {
		return fmt.Errorf("failed to update segments: %w", err)
	}

	return nil
}
