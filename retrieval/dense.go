package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
)

// parentScoreFactor discounts a promoted parent relative to the child hit
// that surfaced it.
const parentScoreFactor = 0.1

// DenseRetriever produces semantic candidates by inner-product search over
// stored segment vectors, then promotes parent segments of the hits.
type DenseRetriever struct {
	segments storage.SegmentRepository
	logger   *slog.Logger
}

// NewDenseRetriever creates a retriever over the given segment repository.
func NewDenseRetriever(segments storage.SegmentRepository) (*DenseRetriever, error) {
	if segments == nil {
		return nil, ErrSegmentRepositoryRequired
	}

	return &DenseRetriever{
		segments: segments,
		logger:   slog.Default().With("component", "dense-retriever"),
	}, nil
}

// Retrieve returns up to k dense hits for the query vector within the
// permission filter, followed by promoted parents. Output order is hits
// first in descending score order, then promotions in hit order. A parent
// that is itself a hit, or was already promoted, is not added again, so
// the operation is idempotent over its input.
func (r *DenseRetriever) Retrieve(ctx context.Context, vector []float32, k int, filter core.SegmentFilter) ([]core.Candidate, error) {
	hits, err := r.segments.FindSimilar(ctx, vector, k, filter)
	if err != nil {
		r.logger.Error("dense search failed", "err", err)
		return nil, fmt.Errorf("%w: dense search: %w", core.ErrRetrieval, err)
	}

	seen := make(map[segmentKey]struct{}, len(hits))
	candidates := make([]core.Candidate, 0, len(hits))
	for _, hit := range hits {
		seen[segmentKey{docID: hit.Segment.DocId, segmentID: hit.Segment.Id}] = struct{}{}
		candidates = append(candidates, core.Candidate{
			DocId:     hit.Segment.DocId,
			SegmentId: hit.Segment.Id,
			Score:     hit.Score,
			Source:    core.SourceDense,
		})
	}

	// Promotions append after every direct hit. The first child of a
	// shared parent wins; it carries the highest score because hits
	// arrive sorted descending.
	promoted := 0
	for _, hit := range hits {
		parent := hit.Segment.ParentId
		if parent == "" {
			continue
		}
		key := segmentKey{docID: hit.Segment.DocId, segmentID: parent}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, core.Candidate{
			DocId:     hit.Segment.DocId,
			SegmentId: parent,
			Score:     hit.Score * parentScoreFactor,
			Source:    core.SourceParentPromoted,
		})
		promoted++
	}

	r.logger.Debug("dense retrieval complete", "hits", len(hits), "promoted", promoted)
	return candidates, nil
}
