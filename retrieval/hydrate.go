package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
)

// Hydrator joins candidates with their stored segment content and the
// source of the owning document.
type Hydrator struct {
	segments  storage.SegmentRepository
	documents storage.DocumentRepository
	logger    *slog.Logger
}

// NewHydrator creates a hydrator over the given repositories.
func NewHydrator(segments storage.SegmentRepository, documents storage.DocumentRepository) (*Hydrator, error) {
	if segments == nil {
		return nil, ErrSegmentRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	return &Hydrator{
		segments:  segments,
		documents: documents,
		logger:    slog.Default().With("component", "hydrator"),
	}, nil
}

// Hydrate fetches content for all candidates in one batched lookup and
// re-applies the permission scope against the stored records. Candidates
// whose segment or document is missing, whose document is deleted, or
// whose stored permission tag the filter rejects are dropped with a log
// line. Output preserves input order minus drops.
func (h *Hydrator) Hydrate(ctx context.Context, candidates []core.Candidate, filter core.SegmentFilter) ([]core.HydratedCandidate, error) {
	if len(candidates) == 0 {
		return []core.HydratedCandidate{}, nil
	}

	refs := make([]core.SegmentRef, 0, len(candidates))
	for _, candidate := range candidates {
		refs = append(refs, core.SegmentRef{DocId: candidate.DocId, SegmentId: candidate.SegmentId})
	}

	segments, err := h.segments.GetSegments(ctx, refs...)
	if err != nil {
		return nil, fmt.Errorf("%w: hydrate segments: %w", core.ErrRetrieval, err)
	}
	byKey := make(map[segmentKey]*core.Segment, len(segments))
	for _, segment := range segments {
		byKey[segmentKey{docID: segment.DocId, segmentID: segment.Id}] = segment
	}

	docIDs := make([]core.ID, 0, len(candidates))
	docSeen := make(map[core.ID]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, ok := docSeen[candidate.DocId]; ok {
			continue
		}
		docSeen[candidate.DocId] = struct{}{}
		docIDs = append(docIDs, candidate.DocId)
	}

	documents, err := h.documents.GetDocuments(ctx, docIDs...)
	if err != nil {
		return nil, fmt.Errorf("%w: hydrate documents: %w", core.ErrRetrieval, err)
	}
	docByID := make(map[core.ID]*core.Document, len(documents))
	for _, document := range documents {
		docByID[document.Id] = document
	}

	hydrated := make([]core.HydratedCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		segment, ok := byKey[segmentKey{docID: candidate.DocId, segmentID: candidate.SegmentId}]
		if !ok {
			h.logger.Warn("dropping candidate with missing segment",
				"doc_id", candidate.DocId, "segment_id", candidate.SegmentId)
			continue
		}

		document, ok := docByID[candidate.DocId]
		if !ok {
			h.logger.Warn("dropping candidate with missing document", "doc_id", candidate.DocId)
			continue
		}
		if document.Status == core.DocumentStatusDeleted {
			h.logger.Debug("dropping candidate from deleted document", "doc_id", candidate.DocId)
			continue
		}

		if !filter.Match(segment) {
			h.logger.Debug("dropping candidate outside permission scope",
				"doc_id", candidate.DocId, "segment_id", candidate.SegmentId)
			continue
		}

		hydrated = append(hydrated, core.HydratedCandidate{
			Candidate:      candidate,
			Content:        segment.Content,
			Type:           segment.Type,
			PageIdx:        segment.PageIdx,
			DocumentSource: document.Source,
			UpdatedAt:      segment.UpdatedAt,
		})
	}

	h.logger.Debug("hydration complete",
		"requested", len(candidates), "hydrated", len(hydrated))
	return hydrated, nil
}
