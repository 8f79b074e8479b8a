package ingestion

import (
	"context"

	"github.com/poiesic/askit/core"
)

// embedSegments generates embeddings for a document's segments, stores the
// normalized vectors and flips the document to ready. Any failure marks the
// document failed and is logged; the segments stay lexically searchable.
// Runs on the worker pool with a background context so that the originating
// request's cancellation cannot strand a half-embedded document.
func (p *Pipeline) embedSegments(docID core.ID, segments []*core.Segment) {
	ctx := context.Background()
	logger := p.logger.With("doc", docID)

	texts := make([]string, len(segments))
	for i, segment := range segments {
		texts[i] = segment.Content
	}

	logger.Debug("generating embeddings", "segments", len(texts))
	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		logger.Error("error generating embeddings", "err", err)
		p.markFailed(ctx, docID)
		return
	}
	if len(embeddings) != len(segments) {
		logger.Error("embedding result mismatch",
			"expected", len(segments), "received", len(embeddings))
		p.markFailed(ctx, docID)
		return
	}

	for i := range embeddings {
		segments[i].Vector = core.NormalizeVector(embeddings[i])
	}

	if _, err := p.segments.UpdateSegments(ctx, segments...); err != nil {
		logger.Error("error storing embeddings", "err", err)
		p.markFailed(ctx, docID)
		return
	}

	if err := p.documents.UpdateDocumentStatus(ctx, docID, core.DocumentStatusReady); err != nil {
		logger.Error("error marking document ready", "err", err)
		return
	}

	logger.Info("document ready", "segments", len(segments))
}

func (p *Pipeline) markFailed(ctx context.Context, docID core.ID) {
	if err := p.documents.UpdateDocumentStatus(ctx, docID, core.DocumentStatusFailed); err != nil {
		p.logger.Error("error marking document failed", "doc", docID, "err", err)
	}
}
