package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/askit/ai"
	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/retrieval"
	"github.com/poiesic/askit/storage"
)

// SegmentInput is one pre-chunked piece of a document. Chunking and parsing
// happen upstream; the pipeline only validates, identifies and stores.
type SegmentInput struct {
	// Content is the segment text. Its hash becomes the segment id.
	Content string

	// Type defaults to text when zero.
	Type core.SegmentType

	// PageIdx is the zero-based page the content came from.
	PageIdx int

	// ParentContent optionally names the enclosing section by content. It
	// must equal the Content of another segment in the same input.
	ParentContent string
}

// DocumentInput is one document with its segments, ingested as a unit.
// The permission tag applies to the document and every segment in it.
type DocumentInput struct {
	Source        string
	PermissionTag string
	Segments      []SegmentInput
}

// Pipeline ingests documents: it validates input, derives content-based ids,
// persists the document and its segments, feeds the sparse index and embeds
// segment content asynchronously on a worker pool. A document stays pending
// until its embeddings land; lexical search sees it immediately.
type Pipeline struct {
	segments  storage.SegmentRepository
	documents storage.DocumentRepository
	index     *retrieval.BM25Index
	embedder  ai.Embedder
	pool      *ants.Pool
	pending   sync.WaitGroup
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for embedding work.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	segments storage.SegmentRepository,
	documents storage.DocumentRepository,
	index *retrieval.BM25Index,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if segments == nil {
		return nil, ErrSegmentRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if index == nil {
		return nil, ErrSparseIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		segments:  segments,
		documents: documents,
		index:     index,
		embedder:  provider.Embedder(),
		pool:      pool,
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest validates and stores one document with its segments. The document
// id derives from the source, segment ids from their content. On return the
// document is pending and lexically searchable; embeddings are generated
// asynchronously, after which the document transitions to ready, or to
// failed when embedding does not succeed. Async failures are logged, never
// returned.
//
// Re-ingesting an already known source fails with storage.ErrDuplicateKey;
// purge the document first to replace it.
func (p *Pipeline) Ingest(ctx context.Context, input DocumentInput) (*core.Document, error) {
	document := &core.Document{
		Id:            core.IDFromContent(input.Source),
		Source:        input.Source,
		Status:        core.DocumentStatusPending,
		PermissionTag: input.PermissionTag,
	}
	if err := core.ValidateDocument(document); err != nil {
		return nil, err
	}

	segments, err := p.buildSegments(document, input.Segments)
	if err != nil {
		return nil, err
	}

	if _, err := p.documents.AddDocuments(ctx, document); err != nil {
		return nil, fmt.Errorf("ingest %q: %w", input.Source, err)
	}

	if _, err := p.segments.AddSegments(ctx, segments...); err != nil {
		if statusErr := p.documents.UpdateDocumentStatus(ctx, document.Id, core.DocumentStatusFailed); statusErr != nil {
			p.logger.Error("error marking document failed", "doc", document.Id, "err", statusErr)
		}
		return nil, fmt.Errorf("store segments for %q: %w", input.Source, err)
	}

	// Lexical search needs no vectors, so the index is fed up front.
	for _, segment := range segments {
		p.index.Add(segment.DocId, segment.Id, segment.PermissionTag, segment.Content)
	}

	p.pending.Add(1)
	submitErr := p.pool.Submit(func() {
		defer p.pending.Done()
		p.embedSegments(document.Id, segments)
	})
	if submitErr != nil {
		p.pending.Done()
		p.logger.Error("error submitting embedding work", "doc", document.Id, "err", submitErr)
	}

	p.logger.Info("document ingested",
		"doc", document.Id, "source", document.Source, "segments", len(segments))
	return document, nil
}

// buildSegments turns inputs into validated segment records with derived ids
// and resolved parent references.
func (p *Pipeline) buildSegments(document *core.Document, inputs []SegmentInput) ([]*core.Segment, error) {
	if len(inputs) == 0 {
		return nil, ErrNoSegments
	}

	ids := make(map[core.ID]bool, len(inputs))
	for _, input := range inputs {
		ids[core.IDFromContent(input.Content)] = true
	}

	segments := make([]*core.Segment, len(inputs))
	for i, input := range inputs {
		segmentType := input.Type
		if segmentType == 0 {
			segmentType = core.SegmentTypeText
		}

		segment := &core.Segment{
			Id:            core.IDFromContent(input.Content),
			DocId:         document.Id,
			Content:       input.Content,
			Type:          segmentType,
			PageIdx:       input.PageIdx,
			PermissionTag: document.PermissionTag,
		}

		if input.ParentContent != "" {
			parentID := core.IDFromContent(input.ParentContent)
			if parentID == segment.Id {
				return nil, fmt.Errorf("segment %d: %w", i, ErrSelfParent)
			}
			if !ids[parentID] {
				return nil, fmt.Errorf("segment %d: %w", i, ErrUnknownParent)
			}
			segment.ParentId = parentID
		}

		if err := core.ValidateSegment(segment); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		segments[i] = segment
	}

	return segments, nil
}

// Wait blocks until all in-flight embedding work has finished.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}

// Release releases the worker pool. In-flight embedding work is not awaited;
// call Wait first for a clean shutdown. The pipeline should not be used
// after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
