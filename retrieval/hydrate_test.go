package retrieval

import (
	"context"
	"testing"

	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
	"github.com/poiesic/askit/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hydrateFixture struct {
	segments  storage.SegmentRepository
	documents storage.DocumentRepository
	hydrator  *Hydrator
}

func newHydrateFixture(t *testing.T) *hydrateFixture {
	t.Helper()

	segments, documents, sessions, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		sessions.Close()
		documents.Close()
		segments.Close()
		backend.Close()
	})

	hydrator, err := NewHydrator(segments, documents)
	require.NoError(t, err)
	return &hydrateFixture{segments: segments, documents: documents, hydrator: hydrator}
}

// seed stores a document and one segment, returning the segment id.
func (f *hydrateFixture) seed(t *testing.T, docID core.ID, source, content, tag string) core.ID {
	t.Helper()
	ctx := context.Background()

	_, err := f.documents.AddDocuments(ctx, &core.Document{
		Id:            docID,
		Source:        source,
		Status:        core.DocumentStatusReady,
		PermissionTag: tag,
	})
	require.NoError(t, err)

	stored, err := f.segments.AddSegments(ctx, &core.Segment{
		DocId:         docID,
		Content:       content,
		Type:          core.SegmentTypeText,
		PermissionTag: tag,
	})
	require.NoError(t, err)
	return stored[0].Id
}

func TestNewHydrator(t *testing.T) {
	fixture := newHydrateFixture(t)

	t.Run("valid", func(t *testing.T) {
		assert.NotNil(t, fixture.hydrator)
	})

	t.Run("nil segment repository", func(t *testing.T) {
		_, err := NewHydrator(nil, fixture.documents)
		assert.Equal(t, ErrSegmentRepositoryRequired, err)
	})

	t.Run("nil document repository", func(t *testing.T) {
		_, err := NewHydrator(fixture.segments, nil)
		assert.Equal(t, ErrDocumentRepositoryRequired, err)
	})
}

func TestHydratorHydrate(t *testing.T) {
	fixture := newHydrateFixture(t)
	ctx := context.Background()

	firstID := fixture.seed(t, "doc-1", "https://docs.example.com/guide.pdf", "first passage of the guide", "")
	secondID := fixture.seed(t, "doc-2", "https://docs.example.com/faq.md", "second passage of the faq", "")

	candidates := []core.Candidate{
		{DocId: "doc-2", SegmentId: secondID, Score: 0.8, Source: core.SourceDense},
		{DocId: "doc-1", SegmentId: firstID, Score: 0.6, Source: core.SourceSparse},
	}

	hydrated, err := fixture.hydrator.Hydrate(ctx, candidates, unrestrictedFilter())
	require.NoError(t, err)

	require.Len(t, hydrated, 2)
	// Input order survives.
	assert.Equal(t, secondID, hydrated[0].SegmentId)
	assert.Equal(t, "second passage of the faq", hydrated[0].Content)
	assert.Equal(t, "https://docs.example.com/faq.md", hydrated[0].DocumentSource)
	assert.Equal(t, core.SegmentTypeText, hydrated[0].Type)
	assert.False(t, hydrated[0].UpdatedAt.IsZero())

	assert.Equal(t, firstID, hydrated[1].SegmentId)
	assert.Equal(t, "https://docs.example.com/guide.pdf", hydrated[1].DocumentSource)
	// The candidate's retrieval score and source pass through.
	assert.Equal(t, 0.6, hydrated[1].Score)
	assert.Equal(t, core.SourceSparse, hydrated[1].Source)
}

func TestHydratorDropsMissingSegment(t *testing.T) {
	fixture := newHydrateFixture(t)
	ctx := context.Background()

	segID := fixture.seed(t, "doc-1", "src", "known passage", "")

	candidates := []core.Candidate{
		{DocId: "doc-1", SegmentId: "0000000000000000000000000000000000000000000000000000000000000000", Score: 0.9, Source: core.SourceDense},
		{DocId: "doc-1", SegmentId: segID, Score: 0.5, Source: core.SourceDense},
	}

	hydrated, err := fixture.hydrator.Hydrate(ctx, candidates, unrestrictedFilter())
	require.NoError(t, err)

	require.Len(t, hydrated, 1)
	assert.Equal(t, segID, hydrated[0].SegmentId)
}

func TestHydratorDropsMissingDocument(t *testing.T) {
	fixture := newHydrateFixture(t)
	ctx := context.Background()

	// Segment stored without its document record.
	stored, err := fixture.segments.AddSegments(ctx, &core.Segment{
		DocId:   "orphan",
		Content: "segment without a document",
		Type:    core.SegmentTypeText,
	})
	require.NoError(t, err)

	hydrated, err := fixture.hydrator.Hydrate(ctx, []core.Candidate{
		{DocId: "orphan", SegmentId: stored[0].Id, Score: 0.9, Source: core.SourceDense},
	}, unrestrictedFilter())
	require.NoError(t, err)

	assert.Empty(t, hydrated)
}

func TestHydratorDropsDeletedDocument(t *testing.T) {
	fixture := newHydrateFixture(t)
	ctx := context.Background()

	segID := fixture.seed(t, "doc-1", "src", "soon to be deleted", "")
	require.NoError(t, fixture.documents.DeleteDocument(ctx, "doc-1"))

	hydrated, err := fixture.hydrator.Hydrate(ctx, []core.Candidate{
		{DocId: "doc-1", SegmentId: segID, Score: 0.9, Source: core.SourceDense},
	}, unrestrictedFilter())
	require.NoError(t, err)

	assert.Empty(t, hydrated)
}

func TestHydratorPermissionRecheck(t *testing.T) {
	fixture := newHydrateFixture(t)
	ctx := context.Background()

	taggedID := fixture.seed(t, "doc-hr", "src", "restricted content", "hr")

	candidates := []core.Candidate{
		{DocId: "doc-hr", SegmentId: taggedID, Score: 0.9, Source: core.SourceDense},
	}

	t.Run("scope without the tag drops the candidate", func(t *testing.T) {
		hydrated, err := fixture.hydrator.Hydrate(ctx, candidates, unrestrictedFilter())
		require.NoError(t, err)
		assert.Empty(t, hydrated)
	})

	t.Run("scope with the tag hydrates it", func(t *testing.T) {
		filter := core.NewSegmentFilter(core.NewPermissionScope("hr"), nil)
		hydrated, err := fixture.hydrator.Hydrate(ctx, candidates, filter)
		require.NoError(t, err)
		assert.Len(t, hydrated, 1)
	})
}

func TestHydratorEmptyInput(t *testing.T) {
	fixture := newHydrateFixture(t)

	hydrated, err := fixture.hydrator.Hydrate(context.Background(), nil, unrestrictedFilter())
	require.NoError(t, err)
	assert.Empty(t, hydrated)
}
