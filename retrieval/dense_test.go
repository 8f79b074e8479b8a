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

func newDenseFixture(t *testing.T) (storage.SegmentRepository, *DenseRetriever) {
	t.Helper()

	segments, documents, sessions, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		sessions.Close()
		documents.Close()
		segments.Close()
		backend.Close()
	})

	retriever, err := NewDenseRetriever(segments)
	require.NoError(t, err)
	return segments, retriever
}

func TestNewDenseRetriever(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		_, retriever := newDenseFixture(t)
		assert.NotNil(t, retriever)
	})

	t.Run("nil repository", func(t *testing.T) {
		_, err := NewDenseRetriever(nil)
		assert.Equal(t, ErrSegmentRepositoryRequired, err)
	})
}

func TestDenseRetrieverRetrieve(t *testing.T) {
	segments, retriever := newDenseFixture(t)
	ctx := context.Background()

	_, err := segments.AddSegments(ctx,
		&core.Segment{DocId: "doc-a", Content: "container orchestration basics", Type: core.SegmentTypeText, Vector: []float32{1, 0, 0}},
		&core.Segment{DocId: "doc-a", Content: "storage volume management", Type: core.SegmentTypeText, Vector: []float32{0.5, 0.5, 0}},
		&core.Segment{DocId: "doc-b", Content: "monitoring and alerting", Type: core.SegmentTypeText, Vector: []float32{0, 0, 1}},
	)
	require.NoError(t, err)

	candidates, err := retriever.Retrieve(ctx, []float32{1, 0, 0}, 2, unrestrictedFilter())
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, 1.0, candidates[0].Score)
	assert.Equal(t, 0.5, candidates[1].Score)
	for _, candidate := range candidates {
		assert.Equal(t, core.SourceDense, candidate.Source)
	}
}

func TestDenseRetrieverParentPromotion(t *testing.T) {
	segments, retriever := newDenseFixture(t)
	ctx := context.Background()

	// The parent carries no vector, so it can only appear by promotion.
	parents, err := segments.AddSegments(ctx,
		&core.Segment{DocId: "doc-a", Content: "chapter overview of networking", Type: core.SegmentTypeText})
	require.NoError(t, err)
	parentID := parents[0].Id

	_, err = segments.AddSegments(ctx,
		&core.Segment{DocId: "doc-a", ParentId: parentID, Content: "load balancer configuration", Type: core.SegmentTypeText, Vector: []float32{1, 0, 0}},
		&core.Segment{DocId: "doc-b", Content: "unrelated appendix", Type: core.SegmentTypeText, Vector: []float32{0.2, 0, 0}},
	)
	require.NoError(t, err)

	candidates, err := retriever.Retrieve(ctx, []float32{1, 0, 0}, 5, unrestrictedFilter())
	require.NoError(t, err)

	// Hits first, promotions after.
	require.Len(t, candidates, 3)
	assert.Equal(t, core.SourceDense, candidates[0].Source)
	assert.Equal(t, core.SourceDense, candidates[1].Source)

	promoted := candidates[2]
	assert.Equal(t, core.SourceParentPromoted, promoted.Source)
	assert.Equal(t, parentID, promoted.SegmentId)
	assert.Equal(t, core.ID("doc-a"), promoted.DocId)
	assert.InDelta(t, 1.0*parentScoreFactor, promoted.Score, 1e-9)
}

func TestDenseRetrieverPromotionIdempotent(t *testing.T) {
	segments, retriever := newDenseFixture(t)
	ctx := context.Background()

	// Parent is itself a direct hit.
	parents, err := segments.AddSegments(ctx,
		&core.Segment{DocId: "doc-a", Content: "section on index maintenance", Type: core.SegmentTypeText, Vector: []float32{0.9, 0, 0}})
	require.NoError(t, err)
	parentID := parents[0].Id

	_, err = segments.AddSegments(ctx,
		&core.Segment{DocId: "doc-a", ParentId: parentID, Content: "vacuum scheduling details", Type: core.SegmentTypeText, Vector: []float32{1, 0, 0}})
	require.NoError(t, err)

	candidates, err := retriever.Retrieve(ctx, []float32{1, 0, 0}, 5, unrestrictedFilter())
	require.NoError(t, err)

	// No promoted duplicate of the parent.
	require.Len(t, candidates, 2)
	occurrences := 0
	for _, candidate := range candidates {
		if candidate.SegmentId == parentID {
			occurrences++
			assert.Equal(t, core.SourceDense, candidate.Source)
		}
	}
	assert.Equal(t, 1, occurrences)
}

func TestDenseRetrieverSharedParentPromotedOnce(t *testing.T) {
	segments, retriever := newDenseFixture(t)
	ctx := context.Background()

	parents, err := segments.AddSegments(ctx,
		&core.Segment{DocId: "doc-a", Content: "shared parent section", Type: core.SegmentTypeText})
	require.NoError(t, err)
	parentID := parents[0].Id

	_, err = segments.AddSegments(ctx,
		&core.Segment{DocId: "doc-a", ParentId: parentID, Content: "first child paragraph", Type: core.SegmentTypeText, Vector: []float32{1, 0, 0}},
		&core.Segment{DocId: "doc-a", ParentId: parentID, Content: "second child paragraph", Type: core.SegmentTypeText, Vector: []float32{0.5, 0, 0}},
	)
	require.NoError(t, err)

	candidates, err := retriever.Retrieve(ctx, []float32{1, 0, 0}, 5, unrestrictedFilter())
	require.NoError(t, err)

	// Two hits plus a single promotion carrying the stronger child's
	// discounted score.
	require.Len(t, candidates, 3)
	promoted := candidates[2]
	assert.Equal(t, core.SourceParentPromoted, promoted.Source)
	assert.Equal(t, parentID, promoted.SegmentId)
	assert.InDelta(t, 1.0*parentScoreFactor, promoted.Score, 1e-9)
}

func TestDenseRetrieverPermissionFilter(t *testing.T) {
	segments, retriever := newDenseFixture(t)
	ctx := context.Background()

	_, err := segments.AddSegments(ctx,
		&core.Segment{DocId: "doc-pub", Content: "public handbook entry", Type: core.SegmentTypeText, Vector: []float32{1, 0, 0}},
		&core.Segment{DocId: "doc-hr", Content: "restricted payroll entry", Type: core.SegmentTypeText, PermissionTag: "hr", Vector: []float32{1, 0, 0}},
	)
	require.NoError(t, err)

	t.Run("unrestricted scope sees public only", func(t *testing.T) {
		candidates, err := retriever.Retrieve(ctx, []float32{1, 0, 0}, 5, unrestrictedFilter())
		require.NoError(t, err)

		require.Len(t, candidates, 1)
		assert.Equal(t, core.ID("doc-pub"), candidates[0].DocId)
	})

	t.Run("token scope sees both", func(t *testing.T) {
		filter := core.NewSegmentFilter(core.NewPermissionScope("hr"), nil)
		candidates, err := retriever.Retrieve(ctx, []float32{1, 0, 0}, 5, filter)
		require.NoError(t, err)

		assert.Len(t, candidates, 2)
	})
}
