package reindex

import (
	"context"
	"testing"

	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildSparseIndex(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()

	// Two public documents plus one restricted segment
	seedSegments(t, repo, "kb://public-a.md", 2)
	seedSegments(t, repo, "kb://public-b.md", 2)

	restricted := &core.Segment{
		DocId:         core.IDFromContent("kb://hr.md"),
		Content:       "compensation bands for the engineering ladder",
		Type:          core.SegmentTypeText,
		PermissionTag: "hr",
	}
	_, err := repo.AddSegments(ctx, restricted)
	require.NoError(t, err)

	index := retrieval.NewBM25Index()
	indexed, err := RebuildSparseIndex(ctx, repo, index, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, indexed)
	assert.Equal(t, 5, index.Len())

	// Public content is searchable with a public scope
	publicFilter := core.NewSegmentFilter(core.NewPermissionScope(), nil)
	hits := index.Search("segment", 10, publicFilter)
	assert.Len(t, hits, 4)

	// Restricted content keeps its tag through the rebuild
	hits = index.Search("compensation bands", 10, publicFilter)
	assert.Empty(t, hits)

	hrFilter := core.NewSegmentFilter(core.NewPermissionScope("hr"), nil)
	hits = index.Search("compensation bands", 10, hrFilter)
	require.Len(t, hits, 1)
	assert.Equal(t, restricted.Id, hits[0].SegmentId)
}

func TestRebuildSparseIndex_EmptyDatabase(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	index := retrieval.NewBM25Index()
	indexed, err := RebuildSparseIndex(context.Background(), repo, index, 10)
	require.NoError(t, err)
	assert.Zero(t, indexed)
	assert.Zero(t, index.Len())
}

func TestRebuildSparseIndex_ContextCanceled(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	seedSegments(t, repo, "kb://halted.md", 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	index := retrieval.NewBM25Index()
	indexed, err := RebuildSparseIndex(ctx, repo, index, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, indexed)
}
