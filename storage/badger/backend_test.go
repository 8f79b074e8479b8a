package badger

import (
	"context"
	"testing"

	"github.com/poiesic/askit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.False(t, backend.IsClosed())

	err = backend.Close()
	require.NoError(t, err)

	assert.True(t, backend.IsClosed())
}

func TestFindSimilarSegments_NoSegments(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	vector := []float32{0.1, 0.2, 0.3}

	results, err := backend.FindSimilarSegments(ctx, vector, 10, core.NewSegmentFilter(core.UnrestrictedScope(), nil))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilarSegments_WithSegments(t *testing.T) {
	segmentRepo, documentRepo, sessionRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		sessionRepo.Close()
		documentRepo.Close()
		segmentRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	docID := core.IDFromContent("doc")

	segments := []*core.Segment{
		{
			DocId:   docID,
			Content: "First segment",
			Type:    core.SegmentTypeText,
			Vector:  []float32{1.0, 0.0, 0.0}, // Very similar to query
		},
		{
			DocId:   docID,
			Content: "Second segment",
			Type:    core.SegmentTypeText,
			Vector:  []float32{0.9, 0.1, 0.0}, // Somewhat similar
		},
		{
			DocId:   docID,
			Content: "Third segment",
			Type:    core.SegmentTypeText,
			Vector:  []float32{0.0, 0.0, 1.0}, // Not similar
		},
		{
			DocId:   docID,
			Content: "Fourth segment without vector",
			Type:    core.SegmentTypeText,
			Vector:  nil, // No vector - should be skipped
		},
	}

	added, err := segmentRepo.AddSegments(ctx, segments...)
	require.NoError(t, err)
	require.Len(t, added, 4)

	queryVector := []float32{1.0, 0.0, 0.0}
	results, err := backend.FindSimilarSegments(ctx, queryVector, 10, core.NewSegmentFilter(core.UnrestrictedScope(), nil))
	require.NoError(t, err)

	// The vectorless segment is skipped
	require.Len(t, results, 3)

	// Results should be sorted by score descending
	for i := 0; i < len(results)-1; i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
	}

	// First result should be the most similar
	assert.Equal(t, "First segment", results[0].Segment.Content)
	assert.Greater(t, results[0].Score, 0.9)
}

func TestFindSimilarSegments_PermissionFilter(t *testing.T) {
	segmentRepo, documentRepo, sessionRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		sessionRepo.Close()
		documentRepo.Close()
		segmentRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	docA := core.IDFromContent("doc-a")
	docB := core.IDFromContent("doc-b")

	segments := []*core.Segment{
		{
			DocId:   docA,
			Content: "Public segment in doc A",
			Type:    core.SegmentTypeText,
			Vector:  []float32{1.0, 0.0},
		},
		{
			DocId:         docA,
			Content:       "HR segment in doc A",
			Type:          core.SegmentTypeText,
			PermissionTag: "hr",
			Vector:        []float32{1.0, 0.0},
		},
		{
			DocId:   docB,
			Content: "Public segment in doc B",
			Type:    core.SegmentTypeText,
			Vector:  []float32{1.0, 0.0},
		},
	}

	_, err = segmentRepo.AddSegments(ctx, segments...)
	require.NoError(t, err)

	queryVector := []float32{1.0, 0.0}

	t.Run("scope without tokens sees public only", func(t *testing.T) {
		filter := core.NewSegmentFilter(core.NewPermissionScope(), []core.ID{docA, docB})
		results, err := backend.FindSimilarSegments(ctx, queryVector, 10, filter)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.Empty(t, r.Segment.PermissionTag)
		}
	})

	t.Run("scope with token sees tagged segment", func(t *testing.T) {
		filter := core.NewSegmentFilter(core.NewPermissionScope("hr"), []core.ID{docA})
		results, err := backend.FindSimilarSegments(ctx, queryVector, 10, filter)
		require.NoError(t, err)
		require.Len(t, results, 2)
	})

	t.Run("document allow-list excludes other docs", func(t *testing.T) {
		filter := core.NewSegmentFilter(core.NewPermissionScope(), []core.ID{docB})
		results, err := backend.FindSimilarSegments(ctx, queryVector, 10, filter)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, docB, results[0].Segment.DocId)
	})

	t.Run("empty allow-list matches nothing", func(t *testing.T) {
		filter := core.NewSegmentFilter(core.NewPermissionScope(), []core.ID{})
		results, err := backend.FindSimilarSegments(ctx, queryVector, 10, filter)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestFindSimilarSegments_LimitResults(t *testing.T) {
	segmentRepo, documentRepo, sessionRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		sessionRepo.Close()
		documentRepo.Close()
		segmentRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	docID := core.IDFromContent("doc")

	segments := make([]*core.Segment, 10)
	for i := 0; i < 10; i++ {
		segments[i] = &core.Segment{
			DocId:   docID,
			Content: "Segment number " + string(rune('a'+i)),
			Type:    core.SegmentTypeText,
			Vector:  []float32{0.9, 0.1},
		}
	}

	_, err = segmentRepo.AddSegments(ctx, segments...)
	require.NoError(t, err)

	queryVector := []float32{1.0, 0.0}
	filter := core.NewSegmentFilter(core.UnrestrictedScope(), nil)

	t.Run("limit to 3", func(t *testing.T) {
		results, err := backend.FindSimilarSegments(ctx, queryVector, 3, filter)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("limit higher than results", func(t *testing.T) {
		results, err := backend.FindSimilarSegments(ctx, queryVector, 100, filter)
		require.NoError(t, err)
		assert.Len(t, results, 10)
	})
}

func TestFindSimilarSegments_DeterministicTies(t *testing.T) {
	segmentRepo, documentRepo, sessionRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		sessionRepo.Close()
		documentRepo.Close()
		segmentRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	docID := core.IDFromContent("doc")

	// Identical vectors produce identical scores
	for _, content := range []string{"alpha", "bravo", "charlie", "delta"} {
		_, err := segmentRepo.AddSegments(ctx, &core.Segment{
			DocId:   docID,
			Content: content,
			Type:    core.SegmentTypeText,
			Vector:  []float32{0.5, 0.5},
		})
		require.NoError(t, err)
	}

	filter := core.NewSegmentFilter(core.UnrestrictedScope(), nil)
	first, err := backend.FindSimilarSegments(ctx, []float32{1.0, 0.0}, 10, filter)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := backend.FindSimilarSegments(ctx, []float32{1.0, 0.0}, 10, filter)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for j := range again {
			assert.Equal(t, first[j].Segment.Id, again[j].Segment.Id)
		}
	}
}

func TestDotProduct(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{1.0, 0.0, 0.0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 1.0, 0.0},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{-1.0, 0.0, 0.0},
			expected: -1.0,
		},
		{
			name:     "general case",
			a:        []float32{0.6, 0.8},
			b:        []float32{0.8, 0.6},
			expected: 0.96, // 0.6*0.8 + 0.8*0.6 = 0.48 + 0.48 = 0.96
		},
		{
			name:     "different lengths - use min",
			a:        []float32{1.0, 2.0, 3.0},
			b:        []float32{1.0, 2.0},
			expected: 5.0, // 1*1 + 2*2 = 5
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := dotProduct(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 0.0001)
		})
	}
}

func TestWithTransaction(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	t.Run("successful transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed transaction", func(t *testing.T) {
		testErr := assert.AnError
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return testErr
		})
		assert.Equal(t, testErr, err)
	})
}

func TestGetSequence(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.GetSequence("test_sequence")
	require.NoError(t, err)
	require.NotNil(t, seq)
	defer seq.Release()

	id1, err := seq.Next()
	require.NoError(t, err)

	id2, err := seq.Next()
	require.NoError(t, err)

	// IDs should be sequential
	assert.Greater(t, id2, id1)
}
