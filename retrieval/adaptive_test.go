package retrieval

import (
	"fmt"
	"testing"

	"github.com/poiesic/askit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ranked builds candidates carrying the given rerank scores, with ids
// derived from position so assertions can track which survived.
func ranked(scores ...float64) []core.RankedCandidate {
	candidates := make([]core.RankedCandidate, 0, len(scores))
	for i, score := range scores {
		candidates = append(candidates, core.RankedCandidate{
			HydratedCandidate: core.HydratedCandidate{
				Candidate: core.Candidate{
					DocId:     "doc",
					SegmentId: core.ID(fmt.Sprintf("seg-%d", i)),
					Source:    core.SourceDense,
				},
			},
			RerankScore: score,
		})
	}
	return candidates
}

func rerankScores(candidates []core.RankedCandidate) []float64 {
	scores := make([]float64, 0, len(candidates))
	for _, candidate := range candidates {
		scores = append(scores, candidate.RerankScore)
	}
	return scores
}

func TestNewAdaptiveRanker(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ranker, err := NewAdaptiveRanker(-5.0, 5)
		require.NoError(t, err)
		assert.NotNil(t, ranker)
	})

	t.Run("zero top k", func(t *testing.T) {
		_, err := NewAdaptiveRanker(-5.0, 0)
		assert.Equal(t, ErrInvalidTopK, err)
	})

	t.Run("negative top k", func(t *testing.T) {
		_, err := NewAdaptiveRanker(-5.0, -3)
		assert.Equal(t, ErrInvalidTopK, err)
	})
}

func TestAdaptiveRankerCliffDetection(t *testing.T) {
	ranker, err := NewAdaptiveRanker(-5.0, 10)
	require.NoError(t, err)

	// The steepest drop sits between 0.83 and 0.50, so exactly the
	// first three results survive.
	kept := ranker.Rank(ranked(0.90, 0.85, 0.83, 0.50, 0.48, 0.20))

	assert.Equal(t, []float64{0.90, 0.85, 0.83}, rerankScores(kept))
}

func TestAdaptiveRankerTopKBound(t *testing.T) {
	ranker, err := NewAdaptiveRanker(-5.0, 2)
	require.NoError(t, err)

	kept := ranker.Rank(ranked(0.90, 0.85, 0.83, 0.50, 0.48, 0.20))

	// Cliff detection keeps three, the cap trims to two.
	assert.Equal(t, []float64{0.90, 0.85}, rerankScores(kept))
}

func TestAdaptiveRankerSmallInputs(t *testing.T) {
	ranker, err := NewAdaptiveRanker(-5.0, 5)
	require.NoError(t, err)

	t.Run("empty stays empty", func(t *testing.T) {
		kept := ranker.Rank(ranked())
		assert.Empty(t, kept)
	})

	t.Run("single survivor kept without delta pass", func(t *testing.T) {
		kept := ranker.Rank(ranked(0.42))
		assert.Equal(t, []float64{0.42}, rerankScores(kept))
	})

	t.Run("two survivors keep the cliff winner", func(t *testing.T) {
		// One delta, so the cliff is after the first entry.
		kept := ranker.Rank(ranked(0.9, 0.1))
		assert.Equal(t, []float64{0.9}, rerankScores(kept))
	})
}

func TestAdaptiveRankerThreshold(t *testing.T) {
	t.Run("threshold runs before cliff detection", func(t *testing.T) {
		ranker, err := NewAdaptiveRanker(0.45, 10)
		require.NoError(t, err)

		// 0.20 falls to the threshold first; the delta pass then sees
		// [0.90 0.85 0.83 0.50 0.48] and cuts after 0.83.
		kept := ranker.Rank(ranked(0.90, 0.85, 0.83, 0.50, 0.48, 0.20))
		assert.Equal(t, []float64{0.90, 0.85, 0.83}, rerankScores(kept))
	})

	t.Run("all below threshold yields empty", func(t *testing.T) {
		ranker, err := NewAdaptiveRanker(0.0, 10)
		require.NoError(t, err)

		kept := ranker.Rank(ranked(-3.4, -4.1, -9.9))
		assert.Empty(t, kept)
	})

	t.Run("score equal to threshold survives", func(t *testing.T) {
		ranker, err := NewAdaptiveRanker(-5.0, 10)
		require.NoError(t, err)

		kept := ranker.Rank(ranked(-5.0))
		assert.Equal(t, []float64{-5.0}, rerankScores(kept))
	})

	t.Run("negative logits pass a negative threshold", func(t *testing.T) {
		ranker, err := NewAdaptiveRanker(-5.0, 10)
		require.NoError(t, err)

		kept := ranker.Rank(ranked(-1.0, -2.0, -9.5))
		assert.Equal(t, []float64{-1.0, -2.0}, rerankScores(kept))
	})
}

func TestAdaptiveRankerTiesPickEarliestCliff(t *testing.T) {
	ranker, err := NewAdaptiveRanker(-5.0, 10)
	require.NoError(t, err)

	// Deltas are [-0.5 -0.2 -0.5]; the tie between the first and last
	// resolves to the first, keeping a single result.
	kept := ranker.Rank(ranked(1.0, 0.5, 0.3, -0.2))

	assert.Equal(t, []float64{1.0}, rerankScores(kept))
}

func TestAdaptiveRankerSortsDescending(t *testing.T) {
	ranker, err := NewAdaptiveRanker(-5.0, 10)
	require.NoError(t, err)

	kept := ranker.Rank(ranked(0.50, 0.90, 0.48, 0.85, 0.20, 0.83))

	assert.Equal(t, []float64{0.90, 0.85, 0.83}, rerankScores(kept))
}

func TestAdaptiveRankerStableForEqualScores(t *testing.T) {
	ranker, err := NewAdaptiveRanker(-5.0, 10)
	require.NoError(t, err)

	kept := ranker.Rank(ranked(0.7, 0.7, 0.7))

	// Equal scores mean no cliff preference; input order survives.
	require.Len(t, kept, 1)
	assert.Equal(t, core.ID("seg-0"), kept[0].SegmentId)
}
