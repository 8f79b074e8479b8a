package retrieval

import (
	"log/slog"
	"slices"

	"github.com/poiesic/askit/core"
)

// AdaptiveRanker turns reranked candidates into the final context set.
// It drops candidates scoring below a relevance threshold, then truncates
// at the steepest score drop (the cliff) instead of always taking a fixed
// top k. Cross-encoder scores are raw logits, so the threshold is signed
// and typically negative.
type AdaptiveRanker struct {
	threshold float64
	topK      int
	logger    *slog.Logger
}

// NewAdaptiveRanker creates a ranker. topK caps the result size after
// cliff detection and must be positive; threshold may be any float.
func NewAdaptiveRanker(threshold float64, topK int) (*AdaptiveRanker, error) {
	if topK < 1 {
		return nil, ErrInvalidTopK
	}

	return &AdaptiveRanker{
		threshold: threshold,
		topK:      topK,
		logger:    slog.Default().With("component", "adaptive-ranker"),
	}, nil
}

// Rank sorts candidates by descending rerank score and truncates them in
// two stages. Stage one removes every candidate scoring below the
// threshold; an empty survivor set stays empty. Stage two finds the
// largest drop between adjacent scores s1 >= ... >= sn and keeps
// everything above it, capped at topK. With one or zero survivors there
// is no delta pass and min(n, topK) are kept. Ties between equally steep
// drops resolve to the earliest one.
func (r *AdaptiveRanker) Rank(candidates []core.RankedCandidate) []core.RankedCandidate {
	survivors := make([]core.RankedCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.RerankScore < r.threshold {
			continue
		}
		survivors = append(survivors, candidate)
	}
	if len(survivors) == 0 {
		r.logger.Debug("no candidates above threshold",
			"threshold", r.threshold, "input", len(candidates))
		return survivors
	}

	// Stable sort keeps hydration order for equal scores.
	slices.SortStableFunc(survivors, func(a, b core.RankedCandidate) int {
		switch {
		case a.RerankScore > b.RerankScore:
			return -1
		case a.RerankScore < b.RerankScore:
			return 1
		default:
			return 0
		}
	})

	keep := len(survivors)
	if len(survivors) > 1 {
		// The cliff sits after the most negative adjacent delta.
		cliff := 1
		minDelta := survivors[1].RerankScore - survivors[0].RerankScore
		for i := 1; i < len(survivors)-1; i++ {
			delta := survivors[i+1].RerankScore - survivors[i].RerankScore
			if delta < minDelta {
				minDelta = delta
				cliff = i + 1
			}
		}
		keep = cliff
	}
	if keep > r.topK {
		keep = r.topK
	}

	r.logger.Debug("adaptive truncation complete",
		"input", len(candidates), "survivors", len(survivors), "kept", keep)
	return survivors[:keep]
}
