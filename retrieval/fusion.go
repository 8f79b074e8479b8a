package retrieval

import "github.com/poiesic/askit/core"

// FuseCandidates merges candidate lists in the order given, dropping
// duplicates by (doc id, segment id). The earlier occurrence wins, so a
// dense hit beats a sparse hit for the same segment when dense is passed
// first. Input ordering is preserved; fusion never re-sorts.
func FuseCandidates(sources ...[]core.Candidate) []core.Candidate {
	total := 0
	for _, source := range sources {
		total += len(source)
	}

	fused := make([]core.Candidate, 0, total)
	seen := make(map[segmentKey]struct{}, total)
	for _, source := range sources {
		for _, candidate := range source {
			key := segmentKey{docID: candidate.DocId, segmentID: candidate.SegmentId}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fused = append(fused, candidate)
		}
	}

	return fused
}
