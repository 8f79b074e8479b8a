package reindex

import (
	"context"

	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/retrieval"
	"github.com/poiesic/askit/storage"
)

// RebuildSparseIndex populates a lexical index from every stored segment,
// fetching in batches of batchSize. The index lives in memory only, so this
// runs once per process start before serving queries. Existing entries for
// the same (document, segment) pairs are replaced. Returns the number of
// segments indexed.
func RebuildSparseIndex(ctx context.Context, repo storage.SegmentRepository, index *retrieval.BM25Index, batchSize int) (int, error) {
	iterator := NewSegmentIterator(repo, batchSize)

	indexed := 0
	err := iterator.ForEach(ctx, func(segments []*core.Segment) error {
		for _, segment := range segments {
			index.Add(segment.DocId, segment.Id, segment.PermissionTag, segment.Content)
		}
		indexed += len(segments)
		return nil
	})
	if err != nil {
		return indexed, err
	}

	return indexed, nil
}
