// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reindex

import (
	"context"

	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
)

const (
	// DefaultBatchSize is the default number of segments to fetch in each batch
	DefaultBatchSize = 100
)

// SegmentIterator iterates over all stored segments in batches. Batches are
// fetched with keyset pagination, so memory use stays bounded regardless of
// corpus size.
type SegmentIterator struct {
	repo      storage.SegmentRepository
	batchSize int
}

// NewSegmentIterator creates a new segment iterator.
// batchSize: number of segments to fetch in each batch (must be > 0)
func NewSegmentIterator(repo storage.SegmentRepository, batchSize int) *SegmentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &SegmentIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach iterates over all segments in (document, segment) key order,
// calling fn for each batch. Iteration stops on the first error from fn or
// when all segments are processed. Context cancellation is checked between
// batches.
func (it *SegmentIterator) ForEach(ctx context.Context, fn func([]*core.Segment) error) error {
	var afterDoc, afterSegment core.ID

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := it.repo.ListSegments(ctx, afterDoc, afterSegment, it.batchSize)
		if err != nil {
			return err
		}

		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		// Resume strictly after the last segment seen
		last := batch[len(batch)-1]
		afterDoc, afterSegment = last.DocId, last.Id

		if len(batch) < it.batchSize {
			return nil
		}
	}
}
