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
	"fmt"
	"io"
	"time"

	"github.com/poiesic/askit/ai"
	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
)

// Config holds configuration for the reindex operation.
type Config struct {
	// BatchSize is the number of segments to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of segments)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer orchestrates the reembedding of all segments in a database.
// Segments are fetched and embedded in batches, with the vectors written
// back in place. Run after switching embedding models so stored vectors
// match what the query side produces.
type Reindexer struct {
	repo      storage.SegmentRepository
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *SegmentIterator
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(repo storage.SegmentRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}

	processor := NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay)
	iterator := NewSegmentIterator(repo, config.BatchSize)

	return &Reindexer{
		repo:      repo,
		embedder:  embedder,
		config:    config,
		progress:  progress,
		processor: processor,
		iterator:  iterator,
	}
}

// Run executes the reindex operation.
// All segments in the database are reembedded with the configured embedder.
// Progress is reported to the configured writer.
func (r *Reindexer) Run(ctx context.Context) error {
	// Count up front so progress can be reported against a total
	totalSegments, err := r.repo.CountSegments(ctx)
	if err != nil {
		return fmt.Errorf("failed to count segments: %w", err)
	}

	if totalSegments == 0 {
		fmt.Fprintf(r.progress, "No segments found in database (0 segments)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d segments (batch size: %d)\n",
		totalSegments, r.config.BatchSize)

	// Initialize progress tracker
	tracker := NewProgressTracker(r.progress, totalSegments, r.config.ReportInterval)
	tracker.Start()

	processed := 0

	// Process all segments in batches
	err = r.iterator.ForEach(ctx, func(segments []*core.Segment) error {
		// Process this batch
		if err := r.processor.Process(ctx, segments); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		// Update progress
		processed += len(segments)
		tracker.Update(processed)

		return nil
	})

	if err != nil {
		return err
	}

	// Finish progress tracking
	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d segments in %v (%.1f segments/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return nil
}
