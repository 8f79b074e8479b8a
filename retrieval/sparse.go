package retrieval

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/askit/core"
)

// segmentKey identifies an index entry. Segment ids are content-derived
// and may repeat across documents, so the document id is part of the key.
type segmentKey struct {
	docID     core.ID
	segmentID core.ID
}

// bm25Entry holds the per-segment statistics needed for scoring plus the
// permission tag used to filter search results.
type bm25Entry struct {
	tag       string
	length    int
	termFreqs map[string]int
}

// BM25Index is an in-process lexical index over segment content using
// Okapi BM25 scoring (k1=1.2, b=0.75). It is safe for concurrent use;
// updates take the write lock, searches the read lock.
type BM25Index struct {
	mu        sync.RWMutex
	entries   map[segmentKey]*bm25Entry
	docFreqs  map[string]int
	totalLen  int
	k1        float64
	b         float64
}

// NewBM25Index creates an empty index.
func NewBM25Index() *BM25Index {
	return &BM25Index{
		entries:  make(map[segmentKey]*bm25Entry),
		docFreqs: make(map[string]int),
		k1:       1.2,
		b:        0.75,
	}
}

// Add indexes one segment's content. Re-adding the same (docID, segmentID)
// replaces the previous entry.
func (idx *BM25Index) Add(docID, segmentID core.ID, permissionTag, content string) {
	terms := tokenize(content)
	key := segmentKey{docID: docID, segmentID: segmentID}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(key)

	entry := &bm25Entry{
		tag:       permissionTag,
		length:    len(terms),
		termFreqs: make(map[string]int, len(terms)),
	}
	for _, term := range terms {
		if entry.termFreqs[term] == 0 {
			idx.docFreqs[term]++
		}
		entry.termFreqs[term]++
	}

	idx.entries[key] = entry
	idx.totalLen += entry.length
}

// Remove drops one segment from the index. Unknown keys are a no-op.
func (idx *BM25Index) Remove(docID, segmentID core.ID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(segmentKey{docID: docID, segmentID: segmentID})
}

// RemoveDocument drops every segment of a document from the index.
// Returns the number of entries removed.
func (idx *BM25Index) RemoveDocument(docID core.ID) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	keys := make([]segmentKey, 0)
	for key := range idx.entries {
		if key.docID == docID {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		idx.removeLocked(key)
	}
	return len(keys)
}

// Len returns the number of indexed segments.
func (idx *BM25Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries)
}

// removeLocked requires the write lock to be held.
func (idx *BM25Index) removeLocked(key segmentKey) {
	entry, ok := idx.entries[key]
	if !ok {
		return
	}
	for term := range entry.termFreqs {
		idx.docFreqs[term]--
		if idx.docFreqs[term] <= 0 {
			delete(idx.docFreqs, term)
		}
	}
	idx.totalLen -= entry.length
	delete(idx.entries, key)
}

// Search scores every visible segment against the query and returns up to
// limit candidates ordered by descending score. Segments whose document or
// permission tag the filter rejects are never scored.
func (idx *BM25Index) Search(query string, limit int, filter core.SegmentFilter) []core.Candidate {
	terms := tokenize(query)
	if len(terms) == 0 || limit <= 0 {
		return []core.Candidate{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := float64(len(idx.entries))
	if n == 0 {
		return []core.Candidate{}
	}
	avgLen := float64(idx.totalLen) / n

	// Compute each distinct term's IDF once.
	idfs := make(map[string]float64, len(terms))
	for _, term := range terms {
		if _, ok := idfs[term]; ok {
			continue
		}
		df := idx.docFreqs[term]
		if df == 0 {
			continue
		}
		idfs[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
	}
	if len(idfs) == 0 {
		return []core.Candidate{}
	}

	results := make([]core.Candidate, 0)
	for key, entry := range idx.entries {
		if !filter.MatchTag(key.docID, entry.tag) {
			continue
		}

		var score float64
		for term, idf := range idfs {
			tf, ok := entry.termFreqs[term]
			if !ok {
				continue
			}
			f := float64(tf)
			score += idf * (f * (idx.k1 + 1)) / (f + idx.k1*(1-idx.b+idx.b*(float64(entry.length)/avgLen)))
		}
		if score <= 0 {
			continue
		}

		results = append(results, core.Candidate{
			DocId:     key.docID,
			SegmentId: key.segmentID,
			Score:     score,
			Source:    core.SourceSparse,
		})
	}

	// Identity tie-break keeps equal-score results in a stable order.
	slices.SortFunc(results, func(a, b core.Candidate) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if c := strings.Compare(string(a.DocId), string(b.DocId)); c != 0 {
			return c
		}
		return strings.Compare(string(a.SegmentId), string(b.SegmentId))
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// SparseRetriever produces lexical candidates from a BM25 index.
type SparseRetriever struct {
	index  *BM25Index
	logger *slog.Logger
}

// NewSparseRetriever creates a retriever over the given index.
func NewSparseRetriever(index *BM25Index) (*SparseRetriever, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}

	return &SparseRetriever{
		index:  index,
		logger: slog.Default().With("component", "sparse-retriever"),
	}, nil
}

// Retrieve returns up to k candidates for the query within the permission
// filter, ordered by descending BM25 score.
func (r *SparseRetriever) Retrieve(ctx context.Context, query string, k int, filter core.SegmentFilter) ([]core.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := r.index.Search(query, k, filter)
	r.logger.Debug("sparse retrieval complete", "hits", len(candidates))
	return candidates, nil
}
