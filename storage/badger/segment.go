package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
)

// SegmentRepository implements storage.SegmentRepository for BadgerDB.
type SegmentRepository struct {
	backend *Backend
}

var _ storage.SegmentRepository = (*SegmentRepository)(nil)

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(backend *Backend) (*SegmentRepository, error) {
	return &SegmentRepository{backend: backend}, nil
}

// Close is a no-op; the repository holds no resources beyond the backend.
func (r *SegmentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *SegmentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// FindSimilar delegates to the backend.
func (r *SegmentRepository) FindSimilar(ctx context.Context, vector []float32, limit int, filter core.SegmentFilter) ([]*core.ScoredSegment, error) {
	return r.backend.FindSimilarSegments(ctx, vector, limit, filter)
}

// AddSegments stores one or more segments. IDs are derived from content when
// unset, so re-adding identical content overwrites in place.
func (r *SegmentRepository) AddSegments(ctx context.Context, segments ...*core.Segment) ([]*core.Segment, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, segment := range segments {
			if segment.Id == "" {
				segment.Id = core.IDFromContent(segment.Content)
			}
			if segment.InsertedAt.IsZero() {
				segment.InsertedAt = now
			}
			segment.UpdatedAt = now

			key := makeSegmentKey(segment.DocId, segment.Id)
			if err := tx.Set(key, storage.MarshalSegment(segment)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return segments, err
}

// UpdateSegments updates existing segments.
func (r *SegmentRepository) UpdateSegments(ctx context.Context, segments ...*core.Segment) ([]*core.Segment, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, segment := range segments {
			key := makeSegmentKey(segment.DocId, segment.Id)

			old, err := readSegment(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			segment.InsertedAt = old.InsertedAt
			segment.UpdatedAt = time.Now().UTC()

			if err := tx.Set(key, storage.MarshalSegment(segment)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return segments, err
}

// GetSegment retrieves a single segment by its composite identity.
func (r *SegmentRepository) GetSegment(ctx context.Context, docID, segmentID core.ID) (*core.Segment, error) {
	var result *core.Segment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSegment(tx, makeSegmentKey(docID, segmentID))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetSegments retrieves multiple segments by reference, skipping missing ones.
func (r *SegmentRepository) GetSegments(ctx context.Context, refs ...core.SegmentRef) ([]*core.Segment, error) {
	var result []*core.Segment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, ref := range refs {
			segment, err := readSegment(tx, makeSegmentKey(ref.DocId, ref.SegmentId))
			if err != nil {
				return err
			}
			if segment != nil {
				result = append(result, segment)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListSegments pages through all segments in key order.
func (r *SegmentRepository) ListSegments(ctx context.Context, afterDoc, afterSegment core.ID, limit int) ([]*core.Segment, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Segment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(segmentRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		start := []byte(segmentRecordPrefix + ":")
		if afterDoc != "" {
			// Seek strictly past the last segment seen
			start = append(makeSegmentKey(afterDoc, afterSegment), 0x00)
		}

		for iter.Seek(start); iter.Valid() && len(results) < limit; iter.Next() {
			var segment *core.Segment
			err := iter.Item().Value(func(val []byte) error {
				var err error
				segment, err = storage.UnmarshalSegment(val)
				return err
			})
			if err != nil {
				return err
			}
			if segment != nil {
				results = append(results, segment)
			}
		}
		return nil
	}, false)

	return results, err
}

// DeleteSegmentsByDocument removes every segment belonging to a document.
func (r *SegmentRepository) DeleteSegmentsByDocument(ctx context.Context, docID core.ID) (int, error) {
	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialSegmentKey(docID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		// Collect keys first; deleting while iterating is undefined
		var keys [][]byte
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return tx.Commit()
	}, true)

	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// CountSegments returns the total number of stored segments.
func (r *SegmentRepository) CountSegments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(segmentRecordPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)

	if err != nil {
		return 0, err
	}
	return count, nil
}

// readSegment reads a segment from the transaction. Returns (nil, nil) when
// the key does not exist.
func readSegment(tx *badger.Txn, key []byte) (*core.Segment, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var segment *core.Segment
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		segment, unmarshalErr = storage.UnmarshalSegment(val)
		return unmarshalErr
	})
	return segment, err
}
