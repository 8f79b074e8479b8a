package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
//
// Besides the primary record it maintains a permission tag index mapping
// tag -> document ID, with public documents indexed under the empty tag.
// Deleted documents are removed from the index so permission resolution
// never surfaces them.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{backend: backend}, nil
}

// Close is a no-op; the repository holds no resources beyond the backend.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddDocuments stores one or more documents and indexes their permission tags.
func (r *DocumentRepository) AddDocuments(ctx context.Context, documents ...*core.Document) ([]*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, document := range documents {
			key := makeDocumentKey(document.Id)

			existing, err := readDocument(tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				return storage.ErrDuplicateKey
			}

			if document.InsertedAt.IsZero() {
				document.InsertedAt = now
			}
			document.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalDocument(document)); err != nil {
				return err
			}

			tagKey := makeDocumentTagKey(document.PermissionTag, document.Id)
			if err := tx.Set(tagKey, []byte(document.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return documents, err
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
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

// GetDocuments retrieves multiple documents by their IDs, skipping missing ones.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			document, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if document != nil {
				result = append(result, document)
			}
		}
		return nil
	}, false)
	return result, err
}

// UpdateDocumentStatus transitions a document to the given status, keeping the
// permission tag index in sync: transitions into the deleted status drop the
// index entry, transitions out restore it.
func (r *DocumentRepository) UpdateDocumentStatus(ctx context.Context, id core.ID, status core.DocumentStatus) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)

		document, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if document == nil {
			return storage.ErrNotFound
		}

		wasDeleted := document.Status == core.DocumentStatusDeleted
		document.Status = status
		document.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalDocument(document)); err != nil {
			return err
		}

		tagKey := makeDocumentTagKey(document.PermissionTag, document.Id)
		isDeleted := status == core.DocumentStatusDeleted
		switch {
		case isDeleted && !wasDeleted:
			if err := tx.Delete(tagKey); err != nil {
				return err
			}
		case !isDeleted && wasDeleted:
			if err := tx.Set(tagKey, []byte(document.Id)); err != nil {
				return err
			}
		}

		return tx.Commit()
	}, true)
}

// DeleteDocument marks a document deleted, hiding it from retrieval.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID) error {
	return r.UpdateDocumentStatus(ctx, id, core.DocumentStatusDeleted)
}

// PurgeDocument removes the document record and its permission tag index
// entry. Segments are left for the caller to remove.
func (r *DocumentRepository) PurgeDocument(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)

		document, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if document == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := tx.Delete(makeDocumentTagKey(document.PermissionTag, document.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListDocuments returns all documents, including deleted ones, ordered by ID.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var document *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				document, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if document != nil {
				results = append(results, document)
			}
		}
		return nil
	}, false)

	return results, err
}

// ResolveAllowedDocuments returns the IDs of non-deleted documents visible to
// the scope: public documents plus documents whose tag matches one of the
// scope's tokens. Results are sorted ascending for deterministic behavior.
func (r *DocumentRepository) ResolveAllowedDocuments(ctx context.Context, scope core.PermissionScope) ([]core.ID, error) {
	tags := append([]string{""}, scope.Tokens()...)

	allowed := make(map[core.ID]struct{})
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, tag := range tags {
			prefix := makePartialDocumentTagKey(tag)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				err := iter.Item().Value(func(val []byte) error {
					allowed[core.ID(val)] = struct{}{}
					return nil
				})
				if err != nil {
					iter.Close()
					return err
				}
			}
			iter.Close()
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	ids := make([]core.ID, 0, len(allowed))
	for id := range allowed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// readDocument reads a document from the transaction. Returns (nil, nil) when
// the key does not exist.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var document *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		document, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return document, err
}
