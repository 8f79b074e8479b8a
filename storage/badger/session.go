package badger

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
)

// SessionRepository implements storage.SessionRepository for BadgerDB.
//
// Messages are stored under composite keys carrying a monotonically growing
// sequence number, so key order is append order and a reverse scan yields the
// most recent messages first.
type SessionRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(backend *Backend) (*SessionRepository, error) {
	seq, err := backend.GetSequence(sessionMessageSeq)
	if err != nil {
		return nil, err
	}

	return &SessionRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the message sequence.
func (r *SessionRepository) Close() error {
	return r.seq.Release()
}

// WithTransaction delegates to the backend.
func (r *SessionRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AppendMessages appends messages to a session's history in order.
func (r *SessionRepository) AppendMessages(ctx context.Context, sessionID string, messages ...*core.Message) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, message := range messages {
			next, err := r.seq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if next == 0 {
				next, err = r.seq.Next()
				if err != nil {
					return err
				}
			}

			if message.Timestamp.IsZero() {
				message.Timestamp = now
			}

			key := makeSessionMessageKey(sessionID, next)
			if err := tx.Set(key, storage.MarshalMessage(message)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetRecentMessages retrieves the limit most recent messages of a session,
// ordered oldest first.
func (r *SessionRepository) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialSessionKey(sessionID)

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the highest possible sequence for this session
		start := makeSessionMessageKey(sessionID, ^uint64(0))

		for iter.Seek(start); iter.Valid() && len(results) < limit; iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}

			var message *core.Message
			err := iter.Item().Value(func(val []byte) error {
				var err error
				message, err = storage.UnmarshalMessage(val)
				return err
			})
			if err != nil {
				return err
			}
			if message != nil {
				results = append(results, message)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	// Reverse scan produced newest first
	slices.Reverse(results)
	return results, nil
}

// CountMessages returns the number of messages stored for a session.
func (r *SessionRepository) CountMessages(ctx context.Context, sessionID string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialSessionKey(sessionID)
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

// DeleteSession removes all messages of a session.
func (r *SessionRepository) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialSessionKey(sessionID)
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

// ListSessions returns the IDs of all sessions with stored messages.
func (r *SessionRepository) ListSessions(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(sessionMessagePrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			rest := key[len(prefix):]
			// Session IDs cannot contain ':', so the first separator ends the ID
			idx := bytes.IndexByte(rest, ':')
			if idx < 0 {
				continue
			}
			seen[string(rest[:idx])] = struct{}{}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
