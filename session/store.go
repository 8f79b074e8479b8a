package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
)

const (
	// DefaultWindow is the number of recent messages a cached session keeps.
	DefaultWindow = 50

	// DefaultMaxSessions is the number of sessions the cache admits at once.
	DefaultMaxSessions = 1024

	lockStripes = 64
)

// Store serves conversation history from an in-memory cache backed by the
// durable session repository. Each cached entry holds the most recent window
// of a session's messages; anything older is fetched from the repository on
// demand. Writes go to the repository first, so an entry never contains a
// message that was not persisted.
type Store struct {
	repo        storage.SessionRepository
	cache       *ristretto.Cache[string, *core.Session]
	locks       [lockStripes]sync.Mutex
	window      int
	maxSessions int64
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithWindow sets the number of recent messages kept per cached session.
// Default is DefaultWindow.
func WithWindow(window int) Option {
	return func(s *Store) error {
		if window < 1 {
			return ErrInvalidWindow
		}
		s.window = window
		return nil
	}
}

// WithMaxSessions sets the number of sessions the cache admits.
// Default is DefaultMaxSessions.
func WithMaxSessions(maxSessions int64) Option {
	return func(s *Store) error {
		if maxSessions < 1 {
			return ErrInvalidCacheSize
		}
		s.maxSessions = maxSessions
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates a session store on top of the given repository.
func NewStore(repo storage.SessionRepository, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	s := &Store{
		repo:        repo,
		window:      DefaultWindow,
		maxSessions: DefaultMaxSessions,
		logger:      slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *core.Session]{
		NumCounters: s.maxSessions * 10,
		MaxCost:     s.maxSessions,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	s.cache = cache

	return s, nil
}

// Load returns up to limit of the session's most recent messages, ordered
// oldest first. A session with no stored messages yields an empty slice. The
// returned slice is the caller's to keep; later appends do not alter it.
func (s *Store) Load(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	// A cached entry holds at most the window, so it can only answer
	// requests that fit inside it.
	if limit <= s.window {
		if session, ok := s.cache.Get(sessionID); ok {
			s.logger.Debug("session cache hit", "session_id", sessionID, "cached", len(session.Messages))
			return tail(session.Messages, limit), nil
		}
	}

	fetch := max(limit, s.window)
	records, err := s.repo.GetRecentMessages(ctx, sessionID, fetch)
	if err != nil {
		return nil, fmt.Errorf("%w: load session %q: %w", core.ErrPersistence, sessionID, err)
	}

	messages := make([]core.Message, len(records))
	for i, record := range records {
		messages[i] = *record
	}

	s.cache.Set(sessionID, &core.Session{Id: sessionID, Messages: tail(messages, s.window)}, 1)
	s.logger.Debug("session loaded", "session_id", sessionID, "messages", len(messages))

	return tail(messages, limit), nil
}

// Append persists messages to the session and folds them into the cached
// window. The repository write happens first; if it fails the cache is left
// untouched and the error wraps core.ErrPersistence.
func (s *Store) Append(ctx context.Context, sessionID string, messages ...core.Message) error {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	for i := range messages {
		if err := core.ValidateMessage(&messages[i]); err != nil {
			return err
		}
	}

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	// The repository assigns timestamps to zero-valued messages in place.
	// Cloning first keeps that write out of the caller's slice.
	messages = slices.Clone(messages)
	records := make([]*core.Message, len(messages))
	for i := range messages {
		records[i] = &messages[i]
	}
	if err := s.repo.AppendMessages(ctx, sessionID, records...); err != nil {
		return fmt.Errorf("%w: append to session %q: %w", core.ErrPersistence, sessionID, err)
	}

	session, ok := s.cache.Get(sessionID)
	if !ok {
		// Not cached; the next Load fetches the fresh tail.
		return nil
	}
	session.Messages = append(session.Messages, messages...)
	if len(session.Messages) > s.window {
		session.Messages = slices.Clone(session.Messages[len(session.Messages)-s.window:])
	}
	return nil
}

// RememberRewrite records the most recent query rewrite on the cached
// session. Sessions that are not cached do not record one; a fresh entry
// here would shadow history that was never fetched.
func (s *Store) RememberRewrite(sessionID, rewrite string) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if session, ok := s.cache.Get(sessionID); ok {
		session.LastRewrite = rewrite
	}
}

// LastRewrite returns the most recent query rewrite recorded for the
// session, or "" when none is cached.
func (s *Store) LastRewrite(sessionID string) string {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if session, ok := s.cache.Get(sessionID); ok {
		return session.LastRewrite
	}
	return ""
}

// Delete removes all of the session's messages from the durable store and
// drops the cached entry. It returns the number of messages deleted.
func (s *Store) Delete(ctx context.Context, sessionID string) (int, error) {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return 0, err
	}

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	deleted, err := s.repo.DeleteSession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete session %q: %w", core.ErrPersistence, sessionID, err)
	}
	s.cache.Del(sessionID)

	s.logger.Info("session deleted", "session_id", sessionID, "messages", deleted)
	return deleted, nil
}

// Sessions returns the IDs of all sessions with stored messages.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", core.ErrPersistence, err)
	}
	return ids, nil
}

// Invalidate drops the session's cached entry without touching the durable
// store. The next Load fetches from the repository.
func (s *Store) Invalidate(sessionID string) {
	s.cache.Del(sessionID)
}

// InvalidateAll drops every cached entry without touching the durable
// store.
func (s *Store) InvalidateAll() {
	s.cache.Clear()
}

// Close releases the cache. The underlying repository is not closed; its
// lifecycle belongs to the caller.
func (s *Store) Close() {
	s.cache.Close()
}

func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%lockStripes]
}

// tail clones the last limit messages.
func tail(messages []core.Message, limit int) []core.Message {
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return slices.Clone(messages)
}
