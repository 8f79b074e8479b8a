package storage

import (
	"context"

	"github.com/poiesic/askit/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// SegmentRepository provides operations for managing content segments.
type SegmentRepository interface {
	Repository

	// AddSegments stores one or more segments. Segment IDs are content-based,
	// so re-adding identical content overwrites in place.
	// Sets InsertedAt timestamp if not already set.
	// Returns the segments with timestamps populated.
	AddSegments(ctx context.Context, segments ...*core.Segment) ([]*core.Segment, error)

	// UpdateSegments updates existing segments.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any segment doesn't exist.
	UpdateSegments(ctx context.Context, segments ...*core.Segment) ([]*core.Segment, error)

	// GetSegment retrieves a single segment by its composite identity.
	// Returns ErrNotFound if the segment doesn't exist.
	GetSegment(ctx context.Context, docID, segmentID core.ID) (*core.Segment, error)

	// GetSegments retrieves multiple segments by reference. Only the identity
	// fields of each ref are used; scores are ignored.
	// Returns only the segments that exist (no error for missing segments).
	GetSegments(ctx context.Context, refs ...core.SegmentRef) ([]*core.Segment, error)

	// ListSegments pages through all segments in key order. Pass empty IDs to
	// start from the beginning; pass the identity of the last segment seen to
	// resume after it. Returns up to limit segments.
	ListSegments(ctx context.Context, afterDoc, afterSegment core.ID, limit int) ([]*core.Segment, error)

	// DeleteSegmentsByDocument removes every segment belonging to a document.
	// Returns the number of segments removed.
	DeleteSegmentsByDocument(ctx context.Context, docID core.ID) (int, error)

	// CountSegments returns the total number of stored segments.
	CountSegments(ctx context.Context) (int, error)

	// FindSimilar finds segments similar to the given vector, restricted to
	// segments the filter matches. Returns up to limit results ordered by
	// similarity score (highest first). Segments without vectors are skipped.
	FindSimilar(ctx context.Context, vector []float32, limit int, filter core.SegmentFilter) ([]*core.ScoredSegment, error)
}

// PermissionResolver resolves a permission scope into the documents it may see.
type PermissionResolver interface {
	// ResolveAllowedDocuments returns the IDs of non-deleted documents whose
	// permission tag the scope allows, sorted ascending. Retrieval skips
	// resolution entirely for unrestricted scopes, which carry no document
	// restriction.
	ResolveAllowedDocuments(ctx context.Context, scope core.PermissionScope) ([]core.ID, error)
}

// DocumentRepository provides operations for managing documents.
type DocumentRepository interface {
	Repository
	PermissionResolver

	// AddDocuments stores one or more documents.
	// Sets InsertedAt timestamp if not already set.
	// Returns ErrDuplicateKey if a document with the same ID already exists.
	AddDocuments(ctx context.Context, documents ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// UpdateDocumentStatus transitions a document to the given status.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocumentStatus(ctx context.Context, id core.ID, status core.DocumentStatus) error

	// DeleteDocument marks a document deleted, hiding it from retrieval. The
	// document record and its segments remain until purged.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error

	// PurgeDocument removes the document record and its permission index
	// entry entirely. Segments are not touched; callers remove them
	// separately.
	// Returns ErrNotFound if the document doesn't exist.
	PurgeDocument(ctx context.Context, id core.ID) error

	// ListDocuments returns all documents, including deleted ones, ordered by ID.
	ListDocuments(ctx context.Context) ([]*core.Document, error)
}

// SessionRepository provides durable storage for conversation messages.
type SessionRepository interface {
	Repository

	// AppendMessages appends messages to a session's history in order.
	// Sets each message's Timestamp if not already set.
	AppendMessages(ctx context.Context, sessionID string, messages ...*core.Message) error

	// GetRecentMessages retrieves the limit most recent messages of a session,
	// ordered oldest first. A session with no messages yields an empty slice.
	GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error)

	// CountMessages returns the number of messages stored for a session.
	CountMessages(ctx context.Context, sessionID string) (int, error)

	// DeleteSession removes all messages of a session.
	// Returns the number of messages removed.
	DeleteSession(ctx context.Context, sessionID string) (int, error)

	// ListSessions returns the IDs of all sessions with stored messages.
	ListSessions(ctx context.Context) ([]string, error)
}
