package core

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities, expressed as a lowercase
// hex digest. Segment and document IDs are generated with content-based
// hashing so that identical content produces identical IDs.
type ID string

// IDFromContent generates a deterministic ID from text content using BLAKE2b
// hashing. Content is trimmed first so surrounding whitespace does not change
// an entity's identity.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write([]byte(strings.TrimSpace(text)))
	return ID(hex.EncodeToString(h.Sum(nil)))
}

// SegmentType identifies the kind of content a segment carries.
type SegmentType int

const (
	// SegmentTypeText represents plain prose.
	SegmentTypeText SegmentType = iota + 1
	// SegmentTypeTable represents tabular content serialized as text.
	SegmentTypeTable
	// SegmentTypeImage represents a textual description of an image.
	SegmentTypeImage
)

// String returns the wire name of the segment type.
func (t SegmentType) String() string {
	switch t {
	case SegmentTypeText:
		return "text"
	case SegmentTypeTable:
		return "table"
	case SegmentTypeImage:
		return "image"
	default:
		return "unknown"
	}
}

// ParseSegmentType converts a wire name into a SegmentType.
func ParseSegmentType(s string) (SegmentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return SegmentTypeText, nil
	case "table":
		return SegmentTypeTable, nil
	case "image":
		return SegmentTypeImage, nil
	default:
		return 0, ErrInvalidSegmentType
	}
}

// MessageRole identifies the author of a conversation message.
type MessageRole int

const (
	// MessageRoleUser represents the human asking questions.
	MessageRoleUser MessageRole = iota + 1
	// MessageRoleAssistant represents generated answers.
	MessageRoleAssistant
)

// String returns the wire name of the message role.
func (r MessageRole) String() string {
	switch r {
	case MessageRoleUser:
		return "user"
	case MessageRoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// DocumentStatus tracks a document through its ingestion lifecycle.
type DocumentStatus int

const (
	// DocumentStatusPending means segments are stored but not yet embedded.
	DocumentStatusPending DocumentStatus = iota + 1
	// DocumentStatusReady means the document is fully searchable.
	DocumentStatusReady
	// DocumentStatusFailed means embedding failed and segments lack vectors.
	DocumentStatusFailed
	// DocumentStatusDeleted means the document is hidden from retrieval.
	DocumentStatusDeleted
)

// String returns the wire name of the document status.
func (s DocumentStatus) String() string {
	switch s {
	case DocumentStatusPending:
		return "pending"
	case DocumentStatusReady:
		return "ready"
	case DocumentStatusFailed:
		return "failed"
	case DocumentStatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Segment is the atomic unit of retrievable content. A segment belongs to a
// document and may reference a larger parent segment within the same
// document, e.g. the section a paragraph was split from.
type Segment struct {
	Id            ID
	ParentId      ID     // Optional parent segment; empty when top-level
	DocId         ID     // Owning document
	Content       string
	Type          SegmentType
	PageIdx       int       // Zero-based page index within the source document
	PermissionTag string    // Empty means public
	Vector        []float32 // Embedding vector (populated during ingestion or reindexing)
	InsertedAt    time.Time // When the segment was inserted into the database
	UpdatedAt     time.Time // When the segment was last updated
}

// Document groups segments that were ingested together from one source.
type Document struct {
	Id            ID
	Source        string // Origin of the content (file path, URL, upload name)
	Status        DocumentStatus
	PermissionTag string // Empty means public
	InsertedAt    time.Time
	UpdatedAt     time.Time
}

// CandidateSource identifies which retrieval stage produced a candidate.
type CandidateSource int

const (
	// SourceDense marks hits from vector similarity search.
	SourceDense CandidateSource = iota + 1
	// SourceSparse marks hits from lexical search.
	SourceSparse
	// SourceParentPromoted marks parent segments promoted from dense child hits.
	SourceParentPromoted
)

// String returns the wire name of the candidate source.
func (s CandidateSource) String() string {
	switch s {
	case SourceDense:
		return "dense"
	case SourceSparse:
		return "sparse"
	case SourceParentPromoted:
		return "parent-promoted"
	default:
		return "unknown"
	}
}

// Candidate is a retrieval hit before hydration: the segment's identity, a
// retrieval score and the stage that produced it. Scores from different
// sources are not comparable with each other.
type Candidate struct {
	DocId     ID
	SegmentId ID
	Score     float64
	Source    CandidateSource
}

// HydratedCandidate is a candidate joined with its stored content and
// the source of its owning document.
type HydratedCandidate struct {
	Candidate
	Content        string
	Type           SegmentType
	PageIdx        int
	DocumentSource string
	UpdatedAt      time.Time
}

// RankedCandidate is a hydrated candidate with a reranker relevance score.
// RerankScore replaces the retrieval score for all downstream ordering.
type RankedCandidate struct {
	HydratedCandidate
	RerankScore float64
}

// SegmentRef points at a segment that contributed to an answer.
type SegmentRef struct {
	DocId     ID
	SegmentId ID
	Score     float64
}

// Message is a single turn in a conversation session.
type Message struct {
	Role      MessageRole
	Content   string
	Timestamp time.Time
	Refs      []SegmentRef // Segments cited by an assistant answer
}

// Session is a conversation identified by a caller-supplied ID. LastRewrite
// caches the most recent query rewrite for inspection and is never persisted.
type Session struct {
	Id          string
	Messages    []Message
	LastRewrite string
}

// ScoredSegment pairs a full segment with a relevance score for presentation.
type ScoredSegment struct {
	Segment *Segment
	Score   float64
}
