package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/askit/core"
)

var (
	// ErrSegmentRepositoryRequired is returned when a segment repository is not provided.
	ErrSegmentRepositoryRequired = errors.New("segment repository required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrSparseIndexRequired is returned when a sparse index is not provided.
	ErrSparseIndexRequired = errors.New("sparse index required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrNoSegments is returned when a document input carries no segments.
	ErrNoSegments = fmt.Errorf("%w: document has no segments", core.ErrValidation)

	// ErrUnknownParent is returned when a segment names a parent whose content
	// is not among its sibling inputs.
	ErrUnknownParent = fmt.Errorf("%w: parent content does not match any sibling segment", core.ErrValidation)

	// ErrSelfParent is returned when a segment names itself as its parent.
	ErrSelfParent = fmt.Errorf("%w: segment cannot be its own parent", core.ErrValidation)
)
