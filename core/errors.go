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


package core

import (
	"errors"
	"fmt"
)

// Error kinds for the request pipeline. Callers classify a failure with
// errors.Is against these; every error surfaced by the engine wraps exactly
// one of them.
var (
	// ErrValidation indicates the caller's input was rejected before any work.
	ErrValidation = errors.New("validation failed")

	// ErrRetrieval indicates a retrieval stage failed. Retrieval errors are
	// recoverable: the pipeline degrades to whatever candidates remain.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the language model failed to produce an answer.
	ErrGeneration = errors.New("generation failed")

	// ErrPersistence indicates conversation state could not be saved.
	ErrPersistence = errors.New("persistence failed")
)

// Domain validation errors
var (
	// ErrInvalidSegment indicates a Segment failed validation.
	ErrInvalidSegment = fmt.Errorf("%w: invalid segment", ErrValidation)

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = fmt.Errorf("%w: invalid document", ErrValidation)

	// ErrInvalidMessage indicates a Message failed validation.
	ErrInvalidMessage = fmt.Errorf("%w: invalid message", ErrValidation)

	// ErrInvalidSessionID indicates a session ID is empty, too long or
	// contains characters outside [A-Za-z0-9._-].
	ErrInvalidSessionID = fmt.Errorf("%w: invalid session id", ErrValidation)

	// ErrInvalidPermissionToken indicates a permission token or tag contains
	// forbidden characters.
	ErrInvalidPermissionToken = fmt.Errorf("%w: invalid permission token", ErrValidation)

	// ErrInvalidPermissionInput indicates the raw permission value was not a
	// string or a list of strings.
	ErrInvalidPermissionInput = fmt.Errorf("%w: permission tokens must be a string or a list of strings", ErrValidation)

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptySource indicates the document Source field is empty.
	ErrEmptySource = errors.New("document source cannot be empty")

	// ErrInvalidSegmentType indicates an invalid SegmentType value.
	ErrInvalidSegmentType = errors.New("invalid segment type")

	// ErrInvalidMessageRole indicates an invalid MessageRole value.
	ErrInvalidMessageRole = errors.New("invalid message role")

	// ErrInvalidDocumentStatus indicates an invalid DocumentStatus value.
	ErrInvalidDocumentStatus = errors.New("invalid document status")
)
