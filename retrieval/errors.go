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


package retrieval

import "errors"

var (
	// ErrSegmentRepositoryRequired is returned when a segment repository is not provided.
	ErrSegmentRepositoryRequired = errors.New("segment repository required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrIndexRequired is returned when a sparse index is not provided.
	ErrIndexRequired = errors.New("sparse index required")

	// ErrInvalidTopK is returned when a ranker is configured with a
	// non-positive result budget.
	ErrInvalidTopK = errors.New("top k must be positive")
)
