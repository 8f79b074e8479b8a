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


package rag

import (
	"errors"
	"fmt"

	"github.com/poiesic/askit/core"
)

var (
	// ErrResolverRequired is returned when a permission resolver is not provided.
	ErrResolverRequired = errors.New("permission resolver required")

	// ErrSessionStoreRequired is returned when a session store is not provided.
	ErrSessionStoreRequired = errors.New("session store required")

	// ErrProviderRequired is returned when an AI provider is not provided.
	ErrProviderRequired = errors.New("ai provider required")

	// ErrDenseSearcherRequired is returned when a dense searcher is not provided.
	ErrDenseSearcherRequired = errors.New("dense searcher required")

	// ErrSparseSearcherRequired is returned when a sparse searcher is not provided.
	ErrSparseSearcherRequired = errors.New("sparse searcher required")

	// ErrHydratorRequired is returned when a hydrator is not provided.
	ErrHydratorRequired = errors.New("hydrator required")

	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrInvalidK is returned when a retrieval candidate budget is not positive.
	ErrInvalidK = errors.New("retrieval k must be positive")

	// ErrInvalidHistoryLimit is returned when the history limit is not positive.
	ErrInvalidHistoryLimit = errors.New("history limit must be positive")

	// ErrInvalidTokenBudget is returned when a token budget is not positive.
	ErrInvalidTokenBudget = errors.New("token budget must be positive")

	// ErrEmptyQuery rejects a request whose query is empty or blank.
	ErrEmptyQuery = fmt.Errorf("%w: query must not be blank", core.ErrValidation)
)
