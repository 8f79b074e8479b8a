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


package session

import (
	"errors"
	"fmt"

	"github.com/poiesic/askit/core"
)

var (
	// ErrRepositoryRequired is returned when a session repository is not provided.
	ErrRepositoryRequired = errors.New("session repository required")

	// ErrInvalidWindow is returned when the store is configured with a
	// non-positive cache window.
	ErrInvalidWindow = errors.New("session window must be positive")

	// ErrInvalidCacheSize is returned when the store is configured to cache a
	// non-positive number of sessions.
	ErrInvalidCacheSize = errors.New("session cache size must be positive")

	// ErrInvalidLimit rejects non-positive history limits.
	ErrInvalidLimit = fmt.Errorf("%w: history limit must be positive", core.ErrValidation)
)
