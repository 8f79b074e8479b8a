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


// Package storage provides the storage abstraction layer for askit.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic. It allows for different storage backends (BadgerDB, in-memory,
// etc.) to be used interchangeably.
//
// # Constructor Pattern
//
// Backend constructors return concrete types; consumers hold them as the
// interfaces defined here:
//
//	var segments storage.SegmentRepository
//	segments, err = badger.NewSegmentRepository(backend)
//
// This keeps business logic decoupled from BadgerDB specifics and lets tests
// substitute mock implementations without modification.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - Repository: Base interface with transaction and lifecycle operations
//   - SegmentRepository: Operations for content segments, including vector search
//   - DocumentRepository: Operations for documents and permission resolution
//   - SessionRepository: Operations for conversation message logs
//
// # Usage
//
// Create repository instances sharing one backend:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	segments, err := badger.NewSegmentRepository(backend)
//	...
//
// Use in tests with in-memory storage:
//
//	segments, documents, sessions, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
