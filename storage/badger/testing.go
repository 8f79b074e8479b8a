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


package badger

import "github.com/poiesic/askit/storage"

// NewMemoryRepositories creates in-memory segment, document and session
// repositories for testing. Returns the repositories, the shared backend,
// and error. Caller must close the repositories and backend when done.
func NewMemoryRepositories() (storage.SegmentRepository, storage.DocumentRepository, storage.SessionRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	segmentRepo, err := NewSegmentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, err
	}

	documentRepo, err := NewDocumentRepository(backend)
	if err != nil {
		segmentRepo.Close()
		backend.Close()
		return nil, nil, nil, nil, err
	}

	sessionRepo, err := NewSessionRepository(backend)
	if err != nil {
		documentRepo.Close()
		segmentRepo.Close()
		backend.Close()
		return nil, nil, nil, nil, err
	}

	return segmentRepo, documentRepo, sessionRepo, backend, nil
}
