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


package storage

import (
	"fmt"

	"github.com/poiesic/askit/core"
)

// MarshalSegment serializes a Segment to bytes.
func MarshalSegment(segment *core.Segment) []byte {
	buf := make([]byte, core.SegmentMUS.Size(*segment))
	core.SegmentMUS.Marshal(*segment, buf)
	return buf
}

// UnmarshalSegment deserializes a Segment from bytes.
func UnmarshalSegment(data []byte) (*core.Segment, error) {
	segment, _, err := core.SegmentMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &segment, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(document *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*document))
	core.DocumentMUS.Marshal(*document, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	document, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &document, nil
}

// MarshalMessage serializes a Message to bytes.
func MarshalMessage(message *core.Message) []byte {
	buf := make([]byte, core.MessageMUS.Size(*message))
	core.MessageMUS.Marshal(*message, buf)
	return buf
}

// UnmarshalMessage deserializes a Message from bytes.
func UnmarshalMessage(data []byte) (*core.Message, error) {
	message, _, err := core.MessageMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &message, nil
}
