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
	"fmt"
	"strings"
	"time"
)

const maxSessionIDLength = 128

// ValidateSegment validates a Segment according to domain rules.
//
// Validation rules:
//   - Content must not be empty
//   - DocId must not be empty
//   - Type must be valid (text, table or image)
//   - PageIdx must not be negative
//   - PermissionTag, when set, must be a well-formed token
//
// NOT validated:
//   - Vector (can be empty until the embedder runs)
//   - ParentId (empty is valid for top-level segments)
func ValidateSegment(segment *Segment) error {
	if segment == nil {
		return fmt.Errorf("%w: segment is nil", ErrInvalidSegment)
	}

	if strings.TrimSpace(segment.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSegment, ErrEmptyContent)
	}

	if segment.DocId == "" {
		return fmt.Errorf("%w: document id is empty", ErrInvalidSegment)
	}

	if err := ValidateSegmentType(segment.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSegment, err)
	}

	if segment.PageIdx < 0 {
		return fmt.Errorf("%w: page index %d is negative", ErrInvalidSegment, segment.PageIdx)
	}

	if err := ValidatePermissionTag(segment.PermissionTag); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSegment, err)
	}

	return nil
}

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Source must not be empty
//   - Status must be valid
//   - PermissionTag, when set, must be a well-formed token
func ValidateDocument(document *Document) error {
	if document == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if strings.TrimSpace(document.Source) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptySource)
	}

	if err := ValidateDocumentStatus(document.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if err := ValidatePermissionTag(document.PermissionTag); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateMessage validates a conversation Message according to domain rules.
//
// Validation rules:
//   - Content must not be empty
//   - Role must be valid (user or assistant)
//   - Timestamp must not be in the future
func ValidateMessage(message *Message) error {
	if message == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}

	if message.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyContent)
	}

	if err := ValidateMessageRole(message.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	if !IsValidTimestamp(message.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateSessionID validates a caller-supplied session identifier. IDs are
// restricted to [A-Za-z0-9._-] so they embed safely into storage keys.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidSessionID)
	}

	if len(id) > maxSessionIDLength {
		return fmt.Errorf("%w: id exceeds %d bytes", ErrInvalidSessionID, maxSessionIDLength)
	}

	for _, r := range id {
		if !isSessionIDRune(r) {
			return fmt.Errorf("%w: character %q is not allowed", ErrInvalidSessionID, r)
		}
	}

	return nil
}

func isSessionIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	default:
		return false
	}
}

// ValidatePermissionTag validates a segment or document permission tag. The
// empty tag is valid and means public. Tags must not contain ':' (reserved as
// the storage key separator) or control characters.
func ValidatePermissionTag(tag string) error {
	if tag == "" {
		return nil
	}
	return validateToken(tag)
}

// NormalizePermissionTokens converts a raw permission value into a canonical
// token list. Accepted shapes are nil, a single string and a list of strings;
// anything else is rejected. Tokens are trimmed, empties dropped and
// duplicates removed while preserving first-seen order. A nil or all-empty
// input yields an empty list, which grants access to nothing.
func NormalizePermissionTokens(raw any) ([]string, error) {
	var tokens []string

	switch v := raw.(type) {
	case nil:
	case string:
		tokens = []string{v}
	case []string:
		tokens = v
	case []any:
		tokens = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: list contains %T", ErrInvalidPermissionInput, item)
			}
			tokens = append(tokens, s)
		}
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidPermissionInput, raw)
	}

	normalized := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if err := validateToken(token); err != nil {
			return nil, err
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		normalized = append(normalized, token)
	}

	return normalized, nil
}

func validateToken(token string) error {
	for _, r := range token {
		if r == ':' || r < ' ' || r == 0x7f {
			return fmt.Errorf("%w: character %q is not allowed", ErrInvalidPermissionToken, r)
		}
	}
	return nil
}

// ValidateSegmentType validates that a SegmentType has a valid value.
func ValidateSegmentType(t SegmentType) error {
	switch t {
	case SegmentTypeText, SegmentTypeTable, SegmentTypeImage:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidSegmentType, t)
	}
}

// ValidateMessageRole validates that a MessageRole has a valid value.
func ValidateMessageRole(role MessageRole) error {
	if role != MessageRoleUser && role != MessageRoleAssistant {
		return fmt.Errorf("%w: value %d", ErrInvalidMessageRole, role)
	}
	return nil
}

// ValidateDocumentStatus validates that a DocumentStatus has a valid value.
func ValidateDocumentStatus(status DocumentStatus) error {
	switch status {
	case DocumentStatusPending, DocumentStatusReady, DocumentStatusFailed, DocumentStatusDeleted:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidDocumentStatus, status)
	}
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
