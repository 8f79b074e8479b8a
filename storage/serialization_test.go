package storage

import (
	"testing"
	"time"

	"github.com/poiesic/askit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalSegment(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name    string
		segment *core.Segment
	}{
		{
			name: "minimal segment",
			segment: &core.Segment{
				Id:         core.IDFromContent("hello"),
				DocId:      core.IDFromContent("doc"),
				Content:    "Hello",
				Type:       core.SegmentTypeText,
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "segment with parent and tag",
			segment: &core.Segment{
				Id:            core.IDFromContent("child"),
				ParentId:      core.IDFromContent("parent"),
				DocId:         core.IDFromContent("doc"),
				Content:       "A paragraph split from a larger section",
				Type:          core.SegmentTypeText,
				PageIdx:       4,
				PermissionTag: "team-alpha",
				InsertedAt:    now,
				UpdatedAt:     now,
			},
		},
		{
			name: "segment with vector",
			segment: &core.Segment{
				Id:         core.IDFromContent("embedded"),
				DocId:      core.IDFromContent("doc"),
				Content:    "Test with embedding",
				Type:       core.SegmentTypeTable,
				Vector:     []float32{0.1, 0.2, 0.3, 0.4, 0.5},
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "segment with long vector",
			segment: &core.Segment{
				Id:         core.IDFromContent("long"),
				DocId:      core.IDFromContent("doc"),
				Content:    "Full-size embedding",
				Type:       core.SegmentTypeText,
				Vector:     make([]float32, 1024),
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "unicode content",
			segment: &core.Segment{
				Id:         core.IDFromContent("unicode"),
				DocId:      core.IDFromContent("doc"),
				Content:    "Hello 世界 🌍 émojis",
				Type:       core.SegmentTypeImage,
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalSegment(tt.segment)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalSegment(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.segment.Id, decoded.Id)
			assert.Equal(t, tt.segment.ParentId, decoded.ParentId)
			assert.Equal(t, tt.segment.DocId, decoded.DocId)
			assert.Equal(t, tt.segment.Content, decoded.Content)
			assert.Equal(t, tt.segment.Type, decoded.Type)
			assert.Equal(t, tt.segment.PageIdx, decoded.PageIdx)
			assert.Equal(t, tt.segment.PermissionTag, decoded.PermissionTag)
			assert.True(t, tt.segment.InsertedAt.Equal(decoded.InsertedAt))
			assert.True(t, tt.segment.UpdatedAt.Equal(decoded.UpdatedAt))
			// Handle nil vs empty slice
			if len(tt.segment.Vector) == 0 {
				assert.Empty(t, decoded.Vector)
			} else {
				assert.Equal(t, tt.segment.Vector, decoded.Vector)
			}
		})
	}
}

func TestUnmarshalSegment_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalSegment(tt.data)
			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name     string
		document *core.Document
	}{
		{
			name: "minimal document",
			document: &core.Document{
				Id:         core.IDFromContent("handbook"),
				Source:     "handbook.pdf",
				Status:     core.DocumentStatusPending,
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "document with permission tag",
			document: &core.Document{
				Id:            core.IDFromContent("salaries"),
				Source:        "salaries-2026.xlsx",
				Status:        core.DocumentStatusReady,
				PermissionTag: "hr",
				InsertedAt:    now,
				UpdatedAt:     now,
			},
		},
		{
			name: "deleted document",
			document: &core.Document{
				Id:         core.IDFromContent("old"),
				Source:     "https://wiki.internal/old-page",
				Status:     core.DocumentStatusDeleted,
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalDocument(tt.document)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalDocument(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.document.Id, decoded.Id)
			assert.Equal(t, tt.document.Source, decoded.Source)
			assert.Equal(t, tt.document.Status, decoded.Status)
			assert.Equal(t, tt.document.PermissionTag, decoded.PermissionTag)
			assert.True(t, tt.document.InsertedAt.Equal(decoded.InsertedAt))
			assert.True(t, tt.document.UpdatedAt.Equal(decoded.UpdatedAt))
		})
	}
}

func TestUnmarshalDocument_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDocument(tt.data)
			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalMessage(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name    string
		message *core.Message
	}{
		{
			name: "user message",
			message: &core.Message{
				Role:      core.MessageRoleUser,
				Content:   "What is the refund policy?",
				Timestamp: now,
			},
		},
		{
			name: "assistant message with refs",
			message: &core.Message{
				Role:      core.MessageRoleAssistant,
				Content:   "Refunds are accepted within 30 days.",
				Timestamp: now,
				Refs: []core.SegmentRef{
					{DocId: core.IDFromContent("doc"), SegmentId: core.IDFromContent("seg1"), Score: 0.91},
					{DocId: core.IDFromContent("doc"), SegmentId: core.IDFromContent("seg2"), Score: 0.47},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalMessage(tt.message)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalMessage(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.message.Role, decoded.Role)
			assert.Equal(t, tt.message.Content, decoded.Content)
			assert.True(t, tt.message.Timestamp.Equal(decoded.Timestamp))
			// Handle nil vs empty slice
			if len(tt.message.Refs) == 0 {
				assert.Empty(t, decoded.Refs)
			} else {
				assert.Equal(t, tt.message.Refs, decoded.Refs)
			}
		})
	}
}

func TestRoundTripConsistency(t *testing.T) {
	t.Run("multiple marshal-unmarshal cycles", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		original := &core.Segment{
			Id:            core.IDFromContent("cycle"),
			ParentId:      core.IDFromContent("section"),
			DocId:         core.IDFromContent("doc"),
			Content:       "Testing consistency",
			Type:          core.SegmentTypeText,
			PageIdx:       2,
			PermissionTag: "hr",
			Vector:        []float32{0.1, 0.2, 0.3},
			InsertedAt:    now,
			UpdatedAt:     now,
		}

		// Perform 3 marshal-unmarshal cycles
		current := original
		for i := 0; i < 3; i++ {
			data := MarshalSegment(current)
			decoded, err := UnmarshalSegment(data)
			require.NoError(t, err)
			current = decoded
		}

		// Verify final result matches original
		assert.Equal(t, original.Id, current.Id)
		assert.Equal(t, original.ParentId, current.ParentId)
		assert.Equal(t, original.Content, current.Content)
		assert.Equal(t, original.PermissionTag, current.PermissionTag)
		assert.Equal(t, original.Vector, current.Vector)
	})
}
