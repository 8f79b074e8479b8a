package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/askit/core"
)

// Key prefixes for different data types. Segment and document IDs are hex
// strings and session IDs reject ':', so the separator is unambiguous.
const (
	segmentRecordPrefix  = "segrec"
	documentRecordPrefix = "docrec"
	documentTagPrefix    = "doctag"
	sessionMessagePrefix = "sesmsg"
	sessionMessageSeq    = "sesmsgseq"
)

// makeSegmentKey generates a key for a segment under its document.
// Format: prefix:docID:segmentID
func makeSegmentKey(docID, segmentID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", segmentRecordPrefix, docID, segmentID))
}

// makePartialSegmentKey generates a prefix covering all segments of a document.
func makePartialSegmentKey(docID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:", segmentRecordPrefix, docID))
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentRecordPrefix, id))
}

// makeDocumentTagKey generates a composite key for the permission tag index.
// Public documents are indexed under the empty tag.
// Format: prefix:tag:docID
func makeDocumentTagKey(tag string, docID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", documentTagPrefix, tag, docID))
}

// makePartialDocumentTagKey generates a prefix covering all documents
// carrying a tag.
func makePartialDocumentTagKey(tag string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentTagPrefix, tag))
}

// makeSessionMessageKey generates a composite key for a session message.
// The sequence number is appended in BigEndian order so lexicographic sort
// matches append order.
// Format: prefix:sessionID:seq
func makeSessionMessageKey(sessionID string, seq uint64) []byte {
	prefix := makePartialSessionKey(sessionID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makePartialSessionKey generates a prefix covering all messages of a session.
func makePartialSessionKey(sessionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", sessionMessagePrefix, sessionID))
}
