package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the record types the storage layer persists. They are
// hand-written against mus-go primitives; field order must stay in sync with
// the struct definitions in models.go.
var (
	IDMUS       = idSer{}
	SegmentMUS  = segmentSer{}
	DocumentMUS = documentSer{}
	MessageMUS  = messageSer{}

	timeMUS   = timeSer{}
	vectorMUS = ord.NewSliceSer[float32](raw.Float32)
	refsMUS   = ord.NewSliceSer[SegmentRef](segmentRefSer{})
)

type idSer struct{}

func (idSer) Marshal(id ID, bs []byte) int {
	return ord.String.Marshal(string(id), bs)
}

func (idSer) Unmarshal(bs []byte) (ID, int, error) {
	s, n, err := ord.String.Unmarshal(bs)
	return ID(s), n, err
}

func (idSer) Size(id ID) int {
	return ord.String.Size(string(id))
}

func (idSer) Skip(bs []byte) (int, error) {
	return ord.String.Skip(bs)
}

// timeSer stores timestamps as microseconds since the Unix epoch, which is
// the precision the rest of the system rounds to.
type timeSer struct{}

func (timeSer) Marshal(t time.Time, bs []byte) int {
	return raw.Int64.Marshal(t.UnixMicro(), bs)
}

func (timeSer) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := raw.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func (timeSer) Size(t time.Time) int {
	return raw.Int64.Size(t.UnixMicro())
}

func (timeSer) Skip(bs []byte) (int, error) {
	return raw.Int64.Skip(bs)
}

type segmentSer struct{}

func (segmentSer) Marshal(s Segment, bs []byte) (n int) {
	n = IDMUS.Marshal(s.Id, bs)
	n += IDMUS.Marshal(s.ParentId, bs[n:])
	n += IDMUS.Marshal(s.DocId, bs[n:])
	n += ord.String.Marshal(s.Content, bs[n:])
	n += varint.Int.Marshal(int(s.Type), bs[n:])
	n += varint.Int.Marshal(s.PageIdx, bs[n:])
	n += ord.String.Marshal(s.PermissionTag, bs[n:])
	n += vectorMUS.Marshal(s.Vector, bs[n:])
	n += timeMUS.Marshal(s.InsertedAt, bs[n:])
	n += timeMUS.Marshal(s.UpdatedAt, bs[n:])
	return
}

func (segmentSer) Unmarshal(bs []byte) (s Segment, n int, err error) {
	var n1 int
	if s.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if s.ParentId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.DocId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	var v int
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	s.Type = SegmentType(v)
	n += n1
	if s.PageIdx, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.PermissionTag, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.InsertedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	s.UpdatedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	return s, n + n1, err
}

func (segmentSer) Size(s Segment) int {
	return IDMUS.Size(s.Id) +
		IDMUS.Size(s.ParentId) +
		IDMUS.Size(s.DocId) +
		ord.String.Size(s.Content) +
		varint.Int.Size(int(s.Type)) +
		varint.Int.Size(s.PageIdx) +
		ord.String.Size(s.PermissionTag) +
		vectorMUS.Size(s.Vector) +
		timeMUS.Size(s.InsertedAt) +
		timeMUS.Size(s.UpdatedAt)
}

func (segmentSer) Skip(bs []byte) (n int, err error) {
	skips := []func([]byte) (int, error){
		IDMUS.Skip, IDMUS.Skip, IDMUS.Skip,
		ord.String.Skip, varint.Int.Skip, varint.Int.Skip, ord.String.Skip,
		vectorMUS.Skip, timeMUS.Skip, timeMUS.Skip,
	}
	var n1 int
	for _, skip := range skips {
		if n1, err = skip(bs[n:]); err != nil {
			return n + n1, err
		}
		n += n1
	}
	return n, nil
}

type documentSer struct{}

func (documentSer) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Source, bs[n:])
	n += varint.Int.Marshal(int(d.Status), bs[n:])
	n += ord.String.Marshal(d.PermissionTag, bs[n:])
	n += timeMUS.Marshal(d.InsertedAt, bs[n:])
	n += timeMUS.Marshal(d.UpdatedAt, bs[n:])
	return
}

func (documentSer) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	if d.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if d.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	var v int
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	d.Status = DocumentStatus(v)
	n += n1
	if d.PermissionTag, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.InsertedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	d.UpdatedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	return d, n + n1, err
}

func (documentSer) Size(d Document) int {
	return IDMUS.Size(d.Id) +
		ord.String.Size(d.Source) +
		varint.Int.Size(int(d.Status)) +
		ord.String.Size(d.PermissionTag) +
		timeMUS.Size(d.InsertedAt) +
		timeMUS.Size(d.UpdatedAt)
}

func (documentSer) Skip(bs []byte) (n int, err error) {
	skips := []func([]byte) (int, error){
		IDMUS.Skip, ord.String.Skip, varint.Int.Skip, ord.String.Skip,
		timeMUS.Skip, timeMUS.Skip,
	}
	var n1 int
	for _, skip := range skips {
		if n1, err = skip(bs[n:]); err != nil {
			return n + n1, err
		}
		n += n1
	}
	return n, nil
}

type segmentRefSer struct{}

func (segmentRefSer) Marshal(r SegmentRef, bs []byte) (n int) {
	n = IDMUS.Marshal(r.DocId, bs)
	n += IDMUS.Marshal(r.SegmentId, bs[n:])
	n += raw.Float64.Marshal(r.Score, bs[n:])
	return
}

func (segmentRefSer) Unmarshal(bs []byte) (r SegmentRef, n int, err error) {
	var n1 int
	if r.DocId, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if r.SegmentId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	r.Score, n1, err = raw.Float64.Unmarshal(bs[n:])
	return r, n + n1, err
}

func (segmentRefSer) Size(r SegmentRef) int {
	return IDMUS.Size(r.DocId) + IDMUS.Size(r.SegmentId) + raw.Float64.Size(r.Score)
}

func (segmentRefSer) Skip(bs []byte) (n int, err error) {
	var n1 int
	if n, err = IDMUS.Skip(bs); err != nil {
		return
	}
	if n1, err = IDMUS.Skip(bs[n:]); err != nil {
		return n + n1, err
	}
	n += n1
	n1, err = raw.Float64.Skip(bs[n:])
	return n + n1, err
}

type messageSer struct{}

func (messageSer) Marshal(m Message, bs []byte) (n int) {
	n = varint.Int.Marshal(int(m.Role), bs)
	n += ord.String.Marshal(m.Content, bs[n:])
	n += timeMUS.Marshal(m.Timestamp, bs[n:])
	n += refsMUS.Marshal(m.Refs, bs[n:])
	return
}

func (messageSer) Unmarshal(bs []byte) (m Message, n int, err error) {
	var v int
	if v, n, err = varint.Int.Unmarshal(bs); err != nil {
		return
	}
	m.Role = MessageRole(v)
	var n1 int
	if m.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return m, n + n1, err
	}
	n += n1
	if m.Timestamp, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return m, n + n1, err
	}
	n += n1
	m.Refs, n1, err = refsMUS.Unmarshal(bs[n:])
	return m, n + n1, err
}

func (messageSer) Size(m Message) int {
	return varint.Int.Size(int(m.Role)) +
		ord.String.Size(m.Content) +
		timeMUS.Size(m.Timestamp) +
		refsMUS.Size(m.Refs)
}

func (messageSer) Skip(bs []byte) (n int, err error) {
	skips := []func([]byte) (int, error){
		varint.Int.Skip, ord.String.Skip, timeMUS.Skip, refsMUS.Skip,
	}
	var n1 int
	for _, skip := range skips {
		if n1, err = skip(bs[n:]); err != nil {
			return n + n1, err
		}
		n += n1
	}
	return n, nil
}
