package core

import "slices"

// PermissionScope captures what a caller is allowed to see. A scope is either
// unrestricted (internal callers, maintenance jobs) or carries an explicit
// token list. The zero value is an empty scope that matches nothing beyond
// public content on an unrestricted document set.
//
// Visibility is an exact single-value match: content tagged with t is visible
// only to scopes holding t. Untagged content is public and visible to every
// scope. An unrestricted scope holds no tokens, so it sees public content on
// all documents but never tagged segments.
type PermissionScope struct {
	unrestricted bool
	tokens       []string
}

// UnrestrictedScope returns a scope that bypasses document filtering.
func UnrestrictedScope() PermissionScope {
	return PermissionScope{unrestricted: true}
}

// NewPermissionScope builds a scope from pre-normalized permission tokens.
// Use NormalizePermissionTokens to canonicalize raw caller input first.
func NewPermissionScope(tokens ...string) PermissionScope {
	return PermissionScope{tokens: slices.Clone(tokens)}
}

// IsUnrestricted reports whether the scope bypasses document filtering.
func (s PermissionScope) IsUnrestricted() bool {
	return s.unrestricted
}

// IsEmpty reports whether the scope grants access to no documents at all.
func (s PermissionScope) IsEmpty() bool {
	return !s.unrestricted && len(s.tokens) == 0
}

// Tokens returns a copy of the scope's token list.
func (s PermissionScope) Tokens() []string {
	return slices.Clone(s.tokens)
}

// Allows reports whether content carrying the given permission tag is visible
// to this scope. The empty tag is public and always allowed.
func (s PermissionScope) Allows(tag string) bool {
	if tag == "" {
		return true
	}
	return slices.Contains(s.tokens, tag)
}

// SegmentFilter restricts index lookups to an allowed document set plus a
// segment-level permission check. Retrieval stages apply it before scoring so
// forbidden content never enters the pipeline.
type SegmentFilter struct {
	allowedDocs map[ID]struct{}
	scope       PermissionScope
}

// NewSegmentFilter builds a filter from a scope and a resolved document
// allow-list. A nil allow-list means no document restriction (used with
// unrestricted scopes); an empty non-nil list matches no documents.
func NewSegmentFilter(scope PermissionScope, allowedDocs []ID) SegmentFilter {
	f := SegmentFilter{scope: scope}
	if allowedDocs != nil {
		f.allowedDocs = make(map[ID]struct{}, len(allowedDocs))
		for _, id := range allowedDocs {
			f.allowedDocs[id] = struct{}{}
		}
	}
	return f
}

// Scope returns the permission scope the filter was built from.
func (f SegmentFilter) Scope() PermissionScope {
	return f.scope
}

// Match reports whether a segment passes both the document allow-list and the
// segment-level permission check.
func (f SegmentFilter) Match(segment *Segment) bool {
	if segment == nil {
		return false
	}
	return f.MatchTag(segment.DocId, segment.PermissionTag)
}

// MatchTag is Match for callers that already hold the identity and tag.
func (f SegmentFilter) MatchTag(docID ID, tag string) bool {
	if f.allowedDocs != nil {
		if _, ok := f.allowedDocs[docID]; !ok {
			return false
		}
	}
	return f.scope.Allows(tag)
}
