package domain

import (
	"fmt"
	"strings"
)

// KeySeparator delimits segments in the canonical string form of a QueryKey.
const KeySeparator = "::"

// QueryKey identifies a cached resource view. Segments are ordered and
// hierarchical: the first segment names the resource family, later segments
// narrow the scope (event id, user id, page qualifiers). Keys that share a
// prefix belong to the same invalidation family.
type QueryKey []string

// K builds a QueryKey from plain segments.
func K(segments ...string) QueryKey {
	return QueryKey(segments)
}

// Param encodes a named qualifier segment, e.g. Param("page", 1) -> "page=1".
func Param(name string, value any) string {
	return fmt.Sprintf("%s=%v", name, value)
}

// String returns the canonical form used as a map key.
func (k QueryKey) String() string {
	return strings.Join(k, KeySeparator)
}

// Family returns the resource family segment, or "" for an empty key.
func (k QueryKey) Family() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// Equal reports structural (deep value) equality.
func (k QueryKey) Equal(other QueryKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether k starts with every segment of prefix.
func (k QueryKey) HasPrefix(prefix QueryKey) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the key.
func (k QueryKey) Clone() QueryKey {
	out := make(QueryKey, len(k))
	copy(out, k)
	return out
}

// KeyPattern matches keys by prefix, optionally refined by a predicate.
// A zero predicate means prefix match alone decides.
type KeyPattern struct {
	Prefix    QueryKey
	Predicate func(QueryKey) bool
}

// Matches reports whether the pattern covers the given key.
func (p KeyPattern) Matches(k QueryKey) bool {
	if !k.HasPrefix(p.Prefix) {
		return false
	}
	if p.Predicate != nil {
		return p.Predicate(k)
	}
	return true
}
