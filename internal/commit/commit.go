// Package commit defines the immutable commit record and its payload value
// model: a sealed, float-free value type, RFC 8785 canonical JSON, and
// content-derived refs. Everything downstream (log, projectors, durable
// store) builds on the guarantee that a commit serializes identically on
// every replay.
package commit

import (
	"slices"
	"time"
)

// Type tags a commit with its domain semantics (e.g. "WORKZONE_DEFINE").
type Type string

// Commit is the atomic unit of truth in a filament. Once stored it never
// changes; the log hands out deep clones so holders cannot reach shared
// payload state.
type Commit struct {
	// Ref is derived from (EntityID, Index) via Ref(); globally unique.
	Ref string
	// EntityID is the owning filament.
	EntityID string
	// Index is the position within the entity's sequence, starting at 1.
	// Strictly increasing, gapless, never reused.
	Index uint64
	// Type identifies the commit's semantics.
	Type Type
	// Timestamp is assigned on append; non-decreasing within an entity.
	Timestamp time.Time
	// AuthorRef identifies the responsible actor (user, service, evaluator).
	AuthorRef string
	// Payload holds domain data. Deep-immutable once stored.
	Payload Object
	// CausalRefs links to upstream commit refs establishing provenance.
	CausalRefs []string
}

// Proposed is what a caller submits to the log. Ref, Index, and Timestamp
// are assigned by the log during append and cannot be supplied.
type Proposed struct {
	Type       Type
	AuthorRef  string
	Payload    Object
	CausalRefs []string
}

// Clone returns a deep copy of the commit. Payload and CausalRefs are
// copied; scalar fields are values already.
func (c Commit) Clone() Commit {
	out := c
	out.Payload = c.Payload.Clone()
	out.CausalRefs = slices.Clone(c.CausalRefs)
	return out
}

// CanonicalBytes serializes the commit for replay comparison and hashing.
// Timestamps are encoded as Unix microseconds to avoid locale/format drift.
func (c Commit) CanonicalBytes() ([]byte, error) {
	obj := Object{
		"ref":          String(c.Ref),
		"entity_id":    String(c.EntityID),
		"commit_index": Int(c.Index),
		"type":         String(c.Type),
		"timestamp_us": Int(c.Timestamp.UnixMicro()),
		"author_ref":   String(c.AuthorRef),
	}
	if c.Payload != nil {
		obj["payload"] = c.Payload
	}
	if len(c.CausalRefs) > 0 {
		refs := make(Array, len(c.CausalRefs))
		for i, r := range c.CausalRefs {
			refs[i] = String(r)
		}
		obj["causal_refs"] = refs
	}
	return MarshalCanonical(obj)
}

// StringField returns the named top-level payload field if it is a string.
func (c Commit) StringField(key string) (string, bool) {
	if c.Payload == nil {
		return "", false
	}
	s, ok := c.Payload[key].(String)
	return string(s), ok
}

// IntField returns the named top-level payload field if it is an integer.
func (c Commit) IntField(key string) (int64, bool) {
	if c.Payload == nil {
		return 0, false
	}
	n, ok := c.Payload[key].(Int)
	return int64(n), ok
}
