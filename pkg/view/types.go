// Package view holds the data model shared by every stage of the sorted
// materialized-view engine: source updates, content rows, key mappings, and
// the internal instruction records the executor consumes.
package view

import (
	"context"

	"github.com/block/sortedview/pkg/rowio"
)

// UpdateType classifies a SourceUpdate or an Updates-stream row.
type UpdateType int

const (
	Add UpdateType = iota
	Update
	Delete
)

func (t UpdateType) String() string {
	switch t {
	case Add:
		return "Add"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// SourceUpdate is an externally supplied (or republished) change: Value is
// ignored when Type is Delete. The stream carrying these must be sorted by
// Key, and per key must be either exactly one Delete or one-or-more
// non-delete rows — never a mix.
type SourceUpdate[K, V any] struct {
	Type  UpdateType
	Key   K
	Value V
}

// ContentRecord is one row of a stage's persisted view: TargetKey and
// SourceKey together trace provenance, Value is the target-side payload.
// Duplicates are not deduplicated — if Produce emits the same (TK,SK,TV)
// twice, both rows survive.
type ContentRecord[TK, SK, TV any] struct {
	TargetKey TK
	SourceKey SK
	Value     TV
}

// KeyMapping is one row of the auxiliary SK→TK index; its (SK,TK) multiset
// must always equal the (SK,TK) projection of Content.
type KeyMapping[SK, TK any] struct {
	SourceKey SK
	TargetKey TK
}

// ContentInstruction is an internal, ephemeral record describing a pending
// change to Content: a deletion of an existing (TK,SK) row, or an addition
// carrying a new value.
type ContentInstruction[TK, SK, TV any] struct {
	TargetKey TK
	SourceKey SK
	Value     TV
	Deletion  bool
}

// KeyMappingInstruction is the KeyMappings-side counterpart of
// ContentInstruction.
type KeyMappingInstruction[SK, TK any] struct {
	SourceKey SK
	TargetKey TK
	Deletion  bool
}

// TargetPair is one (TK,TV) row yielded by a user Produce function.
type TargetPair[TK, TV any] struct {
	Key   TK
	Value TV
}

// Produce is the user contract for turning one source key's values into
// target rows: given a source key and a single-use sequence of every value
// sharing it, yield zero or more target pairs. Implementations must fully
// drain values before the returned Cursor is exhausted (callers detect
// under-consumption via ErrProducerUnderconsumed) and must not retain
// values past return.
type Produce[SK, SV, TK, TV any] func(ctx context.Context, key SK, values rowio.Cursor[SV]) (rowio.Cursor[TargetPair[TK, TV]], error)
