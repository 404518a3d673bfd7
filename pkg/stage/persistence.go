// Package stage implements the stage façade: it owns the stage identity,
// its persistence adapter, the user Produce function, and drives a
// single-stage production end to end — from opening the prior version's
// streams through uploading the next.
package stage

import (
	"context"

	"github.com/block/sortedview/pkg/rowio"
)

// StreamType names which of a stage's three persisted streams is being
// addressed.
type StreamType int

const (
	StreamKeyMappings StreamType = iota
	StreamContent
	StreamUpdates
)

func (t StreamType) String() string {
	switch t {
	case StreamKeyMappings:
		return "KeyMappings"
	case StreamContent:
		return "Content"
	case StreamUpdates:
		return "Updates"
	default:
		return "Unknown"
	}
}

// Persistence is the engine's only I/O boundary. OpenRead must return an
// already-empty stream, not an error, when the named object does not exist
// — version 0 has no prior streams at all. Upload deletes any existing
// object when stream has zero length, otherwise persists it in full; it
// takes ownership of stream and closes it before returning, regardless of
// outcome.
type Persistence interface {
	OpenRead(ctx context.Context, name string, typ StreamType, version int) (rowio.Stream, error)
	Upload(ctx context.Context, name string, typ StreamType, version int, stream rowio.Stream) error
}
