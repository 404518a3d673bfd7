package rowio

import (
	"context"
	"io"
)

// Stream is a seekable, read-write, truncatable byte stream of unbounded
// size. Persisted objects and temporary spill files both satisfy it.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
	Truncate(size int64) error
}

// TempStreamFactory hands out fresh, isolated temporary streams scoped to a
// single production; the label is diagnostic only.
type TempStreamFactory interface {
	New(label string) (Stream, error)
}

// Writer appends row groups to a stream opened for writing and finalizes it.
// Finish must reposition the stream to offset 0 so it can be reopened for
// reading without the caller needing to know the encoding.
type Writer[T any] interface {
	Add(ctx context.Context, batch []T) error
	Finish(ctx context.Context) error
}

// Serializer is the serialization façade: a pluggable codec for one record
// type T, agnostic to sort order (callers are responsible for feeding
// Write pre-sorted batches when that matters) and to the concrete
// columnar/binary format underneath, which lives in sibling `serialize/`
// packages. Serializer never closes the streams it is handed — the caller
// that opened or allocated stream also owns closing it, in both Read and
// Write, since some callers (the external sorter) reopen the same stream
// for multiple reads and must control its lifetime themselves.
type Serializer[T any] interface {
	// Read returns a Cursor over stream's rows. A zero-length stream yields
	// an already-exhausted cursor rather than an error.
	Read(ctx context.Context, stream Stream) (Cursor[T], error)
	// Write returns a Writer bound to stream.
	Write(stream Stream) Writer[T]
}
