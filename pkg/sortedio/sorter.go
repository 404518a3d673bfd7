// Package sortedio implements an external merge-sorter: a bounded
// in-memory buffer that spills sorted batches to temporary streams and, on
// Read, k-way merges them back into one globally sorted Cursor.
package sortedio

import (
	"context"
	"fmt"
	"sort"

	"github.com/siddontang/loggers"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
)

const (
	// DefaultRowsPerGroup mirrors the row-group size of the serialization
	// façade.
	DefaultRowsPerGroup = 100_000
	// DefaultGroupsPerBatch caps each spilled batch at 2,000,000 rows
	// (rowsPerGroup × groupsPerBatch).
	DefaultGroupsPerBatch = 20
)

// Options configures a Sorter.
type Options struct {
	RowsPerGroup   int
	GroupsPerBatch int
	Logger         loggers.Advanced
}

// NewOptions returns the recommended defaults.
func NewOptions() *Options {
	return &Options{
		RowsPerGroup:   DefaultRowsPerGroup,
		GroupsPerBatch: DefaultGroupsPerBatch,
	}
}

func (o *Options) capacity() int {
	if o.RowsPerGroup <= 0 || o.GroupsPerBatch <= 0 {
		return DefaultRowsPerGroup * DefaultGroupsPerBatch
	}
	return o.RowsPerGroup * o.GroupsPerBatch
}

// batchSource produces a fresh Cursor over one already-sorted batch. Spilled
// batches reopen their backing stream; the final unflushed buffer is served
// directly from memory.
type batchSource[T any] func(ctx context.Context) (rowio.Cursor[T], error)

// Sorter buffers up to Options.RowsPerGroup×GroupsPerBatch records, sorts
// each overflow batch in memory, and spills it to a temporary stream. Zero
// value is not usable; construct with New.
type Sorter[T any] struct {
	cmp        order.Comparator[T]
	serializer rowio.Serializer[T]
	temps      rowio.TempStreamFactory
	opts       *Options

	buffer  []T
	batches []batchSource[T]
	streams []rowio.Stream // spilled streams, kept for disposal
	label   string
	nth     int

	read bool // Read() has been called; Add/Finish are no longer valid
}

// New constructs a Sorter that will order records by cmp. label is a
// diagnostic prefix for the temporary streams it allocates.
func New[T any](cmp order.Comparator[T], serializer rowio.Serializer[T], temps rowio.TempStreamFactory, opts *Options, label string) *Sorter[T] {
	if opts == nil {
		opts = NewOptions()
	}
	return &Sorter[T]{
		cmp:        cmp,
		serializer: serializer,
		temps:      temps,
		opts:       opts,
		label:      label,
	}
}

// Add appends one record to the buffer, spilling a sorted batch to a
// temporary stream once the buffer reaches capacity.
func (s *Sorter[T]) Add(ctx context.Context, record T) error {
	if s.read {
		return fmt.Errorf("sortedio: Add called after Read")
	}
	s.buffer = append(s.buffer, record)
	if len(s.buffer) >= s.opts.capacity() {
		return s.flush(ctx)
	}
	return nil
}

func (s *Sorter[T]) flush(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}
	sort.SliceStable(s.buffer, func(i, j int) bool { return s.cmp(s.buffer[i], s.buffer[j]) < 0 })

	s.nth++
	stream, err := s.temps.New(fmt.Sprintf("%s-batch-%d", s.label, s.nth))
	if err != nil {
		return fmt.Errorf("sortedio: allocate temp stream: %w", err)
	}
	w := s.serializer.Write(stream)
	if err := w.Add(ctx, s.buffer); err != nil {
		return fmt.Errorf("sortedio: write batch: %w", err)
	}
	if err := w.Finish(ctx); err != nil {
		return fmt.Errorf("sortedio: finish batch: %w", err)
	}
	s.streams = append(s.streams, stream)
	s.batches = append(s.batches, func(ctx context.Context) (rowio.Cursor[T], error) {
		if _, err := stream.Seek(0, 0); err != nil {
			return nil, err
		}
		return s.serializer.Read(ctx, stream)
	})
	s.buffer = nil
	return nil
}

// Finish closes the Add phase. The caller must call Finish before Read.
func (s *Sorter[T]) Finish(ctx context.Context) error {
	if s.read {
		return fmt.Errorf("sortedio: Finish called after Read")
	}
	if len(s.buffer) == 0 {
		return nil
	}
	sort.SliceStable(s.buffer, func(i, j int) bool { return s.cmp(s.buffer[i], s.buffer[j]) < 0 })
	pending := s.buffer
	s.buffer = nil
	s.batches = append(s.batches, func(context.Context) (rowio.Cursor[T], error) {
		return rowio.NewSliceCursor(pending), nil
	})
	return nil
}

// Read yields every added record in comparator order: directly if there is
// at most one batch, or via a k-way merge across all spilled batches
// otherwise. Read may only be called once, after Finish.
func (s *Sorter[T]) Read(ctx context.Context) (rowio.Cursor[T], error) {
	s.read = true
	switch len(s.batches) {
	case 0:
		return rowio.Empty[T](), nil
	case 1:
		return s.batches[0](ctx)
	default:
		cursors := make([]rowio.Cursor[T], 0, len(s.batches))
		for _, src := range s.batches {
			cur, err := src(ctx)
			if err != nil {
				return nil, err
			}
			cursors = append(cursors, cur)
		}
		return MergeCursors(s.cmp, cursors)
	}
}

// Close releases every temporary stream this Sorter allocated. Safe to call
// multiple times and on every exit path, including after a failed Add or
// Finish.
func (s *Sorter[T]) Close() error {
	var firstErr error
	for _, st := range s.streams {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.streams = nil
	s.batches = nil
	s.buffer = nil
	return firstErr
}

