package stage

import (
	"context"

	"github.com/block/sortedview/pkg/rowio"
)

// bufferedSink batches individual rows into row-group-sized writes, the
// same rowsPerGroup granularity the serialization façade documents (spec
// §4.1), so the executors can emit one row at a time without forcing a
// syscall per row.
type bufferedSink[T any] struct {
	w     rowio.Writer[T]
	batch []T
	size  int
}

func newBufferedSink[T any](w rowio.Writer[T], size int) *bufferedSink[T] {
	if size <= 0 {
		size = 1
	}
	return &bufferedSink[T]{w: w, size: size}
}

func (b *bufferedSink[T]) Add(ctx context.Context, row T) error {
	b.batch = append(b.batch, row)
	if len(b.batch) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *bufferedSink[T]) flush(ctx context.Context) error {
	if len(b.batch) == 0 {
		return nil
	}
	if err := b.w.Add(ctx, b.batch); err != nil {
		return err
	}
	b.batch = b.batch[:0]
	return nil
}

func (b *bufferedSink[T]) Finish(ctx context.Context) error {
	if err := b.flush(ctx); err != nil {
		return err
	}
	return b.w.Finish(ctx)
}
