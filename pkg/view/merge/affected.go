package merge

import (
	"context"
	"fmt"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/sortedio"
	"github.com/block/sortedview/pkg/view"
)

const affectedKeysBatchSize = 1024

// keyCursor projects a SourceUpdate cursor down to its Key column, the only
// part the affected-keys pass needs.
type keyCursor[K, V any] struct {
	inner rowio.Cursor[view.SourceUpdate[K, V]]
}

func (c *keyCursor[K, V]) Valid() bool { return c.inner.Valid() }
func (c *keyCursor[K, V]) Value() K    { return c.inner.Value().Key }
func (c *keyCursor[K, V]) Next() error { return c.inner.Next() }
func (c *keyCursor[K, V]) Close() error { return c.inner.Close() }

// dedupKeyCursor collapses adjacent equal keys from an already-sorted Cursor.
type dedupKeyCursor[K any] struct {
	cmp   order.Comparator[K]
	inner rowio.Cursor[K]
}

func (d *dedupKeyCursor[K]) Valid() bool { return d.inner.Valid() }
func (d *dedupKeyCursor[K]) Value() K    { return d.inner.Value() }
func (d *dedupKeyCursor[K]) Close() error { return d.inner.Close() }
func (d *dedupKeyCursor[K]) Next() error {
	prev := d.inner.Value()
	if err := d.inner.Next(); err != nil {
		return err
	}
	for d.inner.Valid() && d.cmp(d.inner.Value(), prev) == 0 {
		if err := d.inner.Next(); err != nil {
			return err
		}
	}
	return nil
}

// buildAffectedKeys k-way merges every feeder's Updates key column,
// deduplicates adjacent duplicates, and persists the result so each
// feeder's augmentation pass can reopen it independently.
func buildAffectedKeys[K, V any](ctx context.Context, feeders []Feeder[K, V], opts Options[K]) (rowio.Stream, error) {
	cursors := make([]rowio.Cursor[K], 0, len(feeders))
	for _, f := range feeders {
		updates, err := f.Updates(ctx)
		if err != nil {
			return nil, fmt.Errorf("open feeder updates: %w", err)
		}
		cursors = append(cursors, &keyCursor[K, V]{inner: updates})
	}

	merged, err := sortedio.MergeCursors(opts.Comparator, cursors)
	if err != nil {
		return nil, fmt.Errorf("k-way merge update keys: %w", err)
	}
	deduped := &dedupKeyCursor[K]{cmp: opts.Comparator, inner: merged}

	stream, err := opts.Temps.New("affected-keys")
	if err != nil {
		return nil, fmt.Errorf("allocate affected-keys stream: %w", err)
	}
	w := opts.KeySerializer.Write(stream)
	batch := make([]K, 0, affectedKeysBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.Add(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}
	for deduped.Valid() {
		if err := ctx.Err(); err != nil {
			stream.Close()
			return nil, err
		}
		batch = append(batch, deduped.Value())
		if len(batch) == affectedKeysBatchSize {
			if err := flush(); err != nil {
				stream.Close()
				return nil, err
			}
		}
		if err := deduped.Next(); err != nil {
			stream.Close()
			return nil, err
		}
	}
	if err := flush(); err != nil {
		stream.Close()
		return nil, err
	}
	if err := w.Finish(ctx); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

func reopenAffectedKeys[K any](ctx context.Context, stream rowio.Stream, serializer rowio.Serializer[K]) (rowio.Cursor[K], error) {
	if _, err := stream.Seek(0, 0); err != nil {
		return nil, err
	}
	return serializer.Read(ctx, stream)
}
