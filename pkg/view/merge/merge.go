// Package merge implements the multi-source merger: it presents a
// downstream stage with one ordered source-update stream derived from N
// feeders, each contributing its own Updates and Content.
package merge

import (
	"context"
	"fmt"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/sortedio"
	"github.com/block/sortedview/pkg/view"
)

// ContentEntry is a feeder's Content row projected down to what the merger
// needs for promotion: the target key and value, stripped of source-key
// provenance (the downstream stage has no use for an upstream's SK).
type ContentEntry[K, V any] struct {
	TargetKey K
	Value     V
}

// Feeder is one upstream contributor to a multi-source merge. Updates and
// Content each open a fresh Cursor on demand, since the affected-keys pass
// and the augmentation pass both need independent reads of the same
// persisted streams.
type Feeder[K, V any] struct {
	Updates func(ctx context.Context) (rowio.Cursor[view.SourceUpdate[K, V]], error)
	Content func(ctx context.Context) (rowio.Cursor[ContentEntry[K, V]], error)
}

// Options configures Merge.
type Options[K any] struct {
	Comparator    order.Comparator[K]
	KeySerializer rowio.Serializer[K]
	Temps         rowio.TempStreamFactory
}

// Merge builds the affected-keys set, augments each feeder against it, and
// k-way merges the result through the delta deduplicator. The returned
// Cursor's Close releases the affected-keys temporary stream along with
// every feeder cursor it opened.
func Merge[K, V any](ctx context.Context, feeders []Feeder[K, V], opts Options[K]) (rowio.Cursor[view.SourceUpdate[K, V]], error) {
	stream, err := buildAffectedKeys(ctx, feeders, opts)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	augmented := make([]rowio.Cursor[view.SourceUpdate[K, V]], 0, len(feeders))
	closeAugmented := func() {
		for _, c := range augmented {
			c.Close()
		}
	}

	for _, f := range feeders {
		affectedCur, err := reopenAffectedKeys[K](ctx, stream, opts.KeySerializer)
		if err != nil {
			closeAugmented()
			stream.Close()
			return nil, fmt.Errorf("merge: reopen affected keys: %w", err)
		}
		updatesCur, err := f.Updates(ctx)
		if err != nil {
			closeAugmented()
			stream.Close()
			return nil, fmt.Errorf("merge: open feeder updates: %w", err)
		}
		contentCur, err := f.Content(ctx)
		if err != nil {
			closeAugmented()
			stream.Close()
			return nil, fmt.Errorf("merge: open feeder content: %w", err)
		}
		ac, err := newAugmentedCursor(opts.Comparator, affectedCur, updatesCur, contentCur)
		if err != nil {
			closeAugmented()
			stream.Close()
			return nil, fmt.Errorf("merge: augment feeder: %w", err)
		}
		augmented = append(augmented, ac)
	}

	merged, err := sortedio.MergeCursors(opts.Comparator, augmented)
	if err != nil {
		closeAugmented()
		stream.Close()
		return nil, fmt.Errorf("merge: global merge: %w", err)
	}

	d, err := newDedupDeltaCursor(opts.Comparator, merged, stream)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("merge: %w", err)
	}
	return d, nil
}
