package merge

import (
	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
)

// augmentedCursor augments one feeder against the shared affected-keys
// stream: walking it, the feeder yields its own Updates verbatim for keys
// it touched, and its Content rows reshaped into non-delete updates for
// keys it did not touch but that some other feeder affected.
type augmentedCursor[K, V any] struct {
	cmp      order.Comparator[K]
	affected rowio.Cursor[K]
	updates  rowio.Cursor[view.SourceUpdate[K, V]]
	content  rowio.Cursor[ContentEntry[K, V]]

	queue []view.SourceUpdate[K, V]
	pos   int
}

func newAugmentedCursor[K, V any](
	cmp order.Comparator[K],
	affected rowio.Cursor[K],
	updates rowio.Cursor[view.SourceUpdate[K, V]],
	content rowio.Cursor[ContentEntry[K, V]],
) (*augmentedCursor[K, V], error) {
	a := &augmentedCursor[K, V]{cmp: cmp, affected: affected, updates: updates, content: content}
	if err := a.fill(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *augmentedCursor[K, V]) fill() error {
	a.queue = a.queue[:0]
	a.pos = 0
	for len(a.queue) == 0 && a.affected.Valid() {
		k := a.affected.Value()
		if err := a.affected.Next(); err != nil {
			return err
		}

		for a.updates.Valid() && a.cmp(a.updates.Value().Key, k) < 0 {
			if err := a.updates.Next(); err != nil {
				return err
			}
		}
		if a.updates.Valid() && a.cmp(a.updates.Value().Key, k) == 0 {
			for a.updates.Valid() && a.cmp(a.updates.Value().Key, k) == 0 {
				a.queue = append(a.queue, a.updates.Value())
				if err := a.updates.Next(); err != nil {
					return err
				}
			}
			continue
		}

		for a.content.Valid() && a.cmp(a.content.Value().TargetKey, k) < 0 {
			if err := a.content.Next(); err != nil {
				return err
			}
		}
		for a.content.Valid() && a.cmp(a.content.Value().TargetKey, k) == 0 {
			e := a.content.Value()
			a.queue = append(a.queue, view.SourceUpdate[K, V]{Type: view.Update, Key: e.TargetKey, Value: e.Value})
			if err := a.content.Next(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *augmentedCursor[K, V]) Valid() bool                     { return a.pos < len(a.queue) }
func (a *augmentedCursor[K, V]) Value() view.SourceUpdate[K, V] { return a.queue[a.pos] }

func (a *augmentedCursor[K, V]) Next() error {
	a.pos++
	if a.pos >= len(a.queue) {
		return a.fill()
	}
	return nil
}

func (a *augmentedCursor[K, V]) Close() error {
	var firstErr error
	if err := a.affected.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.updates.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.content.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
