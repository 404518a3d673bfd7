package merge

import (
	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
)

// dedupDeltaCursor deduplicates the delta produced by the global merge:
// within a group of equal keys, if any non-delete survives, every
// non-delete is emitted and deletes in the group are suppressed; if the
// group is all-deletes, exactly one Delete is emitted. Also owns the
// affected-keys temporary stream, released on Close.
type dedupDeltaCursor[K, V any] struct {
	cmp            order.Comparator[K]
	inner          rowio.Cursor[view.SourceUpdate[K, V]]
	affectedStream rowio.Stream

	queue []view.SourceUpdate[K, V]
	pos   int
}

func newDedupDeltaCursor[K, V any](cmp order.Comparator[K], inner rowio.Cursor[view.SourceUpdate[K, V]], affectedStream rowio.Stream) (*dedupDeltaCursor[K, V], error) {
	d := &dedupDeltaCursor[K, V]{cmp: cmp, inner: inner, affectedStream: affectedStream}
	if err := d.fill(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dedupDeltaCursor[K, V]) fill() error {
	d.queue = d.queue[:0]
	d.pos = 0
	if !d.inner.Valid() {
		return nil
	}

	key := d.inner.Value().Key
	var nonDeletes []view.SourceUpdate[K, V]
	sawDelete := false
	for d.inner.Valid() && d.cmp(d.inner.Value().Key, key) == 0 {
		u := d.inner.Value()
		if u.Type == view.Delete {
			sawDelete = true
		} else {
			nonDeletes = append(nonDeletes, u)
		}
		if err := d.inner.Next(); err != nil {
			return err
		}
	}

	switch {
	case len(nonDeletes) > 0:
		d.queue = nonDeletes
	case sawDelete:
		d.queue = append(d.queue, view.SourceUpdate[K, V]{Type: view.Delete, Key: key})
	}
	return nil
}

func (d *dedupDeltaCursor[K, V]) Valid() bool                     { return d.pos < len(d.queue) }
func (d *dedupDeltaCursor[K, V]) Value() view.SourceUpdate[K, V] { return d.queue[d.pos] }

func (d *dedupDeltaCursor[K, V]) Next() error {
	d.pos++
	if d.pos >= len(d.queue) {
		return d.fill()
	}
	return nil
}

func (d *dedupDeltaCursor[K, V]) Close() error {
	err := d.inner.Close()
	if cerr := d.affectedStream.Close(); err == nil {
		err = cerr
	}
	return err
}
