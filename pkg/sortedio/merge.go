package sortedio

import (
	"container/heap"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
)

// MergeCursors k-way merges already-open, individually sorted cursors into
// one Cursor ordered by cmp. It backs both the Sorter's own multi-batch Read
// and the multi-source merger's global merge step.
func MergeCursors[T any](cmp order.Comparator[T], cursors []rowio.Cursor[T]) (rowio.Cursor[T], error) {
	h := &mergeHeap[T]{cmp: cmp}
	heap.Init(h)
	for i, cur := range cursors {
		if cur.Valid() {
			heap.Push(h, &mergeItem[T]{value: cur.Value(), source: i, cur: cur})
			continue
		}
		// Already exhausted before the first pull: never sits in the heap,
		// so close it now or it is never closed at all.
		if err := cur.Close(); err != nil {
			return nil, err
		}
	}
	mc := &mergeCursor[T]{h: h}
	mc.pull()
	if mc.err != nil {
		return nil, mc.err
	}
	return mc, nil
}

type mergeItem[T any] struct {
	value  T
	source int
	cur    rowio.Cursor[T]
}

type mergeHeap[T any] struct {
	items []*mergeItem[T]
	cmp   order.Comparator[T]
}

func (h *mergeHeap[T]) Len() int { return len(h.items) }
func (h *mergeHeap[T]) Less(i, j int) bool {
	if c := h.cmp(h.items[i].value, h.items[j].value); c != 0 {
		return c < 0
	}
	// Stable tiebreak: prefer the lower source index so duplicate keys
	// drawn from an earlier-registered source (or an earlier-flushed sort
	// batch) keep coming out first.
	return h.items[i].source < h.items[j].source
}
func (h *mergeHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap[T]) Push(x any)    { h.items = append(h.items, x.(*mergeItem[T])) }
func (h *mergeHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// mergeCursor is the Cursor returned by MergeCursors: a k-way merge driven
// by a binary heap keyed on each source's head element.
type mergeCursor[T any] struct {
	h     *mergeHeap[T]
	valid bool
	value T
	err   error
}

func (m *mergeCursor[T]) pull() {
	if m.h.Len() == 0 {
		m.valid = false
		return
	}
	top := heap.Pop(m.h).(*mergeItem[T])
	m.valid = true
	m.value = top.value
	if err := top.cur.Next(); err != nil {
		m.err = err
		if cerr := top.cur.Close(); m.err == nil {
			m.err = cerr
		}
		return
	}
	if top.cur.Valid() {
		heap.Push(m.h, &mergeItem[T]{value: top.cur.Value(), source: top.source, cur: top.cur})
		return
	}
	// This source is exhausted: close it now rather than waiting for the
	// final Close(), which only reaches cursors still sitting in the heap.
	if err := top.cur.Close(); err != nil && m.err == nil {
		m.err = err
	}
}

func (m *mergeCursor[T]) Valid() bool { return m.valid }
func (m *mergeCursor[T]) Value() T    { return m.value }
func (m *mergeCursor[T]) Next() error {
	m.pull()
	return m.err
}
func (m *mergeCursor[T]) Close() error {
	var firstErr error
	for _, it := range m.h.items {
		if err := it.cur.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
