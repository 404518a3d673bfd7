package instr

import (
	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
)

// boundedValues is the single-use bounded sequence passed to Produce: it
// exposes the Value of the current source update and every following one
// sharing the same key, reading from — and advancing — the shared outer
// updates cursor. It stops the instant the key changes or the outer cursor
// is exhausted, and never outlives the Produce call that receives it: a
// finite-state object, not a lazy view.
type boundedValues[SK, SV any] struct {
	cur       rowio.Cursor[view.SourceUpdate[SK, SV]]
	key       SK
	cmp       order.Comparator[SK]
	exhausted bool
}

func newBoundedValues[SK, SV any](cur rowio.Cursor[view.SourceUpdate[SK, SV]], key SK, cmp order.Comparator[SK]) *boundedValues[SK, SV] {
	return &boundedValues[SK, SV]{cur: cur, key: key, cmp: cmp}
}

func (b *boundedValues[SK, SV]) Valid() bool {
	return !b.exhausted && b.cur.Valid() && b.cmp(b.cur.Value().Key, b.key) == 0
}

func (b *boundedValues[SK, SV]) Value() SV {
	var zero SV
	if !b.Valid() {
		return zero
	}
	return b.cur.Value().Value
}

func (b *boundedValues[SK, SV]) Next() error {
	if err := b.cur.Next(); err != nil {
		b.exhausted = true
		return err
	}
	if !b.cur.Valid() || b.cmp(b.cur.Value().Key, b.key) != 0 {
		b.exhausted = true
	}
	return nil
}

func (b *boundedValues[SK, SV]) Close() error { return nil }

// Exhausted reports whether Produce drove this sequence to its natural end
// (key boundary or outer-cursor exhaustion). If false when Produce returns,
// the caller failed to consume its input (ErrProducerUnderconsumed).
func (b *boundedValues[SK, SV]) Exhausted() bool { return b.exhausted }
