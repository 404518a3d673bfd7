package exec

import "github.com/block/sortedview/pkg/order"

// tkWindow is a rolling two-slot window of recent instruction target keys:
// two slots only, writing shifts left on a distinct new key and is a no-op
// when the new key matches the current one.
type tkWindow[TK any] struct {
	cmp        order.Comparator[TK]
	prev, cur  TK
	hasPrev    bool
	hasCur     bool
}

func newTKWindow[TK any](cmp order.Comparator[TK]) *tkWindow[TK] {
	return &tkWindow[TK]{cmp: cmp}
}

func (w *tkWindow[TK]) push(k TK) {
	if w.hasCur && w.cmp(k, w.cur) == 0 {
		return
	}
	w.prev, w.hasPrev = w.cur, w.hasCur
	w.cur, w.hasCur = k, true
}

func (w *tkWindow[TK]) contains(k TK) bool {
	if w.hasCur && w.cmp(k, w.cur) == 0 {
		return true
	}
	if w.hasPrev && w.cmp(k, w.prev) == 0 {
		return true
	}
	return false
}
