package exec

import (
	"github.com/google/btree"

	"github.com/block/sortedview/pkg/order"
)

// exemplarCache is a bounded "≤2 recent TKs" lookup: when emitting a
// content add-instruction, PreserveKeyValues needs a representative prior
// value for the same TargetKey. A btree keeps lookups ordered and cheap
// even though the cache never holds more than two entries.
type exemplarCache[TK, TV any] struct {
	tree *btree.BTreeG[*exemplarEntry[TK, TV]]
	cmp  order.Comparator[TK]
	seq  int
}

type exemplarEntry[TK, TV any] struct {
	key   TK
	value TV
	seq   int
}

const exemplarCacheCapacity = 2

func newExemplarCache[TK, TV any](cmp order.Comparator[TK]) *exemplarCache[TK, TV] {
	less := func(a, b *exemplarEntry[TK, TV]) bool { return cmp(a.key, b.key) < 0 }
	return &exemplarCache[TK, TV]{tree: btree.NewG[*exemplarEntry[TK, TV]](8, less), cmp: cmp}
}

func (c *exemplarCache[TK, TV]) Put(key TK, value TV) {
	c.seq++
	probe := &exemplarEntry[TK, TV]{key: key}
	if existing, ok := c.tree.Get(probe); ok {
		existing.value = value
		existing.seq = c.seq
		return
	}
	c.tree.ReplaceOrInsert(&exemplarEntry[TK, TV]{key: key, value: value, seq: c.seq})
	if c.tree.Len() > exemplarCacheCapacity {
		c.evictOldest()
	}
}

func (c *exemplarCache[TK, TV]) Get(key TK) (TV, bool) {
	var zero TV
	probe := &exemplarEntry[TK, TV]{key: key}
	if e, ok := c.tree.Get(probe); ok {
		return e.value, true
	}
	return zero, false
}

func (c *exemplarCache[TK, TV]) evictOldest() {
	var oldest *exemplarEntry[TK, TV]
	c.tree.Ascend(func(e *exemplarEntry[TK, TV]) bool {
		if oldest == nil || e.seq < oldest.seq {
			oldest = e
		}
		return true
	})
	if oldest != nil {
		c.tree.Delete(oldest)
	}
}
