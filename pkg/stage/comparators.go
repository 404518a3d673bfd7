package stage

import (
	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/view"
)

func contentInstructionComparator[TK, SK, TV any](cmpTK order.Comparator[TK], cmpSK order.Comparator[SK]) order.Comparator[view.ContentInstruction[TK, SK, TV]] {
	byTK := order.Field(func(c view.ContentInstruction[TK, SK, TV]) TK { return c.TargetKey }, cmpTK)
	bySK := order.Field(func(c view.ContentInstruction[TK, SK, TV]) SK { return c.SourceKey }, cmpSK)
	return order.Then(byTK, bySK)
}

func mappingInstructionComparator[SK, TK any](cmpSK order.Comparator[SK], cmpTK order.Comparator[TK]) order.Comparator[view.KeyMappingInstruction[SK, TK]] {
	bySK := order.Field(func(m view.KeyMappingInstruction[SK, TK]) SK { return m.SourceKey }, cmpSK)
	byTK := order.Field(func(m view.KeyMappingInstruction[SK, TK]) TK { return m.TargetKey }, cmpTK)
	return order.Then(bySK, byTK)
}
