package exec

import (
	"context"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
)

// ExecuteMappings performs the §4.5 reconciliation: a sorted merge of
// priorMappings and mappingInstructions under (SK,TK), with instructions
// taking precedence at identical (SK,TK) — every existing row in such a
// group is discarded and every instruction in the group is processed,
// non-deletions re-emitted.
func ExecuteMappings[SK, TK any](
	ctx context.Context,
	cmpSK order.Comparator[SK],
	cmpTK order.Comparator[TK],
	priorMappings rowio.Cursor[view.KeyMapping[SK, TK]],
	mappingInstructions rowio.Cursor[view.KeyMappingInstruction[SK, TK]],
	emit func(ctx context.Context, row view.KeyMapping[SK, TK]) error,
) error {
	for priorMappings.Valid() || mappingInstructions.Valid() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var cmp int
		switch {
		case !priorMappings.Valid():
			cmp = 1
		case !mappingInstructions.Valid():
			cmp = -1
		default:
			e, in := priorMappings.Value(), mappingInstructions.Value()
			cmp = cmpSK(e.SourceKey, in.SourceKey)
			if cmp == 0 {
				cmp = cmpTK(e.TargetKey, in.TargetKey)
			}
		}

		if cmp < 0 {
			e := priorMappings.Value()
			if err := emit(ctx, e); err != nil {
				return err
			}
			if err := priorMappings.Next(); err != nil {
				return err
			}
			continue
		}

		// cmp >= 0: an instruction leads this group (it either ties with
		// the existing head or the existing side is ahead/exhausted).
		// Instructions win at identical (SK,TK): discard every matching
		// existing row, then process every matching instruction.
		sk, tk := mappingInstructions.Value().SourceKey, mappingInstructions.Value().TargetKey
		for priorMappings.Valid() && cmpSK(priorMappings.Value().SourceKey, sk) == 0 && cmpTK(priorMappings.Value().TargetKey, tk) == 0 {
			if err := priorMappings.Next(); err != nil {
				return err
			}
		}
		for mappingInstructions.Valid() && cmpSK(mappingInstructions.Value().SourceKey, sk) == 0 && cmpTK(mappingInstructions.Value().TargetKey, tk) == 0 {
			in := mappingInstructions.Value()
			if !in.Deletion {
				if err := emit(ctx, view.KeyMapping[SK, TK]{SourceKey: sk, TargetKey: tk}); err != nil {
					return err
				}
			}
			if err := mappingInstructions.Next(); err != nil {
				return err
			}
		}
	}
	return nil
}
