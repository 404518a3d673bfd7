package exec

import (
	"context"
	"fmt"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
)

// PreserveKeyValues is an optional identity-carry-over hook, called once
// per emitted (TK,TV) pair. exemplar is nil when no prior Content row for
// the same TK was seen in the bounded cache.
type PreserveKeyValues[TV any] func(newValue TV, exemplar *TV) TV

// ContentOptions configures ExecuteContent.
type ContentOptions[TK, TV any] struct {
	PreserveKeyValues PreserveKeyValues[TV]
}

// ExecuteContent reconciles priorContent with contentInstructions (both
// sorted by (TK,SK)) into the new Content stream via contentEmit, and
// derives the downstream Updates delta via deltaEmit (which may be nil if
// the caller has no downstream consumer).
func ExecuteContent[TK, SK, TV any](
	ctx context.Context,
	cmpTK order.Comparator[TK],
	cmpSK order.Comparator[SK],
	priorContent rowio.Cursor[view.ContentRecord[TK, SK, TV]],
	contentInstructions rowio.Cursor[view.ContentInstruction[TK, SK, TV]],
	contentEmit func(ctx context.Context, row view.ContentRecord[TK, SK, TV]) error,
	deltaEmit deltaEmit[TK, TV],
	opts ContentOptions[TK, TV],
) error {
	window := newTKWindow(cmpTK)
	exemplars := newExemplarCache[TK, TV](cmpTK)
	pending := newPendingDelete(cmpTK, deltaEmit)

	applyExemplar := func(tk TK, v TV) TV {
		if opts.PreserveKeyValues == nil {
			return v
		}
		if ex, ok := exemplars.Get(tk); ok {
			return opts.PreserveKeyValues(v, &ex)
		}
		return opts.PreserveKeyValues(v, nil)
	}

	for priorContent.Valid() || contentInstructions.Valid() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
		// Look ahead at the instruction cursor's head before classifying,
		// so the window already reflects an upcoming instruction's TK when
		// an existing row with the same TK but a smaller SK is processed
		// first.
		if contentInstructions.Valid() {
			window.push(contentInstructions.Value().TargetKey)
		}

		var cmp int
		switch {
		case !priorContent.Valid():
			cmp = 1
		case !contentInstructions.Valid():
			cmp = -1
		default:
			e, in := priorContent.Value(), contentInstructions.Value()
			cmp = cmpTK(e.TargetKey, in.TargetKey)
			if cmp == 0 {
				cmp = cmpSK(e.SourceKey, in.SourceKey)
			}
		}

		switch {
		case cmp == 0:
			tk, sk := contentInstructions.Value().TargetKey, contentInstructions.Value().SourceKey
			for priorContent.Valid() && cmpTK(priorContent.Value().TargetKey, tk) == 0 && cmpSK(priorContent.Value().SourceKey, sk) == 0 {
				exemplars.Put(tk, priorContent.Value().Value)
				if err := priorContent.Next(); err != nil {
					return err
				}
			}
			for contentInstructions.Valid() && cmpTK(contentInstructions.Value().TargetKey, tk) == 0 && cmpSK(contentInstructions.Value().SourceKey, sk) == 0 {
				in := contentInstructions.Value()
				if in.Deletion {
					if err := pending.SendDelete(ctx, tk); err != nil {
						return err
					}
				} else {
					v := applyExemplar(tk, in.Value)
					if err := contentEmit(ctx, view.ContentRecord[TK, SK, TV]{TargetKey: tk, SourceKey: sk, Value: v}); err != nil {
						return err
					}
					if err := pending.SendUpsert(ctx, tk, v); err != nil {
						return err
					}
					exemplars.Put(tk, v)
				}
				if err := contentInstructions.Next(); err != nil {
					return err
				}
			}
		case cmp < 0:
			e := priorContent.Value()
			if err := contentEmit(ctx, e); err != nil {
				return err
			}
			exemplars.Put(e.TargetKey, e.Value)
			if window.contains(e.TargetKey) {
				if err := pending.SendUpsert(ctx, e.TargetKey, e.Value); err != nil {
					return err
				}
			}
			if err := priorContent.Next(); err != nil {
				return err
			}
		default:
			in := contentInstructions.Value()
			if in.Deletion {
				return view.UnexpectedDeletionErrorf("(TK=%v,SK=%v) has no matching content row", in.TargetKey, in.SourceKey)
			}
			v := applyExemplar(in.TargetKey, in.Value)
			if err := contentEmit(ctx, view.ContentRecord[TK, SK, TV]{TargetKey: in.TargetKey, SourceKey: in.SourceKey, Value: v}); err != nil {
				return err
			}
			if err := pending.SendUpsert(ctx, in.TargetKey, v); err != nil {
				return err
			}
			exemplars.Put(in.TargetKey, v)
			if err := contentInstructions.Next(); err != nil {
				return err
			}
		}
	}
	return pending.Finish(ctx)
}
