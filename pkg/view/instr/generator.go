// Package instr implements the instruction generator: a parallel scan of
// prior KeyMappings and incoming source updates that invokes the user's
// Produce function per source key and emits typed instructions into the
// content- and mapping-instruction sorters.
package instr

import (
	"context"
	"fmt"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
)

// Sink is the subset of sortedio.Sorter the generator needs: somewhere to
// Add instructions for later sorting.
type Sink[T any] interface {
	Add(ctx context.Context, record T) error
}

// Generate performs the §4.4 scan. priorMappings must be sorted by
// SourceKey, updates by Key under cmp. contentOut and mappingOut receive
// unsorted instructions in scan order; the caller's sorters reorder them.
func Generate[SK, SV, TK, TV any](
	ctx context.Context,
	cmp order.Comparator[SK],
	priorMappings rowio.Cursor[view.KeyMapping[SK, TK]],
	updates rowio.Cursor[view.SourceUpdate[SK, SV]],
	produce view.Produce[SK, SV, TK, TV],
	contentOut Sink[view.ContentInstruction[TK, SK, TV]],
	mappingOut Sink[view.KeyMappingInstruction[SK, TK]],
) error {
	for updates.Valid() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("instr: %w", err)
		}
		u := updates.Value()

		// 1. Fast-forward and discharge prior mappings for this source key.
		for priorMappings.Valid() && cmp(priorMappings.Value().SourceKey, u.Key) < 0 {
			if err := priorMappings.Next(); err != nil {
				return err
			}
		}
		for priorMappings.Valid() && cmp(priorMappings.Value().SourceKey, u.Key) == 0 {
			m := priorMappings.Value()
			if err := contentOut.Add(ctx, view.ContentInstruction[TK, SK, TV]{TargetKey: m.TargetKey, SourceKey: m.SourceKey, Deletion: true}); err != nil {
				return err
			}
			if err := mappingOut.Add(ctx, view.KeyMappingInstruction[SK, TK]{SourceKey: m.SourceKey, TargetKey: m.TargetKey, Deletion: true}); err != nil {
				return err
			}
			if err := priorMappings.Next(); err != nil {
				return err
			}
		}

		if u.Type == view.Delete {
			if err := updates.Next(); err != nil {
				return err
			}
			if updates.Valid() && cmp(updates.Value().Key, u.Key) <= 0 {
				return view.OrderingErrorf("delete for key %v followed by non-greater key", u.Key)
			}
			continue
		}

		bounded := newBoundedValues(updates, u.Key, cmp)
		out, err := produce(ctx, u.Key, bounded)
		if err != nil {
			return fmt.Errorf("instr: produce(%v): %w", u.Key, err)
		}
		for out.Valid() {
			pair := out.Value()
			if err := contentOut.Add(ctx, view.ContentInstruction[TK, SK, TV]{TargetKey: pair.Key, SourceKey: u.Key, Value: pair.Value}); err != nil {
				return err
			}
			if err := mappingOut.Add(ctx, view.KeyMappingInstruction[SK, TK]{SourceKey: u.Key, TargetKey: pair.Key}); err != nil {
				return err
			}
			if err := out.Next(); err != nil {
				return err
			}
		}
		if err := out.Close(); err != nil {
			return err
		}
		if !bounded.Exhausted() {
			return view.UnderconsumedErrorf("produce(%v) returned without consuming its input", u.Key)
		}
		if updates.Valid() && cmp(updates.Value().Key, u.Key) <= 0 {
			return view.OrderingErrorf("key %v repeated or out of order after %v", updates.Value().Key, u.Key)
		}
	}
	return nil
}
