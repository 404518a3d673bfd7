// Package exec implements the two instruction executors: the KeyMappings
// reconciler and the Content reconciler with its downstream delta
// derivation.
package exec

import (
	"context"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/view"
)

type pendingState int

const (
	pdNone pendingState = iota
	pdRequested
	pdRuledOut
)

// deltaEmit is satisfied by whatever sink collects the stage's downstream
// Updates; nil disables delta derivation entirely (a caller that has no
// downstream consumer can skip it).
type deltaEmit[TK, TV any] func(ctx context.Context, u view.SourceUpdate[TK, TV]) error

// pendingDelete implements a three-state delete-coalescing machine: a plain
// tagged variant (None/Requested/RuledOut) plus the held key. It exists
// because many instruction-derived deletes are cancelled by a later upsert
// for the same TK, and a downstream Delete must never be emitted when any
// upsert for that TK survives.
type pendingDelete[TK, TV any] struct {
	cmp   order.Comparator[TK]
	emit  deltaEmit[TK, TV]
	state pendingState
	key   TK
}

func newPendingDelete[TK, TV any](cmp order.Comparator[TK], emit deltaEmit[TK, TV]) *pendingDelete[TK, TV] {
	if emit == nil {
		emit = func(context.Context, view.SourceUpdate[TK, TV]) error { return nil }
	}
	return &pendingDelete[TK, TV]{cmp: cmp, emit: emit}
}

func (p *pendingDelete[TK, TV]) flush(ctx context.Context) error {
	if p.state != pdRequested {
		return nil
	}
	return p.emit(ctx, view.SourceUpdate[TK, TV]{Type: view.Delete, Key: p.key})
}

func (p *pendingDelete[TK, TV]) SendDelete(ctx context.Context, k TK) error {
	switch p.state {
	case pdNone:
		p.state, p.key = pdRequested, k
		return nil
	case pdRequested:
		if p.cmp(k, p.key) == 0 {
			return nil
		}
		if err := p.flush(ctx); err != nil {
			return err
		}
		p.state, p.key = pdRequested, k
		return nil
	case pdRuledOut:
		if p.cmp(k, p.key) == 0 {
			return nil
		}
		p.state, p.key = pdRequested, k
		return nil
	}
	return nil
}

func (p *pendingDelete[TK, TV]) SendUpsert(ctx context.Context, k TK, v TV) error {
	u := view.SourceUpdate[TK, TV]{Type: view.Update, Key: k, Value: v}
	switch p.state {
	case pdNone:
		return p.emit(ctx, u)
	case pdRequested:
		if p.cmp(k, p.key) == 0 {
			p.state = pdRuledOut
			return p.emit(ctx, u)
		}
		if err := p.flush(ctx); err != nil {
			return err
		}
		p.state = pdNone
		return p.emit(ctx, u)
	case pdRuledOut:
		if p.cmp(k, p.key) == 0 {
			return p.emit(ctx, u)
		}
		p.state = pdNone
		return p.emit(ctx, u)
	}
	return nil
}

// Finish flushes any still-pending delete. Must be called once, after the
// executor's main loop is fully drained.
func (p *pendingDelete[TK, TV]) Finish(ctx context.Context) error {
	err := p.flush(ctx)
	p.state = pdNone
	return err
}
