package view

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel error kinds. Every structural failure of an Update invocation
// wraps exactly one of these so callers can classify it with errors.Is.
// Serialization, I/O and cancellation errors wrap none of them: they are
// returned as the adapters or the context report them.
var (
	// ErrOrdering means an input stream was not monotonically sorted by
	// key, or a Delete was followed by further rows sharing its key.
	ErrOrdering = errors.New("ordering error")
	// ErrProducerUnderconsumed means Produce returned before draining its
	// bounded value sequence, leaving a structural ambiguity.
	ErrProducerUnderconsumed = errors.New("producer underconsumed its input")
	// ErrUnexpectedDeletion means a content-deletion instruction names a
	// (TK,SK) pair absent from prior Content: KeyMappings has drifted out
	// of sync with Content.
	ErrUnexpectedDeletion = errors.New("unexpected content deletion")
)

// Cancelled reports whether ctx was cancelled, wrapping ctx.Err(). There is
// no separate sentinel for cancellation, since context.Canceled /
// context.DeadlineExceeded already carry that meaning idiomatically; the
// engine's components check ctx.Err() directly at their suspension points.
func Cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("view: %w", err)
	}
	return nil
}

// OrderingErrorf wraps ErrOrdering with a formatted detail message.
func OrderingErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrOrdering}, args...)...)
}

// UnderconsumedErrorf wraps ErrProducerUnderconsumed with detail.
func UnderconsumedErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrProducerUnderconsumed}, args...)...)
}

// UnexpectedDeletionErrorf wraps ErrUnexpectedDeletion with detail.
func UnexpectedDeletionErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnexpectedDeletion}, args...)...)
}
