package order

import "cmp"

// Natural returns the default comparator for any ordered type, used when a
// stage does not supply an explicit SourceKeyComparer / TargetKeyComparer.
func Natural[T cmp.Ordered]() Comparator[T] {
	return func(a, b T) int { return cmp.Compare(a, b) }
}
