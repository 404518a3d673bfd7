package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThen_FallsThroughOnlyOnEquality(t *testing.T) {
	type pair struct{ a, b int }
	byA := Field(func(p pair) int { return p.a }, Natural[int]())
	byB := Field(func(p pair) int { return p.b }, Natural[int]())
	cmp := Then(byA, byB)

	assert.Negative(t, cmp(pair{1, 9}, pair{2, 0}), "byA should decide when a differs")
	assert.Positive(t, cmp(pair{1, 5}, pair{1, 2}), "byB should decide when a is equal")
	assert.Zero(t, cmp(pair{1, 2}, pair{1, 2}))
}

func TestReverse_FlipsSign(t *testing.T) {
	cmp := Reverse(Natural[int]())
	assert.Negative(t, cmp(2, 1))
	assert.Positive(t, cmp(1, 2))
	assert.Zero(t, cmp(1, 1))
}
