package instr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
)

type sliceSink[T any] struct{ rows []T }

func (s *sliceSink[T]) Add(ctx context.Context, row T) error {
	s.rows = append(s.rows, row)
	return nil
}

// exclaimProduce republishes key under its own target key, one row per
// value, each value with "!" appended — a transform exercising the bounded
// sequence contract.
func exclaimProduce(ctx context.Context, key string, values rowio.Cursor[string]) (rowio.Cursor[view.TargetPair[string, string]], error) {
	var out []view.TargetPair[string, string]
	for values.Valid() {
		out = append(out, view.TargetPair[string, string]{Key: key, Value: values.Value() + "!"})
		if err := values.Next(); err != nil {
			return nil, err
		}
	}
	return rowio.NewSliceCursor(out), nil
}

func TestGenerate_NewKeyEmitsContentAndMappingAdds(t *testing.T) {
	ctx := context.Background()
	updates := rowio.NewSliceCursor([]view.SourceUpdate[string, string]{
		{Type: view.Add, Key: "a", Value: "x"},
		{Type: view.Add, Key: "a", Value: "y"},
	})
	content := &sliceSink[view.ContentInstruction[string, string, string]]{}
	mapping := &sliceSink[view.KeyMappingInstruction[string, string]]{}

	err := Generate[string, string, string, string](ctx, order.Natural[string](), rowio.Empty[view.KeyMapping[string, string]](), updates, exclaimProduce, content, mapping)
	require.NoError(t, err)

	require.Len(t, content.rows, 2)
	assert.Equal(t, "x!", content.rows[0].Value)
	assert.Equal(t, "y!", content.rows[1].Value)
	assert.False(t, content.rows[0].Deletion)
	require.Len(t, mapping.rows, 2)
	assert.False(t, mapping.rows[0].Deletion)
}

func TestGenerate_DeleteDischargesPriorMappingsOnly(t *testing.T) {
	ctx := context.Background()
	prior := rowio.NewSliceCursor([]view.KeyMapping[string, string]{
		{SourceKey: "a", TargetKey: "a"},
	})
	updates := rowio.NewSliceCursor([]view.SourceUpdate[string, string]{
		{Type: view.Delete, Key: "a"},
	})
	content := &sliceSink[view.ContentInstruction[string, string, string]]{}
	mapping := &sliceSink[view.KeyMappingInstruction[string, string]]{}

	err := Generate[string, string, string, string](ctx, order.Natural[string](), prior, updates, exclaimProduce, content, mapping)
	require.NoError(t, err)

	require.Len(t, content.rows, 1)
	assert.True(t, content.rows[0].Deletion)
	require.Len(t, mapping.rows, 1)
	assert.True(t, mapping.rows[0].Deletion)
}

func TestGenerate_UnderconsumedProduceFails(t *testing.T) {
	ctx := context.Background()
	updates := rowio.NewSliceCursor([]view.SourceUpdate[string, string]{
		{Type: view.Add, Key: "a", Value: "x"},
	})
	ignoresInput := func(ctx context.Context, key string, values rowio.Cursor[string]) (rowio.Cursor[view.TargetPair[string, string]], error) {
		return rowio.Empty[view.TargetPair[string, string]](), nil
	}
	content := &sliceSink[view.ContentInstruction[string, string, string]]{}
	mapping := &sliceSink[view.KeyMappingInstruction[string, string]]{}

	err := Generate[string, string, string, string](ctx, order.Natural[string](), rowio.Empty[view.KeyMapping[string, string]](), updates, ignoresInput, content, mapping)
	require.Error(t, err)
	assert.True(t, errors.Is(err, view.ErrProducerUnderconsumed))
}

func TestGenerate_OutOfOrderUpdatesFails(t *testing.T) {
	ctx := context.Background()
	updates := rowio.NewSliceCursor([]view.SourceUpdate[string, string]{
		{Type: view.Add, Key: "b", Value: "x"},
		{Type: view.Add, Key: "a", Value: "y"},
	})
	content := &sliceSink[view.ContentInstruction[string, string, string]]{}
	mapping := &sliceSink[view.KeyMappingInstruction[string, string]]{}

	err := Generate[string, string, string, string](ctx, order.Natural[string](), rowio.Empty[view.KeyMapping[string, string]](), updates, exclaimProduce, content, mapping)
	require.Error(t, err)
	assert.True(t, errors.Is(err, view.ErrOrdering))
}
