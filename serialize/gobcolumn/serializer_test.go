package gobcolumn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/storage/memstore"
)

func TestSerializer_RoundTripMultipleGroups(t *testing.T) {
	ctx := context.Background()
	temps := memstore.NewTempFactory()
	stream, err := temps.New("t")
	require.NoError(t, err)
	defer stream.Close()

	ser := New[int]()
	w := ser.Write(stream)
	require.NoError(t, w.Add(ctx, []int{1, 2, 3}))
	require.NoError(t, w.Add(ctx, []int{4, 5}))
	require.NoError(t, w.Finish(ctx))

	cur, err := ser.Read(ctx, stream)
	require.NoError(t, err)
	rows, err := rowio.Drain(cur)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rows)
}

func TestSerializer_EmptyStreamYieldsExhaustedCursor(t *testing.T) {
	ctx := context.Background()
	temps := memstore.NewTempFactory()
	stream, err := temps.New("t")
	require.NoError(t, err)
	defer stream.Close()

	cur, err := New[string]().Read(ctx, stream)
	require.NoError(t, err)
	assert.False(t, cur.Valid())
}

func TestSerializer_SkipsEmptyAddCalls(t *testing.T) {
	ctx := context.Background()
	temps := memstore.NewTempFactory()
	stream, err := temps.New("t")
	require.NoError(t, err)
	defer stream.Close()

	ser := New[int]()
	w := ser.Write(stream)
	require.NoError(t, w.Add(ctx, nil))
	require.NoError(t, w.Add(ctx, []int{7}))
	require.NoError(t, w.Finish(ctx))

	cur, err := ser.Read(ctx, stream)
	require.NoError(t, err)
	rows, err := rowio.Drain(cur)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, rows)
}
