package sortedio

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/serialize/gobcolumn"
	"github.com/block/sortedview/storage/memstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}

func TestSorter_SingleBatchNoSpill(t *testing.T) {
	ctx := context.Background()
	temps := memstore.NewTempFactory()
	s := New[int](order.Natural[int](), gobcolumn.New[int](), temps, NewOptions(), "t")
	defer s.Close()

	for _, v := range []int{5, 1, 4, 2, 3} {
		require.NoError(t, s.Add(ctx, v))
	}
	require.NoError(t, s.Finish(ctx))

	cur, err := s.Read(ctx)
	require.NoError(t, err)
	rows, err := rowio.Drain(cur)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rows)
}

func TestSorter_MultiBatchSpillsAndMerges(t *testing.T) {
	ctx := context.Background()
	temps := memstore.NewTempFactory()
	opts := &Options{RowsPerGroup: 2, GroupsPerBatch: 1}
	s := New[int](order.Natural[int](), gobcolumn.New[int](), temps, opts, "t")
	defer s.Close()

	for _, v := range []int{9, 8, 7, 6, 5, 4, 3, 2, 1} {
		require.NoError(t, s.Add(ctx, v))
	}
	require.NoError(t, s.Finish(ctx))

	cur, err := s.Read(ctx)
	require.NoError(t, err)
	rows, err := rowio.Drain(cur)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, rows)
}

func TestSorter_StableOnDuplicates(t *testing.T) {
	ctx := context.Background()
	type row struct {
		key, seq int
	}
	temps := memstore.NewTempFactory()
	opts := &Options{RowsPerGroup: 2, GroupsPerBatch: 1}
	cmp := order.Field(func(r row) int { return r.key }, order.Natural[int]())
	s := New[row](cmp, gobcolumn.New[row](), temps, opts, "t")
	defer s.Close()

	input := []row{{1, 0}, {1, 1}, {1, 2}, {1, 3}, {1, 4}}
	for _, v := range input {
		require.NoError(t, s.Add(ctx, v))
	}
	require.NoError(t, s.Finish(ctx))

	cur, err := s.Read(ctx)
	require.NoError(t, err)
	rows, err := rowio.Drain(cur)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i, r := range rows {
		assert.Equal(t, i, r.seq, "equal keys must preserve source order across spilled batches")
	}
}

func TestSorter_EmptyInput(t *testing.T) {
	ctx := context.Background()
	temps := memstore.NewTempFactory()
	s := New[int](order.Natural[int](), gobcolumn.New[int](), temps, NewOptions(), "t")
	defer s.Close()

	require.NoError(t, s.Finish(ctx))
	cur, err := s.Read(ctx)
	require.NoError(t, err)
	assert.False(t, cur.Valid())
}

func TestSorter_AddAfterReadFails(t *testing.T) {
	ctx := context.Background()
	temps := memstore.NewTempFactory()
	s := New[int](order.Natural[int](), gobcolumn.New[int](), temps, NewOptions(), "t")
	defer s.Close()

	require.NoError(t, s.Finish(ctx))
	_, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Error(t, s.Add(ctx, 1))
}
