package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
	"github.com/block/sortedview/serialize/gobcolumn"
	"github.com/block/sortedview/storage/memstore"
)

func sumProduce(ctx context.Context, key string, values rowio.Cursor[int]) (rowio.Cursor[view.TargetPair[string, int]], error) {
	total := 0
	for values.Valid() {
		total += values.Value()
		if err := values.Next(); err != nil {
			return nil, err
		}
	}
	return rowio.NewSliceCursor([]view.TargetPair[string, int]{{Key: key, Value: total}}), nil
}

func newSumStage(name string, persistence Persistence) *Stage[string, int, string, int] {
	return New(Config[string, int, string, int]{
		Name:        name,
		Persistence: persistence,
		Temps:       memstore.NewTempFactory(),
		Serializers: Serializers[string, string, int]{
			Mappings: gobcolumn.New[view.KeyMapping[string, string]](),
			Content:  gobcolumn.New[view.ContentRecord[string, string, int]](),
			Updates:  gobcolumn.New[view.SourceUpdate[string, int]](),
		},
		KeySerializer:    gobcolumn.New[string](),
		SourceComparator: order.Natural[string](),
		TargetComparator: order.Natural[string](),
		Produce:          sumProduce,
	})
}

func TestStage_UpdateFromEmptyProducesContent(t *testing.T) {
	ctx := context.Background()
	p := memstore.New()
	st := newSumStage("counts", p)

	v, err := st.Update(ctx, rowio.NewSliceCursor([]view.SourceUpdate[string, int]{
		{Type: view.Add, Key: "a", Value: 1},
		{Type: view.Add, Key: "a", Value: 2},
		{Type: view.Add, Key: "b", Value: 5},
	}), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, st.Version())

	content, err := st.readContent(ctx, v)
	require.NoError(t, err)
	rows, err := rowio.Drain(content)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].TargetKey)
	assert.Equal(t, 3, rows[0].Value)
	assert.Equal(t, "b", rows[1].TargetKey)
	assert.Equal(t, 5, rows[1].Value)
}

func TestStage_SecondUpdateReconcilesAgainstPrior(t *testing.T) {
	ctx := context.Background()
	p := memstore.New()
	st := newSumStage("counts", p)

	v1, err := st.Update(ctx, rowio.NewSliceCursor([]view.SourceUpdate[string, int]{
		{Type: view.Add, Key: "a", Value: 1},
		{Type: view.Add, Key: "b", Value: 5},
	}), 0)
	require.NoError(t, err)

	v2, err := st.Update(ctx, rowio.NewSliceCursor([]view.SourceUpdate[string, int]{
		{Type: view.Delete, Key: "a"},
		{Type: view.Add, Key: "c", Value: 10},
	}), v1)
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	content, err := st.readContent(ctx, v2)
	require.NoError(t, err)
	rows, err := rowio.Drain(content)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].TargetKey)
	assert.Equal(t, "c", rows[1].TargetKey)

	updates, err := st.ReadUpdates(ctx, v2)
	require.NoError(t, err)
	delta, err := rowio.Drain(updates)
	require.NoError(t, err)
	require.Len(t, delta, 2, "b is untouched so only a's delete and c's add should appear downstream")
	for _, u := range delta {
		assert.NotEqual(t, "b", u.Key)
	}
}

func TestStage_UpdateFromSourcesWithNoUpstreamsIsEmptyRound(t *testing.T) {
	ctx := context.Background()
	p := memstore.New()
	st := newSumStage("counts", p)

	v, err := st.UpdateFromSources(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	content, err := st.readContent(ctx, v)
	require.NoError(t, err)
	rows, err := rowio.Drain(content)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStage_UpstreamPipelineAdvancesInLockstep(t *testing.T) {
	ctx := context.Background()
	p := memstore.New()
	upstream := newSumStage("raw", p)
	downstream := newSumStage("totals", p)
	AddUpstream(downstream, upstream)

	_, err := upstream.Update(ctx, rowio.NewSliceCursor([]view.SourceUpdate[string, int]{
		{Type: view.Add, Key: "a", Value: 1},
		{Type: view.Add, Key: "a", Value: 2},
	}), 0)
	require.NoError(t, err)

	v, err := downstream.UpdateFromSources(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	content, err := downstream.readContent(ctx, v)
	require.NoError(t, err)
	rows, err := rowio.Drain(content)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].TargetKey)
	assert.Equal(t, 3, rows[0].Value)
}
