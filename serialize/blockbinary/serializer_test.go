package blockbinary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/storage/memstore"
)

func TestSerializer_RoundTrip(t *testing.T) {
	ctx := context.Background()
	temps := memstore.NewTempFactory()
	stream, err := temps.New("t")
	require.NoError(t, err)
	defer stream.Close()

	ser := New[string]()
	w := ser.Write(stream)
	require.NoError(t, w.Add(ctx, []string{"a", "b"}))
	require.NoError(t, w.Add(ctx, []string{"c"}))
	require.NoError(t, w.Finish(ctx))

	cur, err := ser.Read(ctx, stream)
	require.NoError(t, err)
	rows, err := rowio.Drain(cur)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, rows)
}

func TestSerializer_EmptyStream(t *testing.T) {
	ctx := context.Background()
	temps := memstore.NewTempFactory()
	stream, err := temps.New("t")
	require.NoError(t, err)
	defer stream.Close()

	ser := New[int]()
	require.NoError(t, ser.Write(stream).Finish(ctx))

	cur, err := ser.Read(ctx, stream)
	require.NoError(t, err)
	assert.False(t, cur.Valid())
}
