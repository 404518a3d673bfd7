package memstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block/sortedview/pkg/stage"
)

func TestStore_UploadThenOpenRead(t *testing.T) {
	ctx := context.Background()
	s := New()

	stream, err := NewTempFactory().New("t")
	require.NoError(t, err)
	_, err = stream.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, s.Upload(ctx, "demo", stage.StreamContent, 1, stream))

	read, err := s.OpenRead(ctx, "demo", stage.StreamContent, 1)
	require.NoError(t, err)
	data, err := io.ReadAll(read)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStore_OpenReadMissingObjectIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := New()

	read, err := s.OpenRead(ctx, "nope", stage.StreamUpdates, 7)
	require.NoError(t, err)
	data, err := io.ReadAll(read)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestStore_UploadZeroLengthDeletesObject(t *testing.T) {
	ctx := context.Background()
	s := New()

	stream, err := NewTempFactory().New("t")
	require.NoError(t, err)
	_, err = stream.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, s.Upload(ctx, "demo", stage.StreamContent, 1, stream))

	empty, err := NewTempFactory().New("empty")
	require.NoError(t, err)
	require.NoError(t, s.Upload(ctx, "demo", stage.StreamContent, 1, empty))

	read, err := s.OpenRead(ctx, "demo", stage.StreamContent, 1)
	require.NoError(t, err)
	data, err := io.ReadAll(read)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestMemStream_SeekAndTruncate(t *testing.T) {
	m := newMemStream([]byte("abcdef"))
	pos, err := m.Seek(2, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pos)

	buf := make([]byte, 2)
	n, err := m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "cd", string(buf))

	require.NoError(t, m.Truncate(3))
	assert.Equal(t, "abc", string(m.buf))
}
