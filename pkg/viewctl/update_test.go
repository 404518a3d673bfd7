package viewctl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
)

func TestReadUpdates_ParsesAllThreeTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "updates.tsv")
	require.NoError(t, os.WriteFile(path, []byte("Add\ta\tx\nUpdate\tb\ty\nDelete\tc\n\n"), 0o644))

	rows, err := readUpdates(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, view.Add, rows[0].Type)
	assert.Equal(t, "x", rows[0].Value)
	assert.Equal(t, view.Update, rows[1].Type)
	assert.Equal(t, view.Delete, rows[2].Type)
	assert.Equal(t, "c", rows[2].Key)
}

func TestReadUpdates_RejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "updates.tsv")
	require.NoError(t, os.WriteFile(path, []byte("Frobnicate\ta\tx\n"), 0o644))

	_, err := readUpdates(path)
	assert.Error(t, err)
}

func TestIdentityProduce_OneRowPerValue(t *testing.T) {
	values := rowio.NewSliceCursor([]string{"x", "y"})
	out, err := identityProduce(context.Background(), "k", values)
	require.NoError(t, err)
	rows, err := rowio.Drain(out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "k", rows[0].Key)
	assert.Equal(t, "x", rows[0].Value)
}

func TestUpdate_Run_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	updatesPath := filepath.Join(dir, "updates.tsv")
	require.NoError(t, os.WriteFile(updatesPath, []byte("Add\ta\thello\n"), 0o644))

	u := &Update{
		BaseDir: filepath.Join(dir, "data"),
		Stage:   "demo",
		Version: 0,
		File:    updatesPath,
	}
	require.NoError(t, u.Run())
}
