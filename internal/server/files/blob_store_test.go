package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopLogger() logging.Logger { return logging.NewNopLogger() }

func TestLocalBlobStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "server_files")
	store, err := NewLocalBlobStore(dir)
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "a.txt", []byte("content")))

	ok, err = store.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	blob, err := store.Open(ctx, "a.txt")
	require.NoError(t, err)
	defer blob.Body.Close()
	data, err := io.ReadAll(blob.Body)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	assert.Equal(t, int64(7), blob.Size)
}

func TestLocalBlobStore_OpenMissingOrDirectory(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, os.Mkdir(filepath.Join(store.BaseDir, "sub"), 0o755))
	_, err = store.Open(ctx, "sub")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
