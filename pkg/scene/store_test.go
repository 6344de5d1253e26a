package scene

import (
	"testing"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(dir)
	require.NoError(t, err)
	defer store.Close()

	r := NewRegistry()
	require.NoError(t, r.LoadManifest(sampleManifest()))
	require.NoError(t, r.MarkHolder(1, 5))

	require.NoError(t, store.Save(r))

	loaded, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)

	assert.ElementsMatch(t, r.TreeletIDs(), loaded.TreeletIDs())

	size, err := loaded.TotalSize(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000+50+30), size)

	assert.Equal(t, []types.WorkerID{5}, loaded.HoldersOf(1))
}

func TestStoreLoadOnEmptyDatabaseReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}
