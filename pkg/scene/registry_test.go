package scene

import (
	"testing"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifest() *Manifest {
	return &Manifest{
		Objects: []ManifestEntry{
			{Type: types.ObjectScene, ID: 0, SizeBytes: 100},
			{Type: types.ObjectMaterial, ID: 1, SizeBytes: 50},
			{Type: types.ObjectTexture, ID: 2, SizeBytes: 30},
			{
				Type:      types.ObjectTreelet,
				ID:        1,
				SizeBytes: 1000,
				Dependencies: []types.ObjectKey{
					{Type: types.ObjectMaterial, ID: 1},
					{Type: types.ObjectTexture, ID: 2},
				},
			},
			{Type: types.ObjectTreelet, ID: 2, SizeBytes: 2000},
		},
	}
}

func TestLoadManifestBuildsObjectsAndTreelets(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadManifest(sampleManifest()))

	assert.Equal(t, []types.TreeletID{1, 2}, r.TreeletIDs())

	_, ok := r.Object(types.ObjectKey{Type: types.ObjectScene, ID: 0})
	assert.True(t, ok)

	treelet, ok := r.Treelet(1)
	require.True(t, ok)
	assert.Len(t, treelet.Dependencies, 2)
}

func TestLoadManifestRejectsDuplicateObjects(t *testing.T) {
	m := sampleManifest()
	m.Objects = append(m.Objects, m.Objects[0])
	r := NewRegistry()
	assert.Error(t, r.LoadManifest(m))
}

func TestTotalSizeSumsTreeletAndDependencies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadManifest(sampleManifest()))

	size, err := r.TotalSize(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000+50+30), size)

	size, err = r.TotalSize(2)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), size)
}

func TestTotalSizeUnknownTreeletErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadManifest(sampleManifest()))
	_, err := r.TotalSize(99)
	assert.Error(t, err)
}

func TestMarkHolderPropagatesToDependencies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadManifest(sampleManifest()))

	require.NoError(t, r.MarkHolder(1, 7))

	assert.Equal(t, []types.WorkerID{7}, r.HoldersOf(1))

	obj, ok := r.Object(types.ObjectKey{Type: types.ObjectMaterial, ID: 1})
	require.True(t, ok)
	assert.True(t, obj.Workers[7])
}

func TestMarkHolderUnknownTreeletErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadManifest(sampleManifest()))
	assert.Error(t, r.MarkHolder(99, 1))
}

func TestMarkObjectHolderOnBaseObject(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadManifest(sampleManifest()))

	key := types.ObjectKey{Type: types.ObjectScene, ID: 0}
	require.NoError(t, r.MarkObjectHolder(key, 3))

	obj, _ := r.Object(key)
	assert.True(t, obj.Workers[3])
}
