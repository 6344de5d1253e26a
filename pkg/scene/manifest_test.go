package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestYAML = `
objects:
  - type: SCENE
    id: 0
    sizeBytes: 100
  - type: TREELET
    id: 1
    sizeBytes: 1000
    dependencies:
      - type: MATERIAL
        id: 1
treeletProbs:
  1: 0.75
`

func TestLoadManifestParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifestYAML), 0600))

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Len(t, m.Objects, 2)
	assert.Equal(t, types.ObjectTreelet, m.Objects[1].Type)
	assert.Equal(t, 0.75, m.TreeletProbs[types.TreeletID(1)])
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest("/nonexistent/manifest.yaml")
	assert.Error(t, err)
}
