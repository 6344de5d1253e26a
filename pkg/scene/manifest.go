package scene

import (
	"fmt"
	"os"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"gopkg.in/yaml.v3"
)

// ManifestEntry describes one scene object as written by the scene
// dumper: its identity, its on-disk size, and (for treelets) the
// already-flattened set of objects it depends on.
type ManifestEntry struct {
	Type         types.ObjectType  `yaml:"type"`
	ID           uint32            `yaml:"id"`
	SizeBytes    int64             `yaml:"sizeBytes"`
	Dependencies []types.ObjectKey `yaml:"dependencies,omitempty"`
}

// Manifest is the scene dumper's index: every object in the dump plus,
// for static assignment, the precomputed per-treelet hit probability.
type Manifest struct {
	Objects      []ManifestEntry              `yaml:"objects"`
	TreeletProbs map[types.TreeletID]float64 `yaml:"treeletProbs,omitempty"`
}

// LoadManifest reads and parses the scene dump manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("scene: parse manifest: %w", err)
	}
	return &m, nil
}
