package worker

import (
	"testing"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestGenerateCameraRaysOnePerPixel(t *testing.T) {
	rays := GenerateCameraRays(types.Bounds2i{
		PMin: types.Point2i{X: 2, Y: 2},
		PMax: types.Point2i{X: 5, Y: 4},
	})
	assert.Len(t, rays, 6)
	for _, r := range rays {
		assert.Equal(t, types.TreeletID(0), r.ToVisit[0].Treelet)
		assert.Equal(t, float64(1), r.Sample.Weight)
	}
}

func TestGenerateCameraRaysEmptyTile(t *testing.T) {
	rays := GenerateCameraRays(types.Bounds2i{})
	assert.Empty(t, rays)
}
