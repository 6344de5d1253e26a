package assign

import (
	"testing"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTileSingleTileIsWholeBounds(t *testing.T) {
	b := types.Bounds2i{PMin: types.Point2i{X: 0, Y: 0}, PMax: types.Point2i{X: 10, Y: 10}}
	tile, err := GetTile(0, 1, b)
	require.NoError(t, err)
	assert.Equal(t, b, tile)
}

func TestGetTilePartitionsExactlyAndDisjointly(t *testing.T) {
	bounds := types.Bounds2i{PMin: types.Point2i{X: 0, Y: 0}, PMax: types.Point2i{X: 70, Y: 70}}
	const n = 7

	covered := make(map[[2]int32]bool)
	var area int32
	for i := uint32(0); i < n; i++ {
		tile, err := GetTile(i, n, bounds)
		require.NoError(t, err)
		assert.Greater(t, tile.Width(), int32(0))
		assert.Greater(t, tile.Height(), int32(0))

		for x := tile.PMin.X; x < tile.PMax.X; x++ {
			for y := tile.PMin.Y; y < tile.PMax.Y; y++ {
				key := [2]int32{x, y}
				require.False(t, covered[key], "pixel (%d,%d) covered twice", x, y)
				covered[key] = true
			}
		}
		area += tile.Width() * tile.Height()
	}
	assert.Equal(t, bounds.Width()*bounds.Height(), area)
}

func TestGetTileRejectsDegenerateSplit(t *testing.T) {
	// A 1-pixel-tall strip can't be split vertically.
	bounds := types.Bounds2i{PMin: types.Point2i{X: 0, Y: 0}, PMax: types.Point2i{X: 10, Y: 1}}
	_, err := GetTile(0, 2, bounds)
	assert.ErrorIs(t, err, ErrDegenerateSplit)
}

func TestGetTileEachIndexProducesTheSameResultDeterministically(t *testing.T) {
	bounds := types.Bounds2i{PMin: types.Point2i{X: 0, Y: 0}, PMax: types.Point2i{X: 64, Y: 32}}
	first, err := GetTile(3, 5, bounds)
	require.NoError(t, err)
	second, err := GetTile(3, 5, bounds)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
