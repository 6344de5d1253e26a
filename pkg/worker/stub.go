package worker

import (
	"github.com/alex-ozdemir/raylet/pkg/types"
)

// samplesPerPixel is the fixed sample count the stub camera/sampler
// generates per pixel; production binaries supply their own sampler
// driven by a real per-pixel sample budget.
const samplesPerPixel = 1

// GenerateCameraRays is a package-local stand-in for the excluded
// camera and sampler collaborators: it produces one primary ray per
// pixel in tile, starting traversal at the scene root treelet. It is
// enough to exercise the tile-to-rays and routing paths end to end
// without linking a real camera model.
func GenerateCameraRays(tile types.Bounds2i) []types.RayState {
	if tile.Empty() {
		return nil
	}

	var out []types.RayState
	id := uint64(0)
	for y := tile.PMin.Y; y < tile.PMax.Y; y++ {
		for x := tile.PMin.X; x < tile.PMax.X; x++ {
			for s := 0; s < samplesPerPixel; s++ {
				id++
				out = append(out, types.RayState{
					Sample: types.Sample{
						ID:     id,
						Num:    uint32(s),
						Pixel:  types.Point2i{X: x, Y: y},
						PFilm:  types.Point2f{X: float64(x) + 0.5, Y: float64(y) + 0.5},
						Weight: 1,
					},
					Ray: types.Ray{
						Origin:    types.Point3f{},
						Direction: types.Vector3f{Z: -1},
						TMax:      1e30,
					},
					ToVisit:          []types.TraversalFrame{{Treelet: 0, Node: 1}},
					Beta:             types.Spectrum{R: 1, G: 1, B: 1},
					RemainingBounces: 1,
				})
			}
		}
	}
	return out
}
