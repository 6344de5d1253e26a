package assign

import (
	"errors"

	"github.com/alex-ozdemir/raylet/pkg/types"
)

// ErrDegenerateSplit is returned by GetTile when a split would have to
// halve an axis of length 1.
var ErrDegenerateSplit = errors.New("assign: cannot split a 1-pixel axis")

// GetTile returns the i-th of n contiguous, non-overlapping rectangles
// that partition bounds. It recurses, alternating the split axis at each
// level: the first call splits vertically (along Y), halving bounds into
// a top and bottom half, then alternates to a horizontal split (along X)
// for the next level, and so on. Even indices recurse into the first
// half with ceil(n/2) tiles; odd indices recurse into the second half
// with floor(n/2) tiles.
func GetTile(i, n uint32, bounds types.Bounds2i) (types.Bounds2i, error) {
	return getTile(i, n, bounds, true)
}

func getTile(i, n uint32, bounds types.Bounds2i, splitVertical bool) (types.Bounds2i, error) {
	if n == 1 {
		return bounds, nil
	}

	var first, second types.Bounds2i
	if splitVertical {
		yMid := (bounds.PMin.Y + bounds.PMax.Y) / 2
		if yMid == bounds.PMin.Y || yMid == bounds.PMax.Y {
			return types.Bounds2i{}, ErrDegenerateSplit
		}
		first = types.Bounds2i{PMin: bounds.PMin, PMax: types.Point2i{X: bounds.PMax.X, Y: yMid}}
		second = types.Bounds2i{PMin: types.Point2i{X: bounds.PMin.X, Y: yMid}, PMax: bounds.PMax}
	} else {
		xMid := (bounds.PMin.X + bounds.PMax.X) / 2
		if xMid == bounds.PMin.X || xMid == bounds.PMax.X {
			return types.Bounds2i{}, ErrDegenerateSplit
		}
		first = types.Bounds2i{PMin: bounds.PMin, PMax: types.Point2i{X: xMid, Y: bounds.PMax.Y}}
		second = types.Bounds2i{PMin: types.Point2i{X: xMid, Y: bounds.PMin.Y}, PMax: bounds.PMax}
	}

	if i%2 == 0 {
		firstN := n - n/2
		return getTile(i/2, firstN, first, !splitVertical)
	}
	secondN := n / 2
	return getTile(i/2, secondN, second, !splitVertical)
}
