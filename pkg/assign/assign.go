// Package assign computes the sample-bounds tile partition and the
// per-worker treelet placement: which worker gets which spatial slice of
// the image, and which worker holds which chunk of scene geometry.
package assign

import (
	"sort"

	"github.com/alex-ozdemir/raylet/pkg/demand"
	"github.com/alex-ozdemir/raylet/pkg/types"
)

// BaseObjects assigns the four object types every worker needs
// regardless of tile or treelet placement: the scene description,
// camera, sampler, and light list.
func BaseObjects(objects []types.ObjectKey) []types.ObjectKey {
	var base []types.ObjectKey
	for _, k := range objects {
		switch k.Type {
		case types.ObjectScene, types.ObjectCamera, types.ObjectSampler, types.ObjectLights:
			base = append(base, k)
		}
	}
	return base
}

// Uniform returns the single non-root treelet worker assigns to
// worker, given the total count of treelets (including the shared root,
// treelet 0). Every worker also implicitly holds treelet 0.
//
// totalTreelets must be at least 2 (root plus one real treelet); a
// scene with only the root treelet needs no placement at all.
func Uniform(worker types.WorkerID, totalTreelets int) types.TreeletID {
	nonRoot := totalTreelets - 1
	return types.TreeletID(1 + uint32(worker)%uint32(nonRoot))
}

// StaticPlacement assigns one treelet to each worker, in decreasing
// order of treeletProbs weight, pairing them one-to-one with the worker
// slice sorted by decreasing residual free space (so the biggest
// remaining budget gets the heaviest treelet first). It returns a map
// from worker to its assigned treelet. If treelets outnumber workers the
// treelets left over are not placed and ErrAssignmentFailed is returned,
// since static mode is a single round with no second pass.
func StaticPlacement(treelets []types.TreeletID, treeletProbs map[types.TreeletID]float64, workers []*types.WorkerRecord) (map[types.WorkerID]types.TreeletID, error) {
	ordered := append([]types.TreeletID(nil), treelets...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return treeletProbs[ordered[i]] > treeletProbs[ordered[j]]
	})

	ws := append([]*types.WorkerRecord(nil), workers...)
	sort.SliceStable(ws, func(i, j int) bool {
		return ws[i].FreeBytes > ws[j].FreeBytes
	})

	result := make(map[types.WorkerID]types.TreeletID, len(ordered))
	for idx, t := range ordered {
		if idx >= len(ws) {
			return result, ErrAssignmentFailed
		}
		result[ws[idx].ID] = t
	}
	return result, nil
}

// DynamicNext picks the candidate treelet with the highest unmet demand
// (per tracker) whose size fits within freeBytes, and reports whether
// any candidate qualified. Candidates are tried in descending demand
// order so the first one that fits wins.
func DynamicNext(tracker *demand.Tracker, candidates []types.TreeletID, sizeBytes map[types.TreeletID]int64, freeBytes int64) (types.TreeletID, bool) {
	ordered := append([]types.TreeletID(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return tracker.ByTreelet(ordered[i]) > tracker.ByTreelet(ordered[j])
	})
	for _, t := range ordered {
		if sizeBytes[t] <= freeBytes {
			return t, true
		}
	}
	return 0, false
}
