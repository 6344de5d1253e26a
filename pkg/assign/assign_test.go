package assign

import (
	"testing"
	"time"

	"github.com/alex-ozdemir/raylet/pkg/demand"
	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestBaseObjectsKeepsOnlyTheFourSharedTypes(t *testing.T) {
	objects := []types.ObjectKey{
		{Type: types.ObjectScene, ID: 1},
		{Type: types.ObjectCamera, ID: 1},
		{Type: types.ObjectSampler, ID: 1},
		{Type: types.ObjectLights, ID: 1},
		{Type: types.ObjectTreelet, ID: 5},
		{Type: types.ObjectMaterial, ID: 9},
	}
	base := BaseObjects(objects)
	assert.Len(t, base, 4)
	for _, k := range base {
		assert.NotEqual(t, types.ObjectTreelet, k.Type)
		assert.NotEqual(t, types.ObjectMaterial, k.Type)
	}
}

func TestUniformCyclesThroughNonRootTreelets(t *testing.T) {
	// 4 treelets total: root (0) plus 1,2,3. Worker ids cycle mod 3.
	assert.Equal(t, types.TreeletID(1), Uniform(0, 4))
	assert.Equal(t, types.TreeletID(2), Uniform(1, 4))
	assert.Equal(t, types.TreeletID(3), Uniform(2, 4))
	assert.Equal(t, types.TreeletID(1), Uniform(3, 4))
}

func TestStaticPlacementAssignsHeaviestToMostFreeSpace(t *testing.T) {
	workers := []*types.WorkerRecord{
		{ID: 1, FreeBytes: 100},
		{ID: 2, FreeBytes: 500},
	}
	probs := map[types.TreeletID]float64{10: 0.1, 20: 0.9}

	placement, err := StaticPlacement([]types.TreeletID{10, 20}, probs, workers)
	assert.NoError(t, err)
	assert.Equal(t, types.TreeletID(20), placement[2])
	assert.Equal(t, types.TreeletID(10), placement[1])
}

func TestStaticPlacementAbortsWhenTreeletsOutnumberWorkers(t *testing.T) {
	workers := []*types.WorkerRecord{{ID: 1, FreeBytes: 100}}
	probs := map[types.TreeletID]float64{10: 0.5, 20: 0.5}

	_, err := StaticPlacement([]types.TreeletID{10, 20}, probs, workers)
	assert.ErrorIs(t, err, ErrAssignmentFailed)
}

func TestDynamicNextPicksHighestDemandThatFits(t *testing.T) {
	tr := demand.NewTracker(5)
	start := time.Now()
	tr.Observe(1, 10, 0, start)
	tr.Observe(1, 20, 0, start)
	tr.Observe(1, 10, 1000, start.Add(time.Second)) // treelet 10 is hottest
	tr.Observe(1, 20, 10, start.Add(time.Second))

	sizes := map[types.TreeletID]int64{10: 1 << 30, 20: 1 << 10}

	// Treelet 10 is hotter but too big to fit; 20 should win.
	got, ok := DynamicNext(tr, []types.TreeletID{10, 20}, sizes, 1<<20)
	assert.True(t, ok)
	assert.Equal(t, types.TreeletID(20), got)
}

func TestDynamicNextNoCandidateFits(t *testing.T) {
	tr := demand.NewTracker(5)
	sizes := map[types.TreeletID]int64{10: 1 << 30}
	_, ok := DynamicNext(tr, []types.TreeletID{10}, sizes, 10)
	assert.False(t, ok)
}
