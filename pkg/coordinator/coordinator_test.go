package coordinator

import (
	"testing"
	"time"

	"github.com/alex-ozdemir/raylet/pkg/scene"
	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/alex-ozdemir/raylet/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest() *scene.Manifest {
	return &scene.Manifest{
		Objects: []scene.ManifestEntry{
			{Type: types.ObjectScene, ID: 1, SizeBytes: 10},
			{Type: types.ObjectCamera, ID: 1, SizeBytes: 10},
			{Type: types.ObjectSampler, ID: 1, SizeBytes: 10},
			{Type: types.ObjectLights, ID: 1, SizeBytes: 10},
			{Type: types.ObjectTreelet, ID: 0, SizeBytes: 100},
			{Type: types.ObjectTreelet, ID: 1, SizeBytes: 200},
			{Type: types.ObjectTreelet, ID: 2, SizeBytes: 300},
		},
		TreeletProbs: map[types.TreeletID]float64{1: 0.7, 2: 0.3},
	}
}

func newTestCoordinator(t *testing.T, mode types.AssignmentMode) *Coordinator {
	t.Helper()
	reg := scene.NewRegistry()
	require.NoError(t, reg.LoadManifest(testManifest()))

	c, err := New(reg, NewStubFilm(), Config{
		NumberOfWorkers: 2,
		SampleBounds:    types.Bounds2i{PMax: types.Point2i{X: 100, Y: 100}},
		AssignmentMode:  mode,
		TreeletProbs:    testManifest().TreeletProbs,
	})
	require.NoError(t, err)
	return c
}

func TestRegisterWorkerAssignsIDObjectsAndTile(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)

	rec, actions, err := c.RegisterWorker("10.0.0.1:9000")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerID(1), rec.ID)
	assert.True(t, rec.Treelets[0])
	assert.True(t, rec.Treelets[2]) // uniform: worker 1 -> treelet 1 + (1%2) = 2

	var sawHey, sawObjects, sawRays bool
	for _, a := range actions {
		switch a.Opcode {
		case wire.OpHey:
			sawHey = true
		case wire.OpGetObjects:
			sawObjects = true
		case wire.OpGenerateRays:
			sawRays = true
		}
	}
	assert.True(t, sawHey)
	assert.True(t, sawObjects)
	assert.True(t, sawRays)

	_, _, err = c.RegisterWorker("10.0.0.2:9000")
	require.NoError(t, err)
	assert.Equal(t, 2, c.WorkerCount())
}

func TestRegisterWorkerUniformCyclesTreelets(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)

	rec1, _, err := c.RegisterWorker("a")
	require.NoError(t, err)
	rec2, _, err := c.RegisterWorker("b")
	require.NoError(t, err)

	assert.True(t, rec1.Treelets[2]) // worker 1 -> 1 + (1%2) = 2
	assert.True(t, rec2.Treelets[1]) // worker 2 -> 1 + (2%2) = 1
}

func TestFinalizeStaticAssignmentWaitsForBatchThreshold(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentStatic)

	_, _, err := c.RegisterWorker("a")
	require.NoError(t, err)

	actions, err := c.FinalizeStaticAssignment()
	require.NoError(t, err)
	assert.Empty(t, actions, "only 1/2 workers registered, below the 90%% threshold")

	_, _, err = c.RegisterWorker("b")
	require.NoError(t, err)

	actions, err = c.FinalizeStaticAssignment()
	require.NoError(t, err)
	assert.NotEmpty(t, actions)

	w1, _ := c.Worker(1)
	w2, _ := c.Worker(2)
	total := len(w1.Treelets) + len(w2.Treelets)
	assert.Equal(t, 4, total) // each holds root(0) + one assigned non-root treelet
}

func TestHandleConnectionRequestRejectsUnknownWorker(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)
	_, err := c.HandleConnectionRequest(99, "1.2.3.4:5", wire.ConnectionRequestPayload{})
	assert.ErrorIs(t, err, ErrUnexpectedPeer)
}

func TestHandleConnectionRequestBindsAndRepliesAlways(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)
	_, _, err := c.RegisterWorker("a")
	require.NoError(t, err)

	actions, err := c.HandleConnectionRequest(1, "1.2.3.4:5000", wire.ConnectionRequestPayload{WorkerID: 1, MySeed: 42})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, wire.OpConnectionResponse, actions[0].Opcode)
	resp := actions[0].Payload.(wire.ConnectionResponsePayload)
	assert.Equal(t, types.WorkerID(0), resp.WorkerID)
	assert.Equal(t, uint64(42), resp.YourSeed)

	w, _ := c.Worker(1)
	assert.Equal(t, "1.2.3.4:5000", w.UDPAddr)
}

func TestHandleConnectionRequestCompletesTopologyOnFirstBind(t *testing.T) {
	reg := scene.NewRegistry()
	require.NoError(t, reg.LoadManifest(testManifest()))
	c, err := New(reg, NewStubFilm(), Config{
		NumberOfWorkers:  2,
		SampleBounds:     types.Bounds2i{PMax: types.Point2i{X: 10, Y: 10}},
		AssignmentMode:   types.AssignmentUniform,
		CompleteTopology: true,
	})
	require.NoError(t, err)

	_, _, err = c.RegisterWorker("a")
	require.NoError(t, err)
	_, _, err = c.RegisterWorker("b")
	require.NoError(t, err)

	_, err = c.HandleConnectionRequest(1, "addr1", wire.ConnectionRequestPayload{WorkerID: 1})
	require.NoError(t, err)

	actions, err := c.HandleConnectionRequest(2, "addr2", wire.ConnectionRequestPayload{WorkerID: 2})
	require.NoError(t, err)

	var connectTos int
	for _, a := range actions {
		if a.Opcode == wire.OpConnectTo {
			connectTos++
		}
	}
	assert.Equal(t, 2, connectTos, "worker 2's first bind should fan out ConnectTo in both directions")
}

func TestProcessWorkerRequestBatchConnectsToHolder(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)
	_, _, err := c.RegisterWorker("a")
	require.NoError(t, err)
	_, _, err = c.RegisterWorker("b")
	require.NoError(t, err)
	_, err = c.HandleConnectionRequest(1, "addr1", wire.ConnectionRequestPayload{WorkerID: 1})
	require.NoError(t, err)
	_, err = c.HandleConnectionRequest(2, "addr2", wire.ConnectionRequestPayload{WorkerID: 2})
	require.NoError(t, err)

	c.EnqueueWorkerRequest(1, 1) // worker 1 wants treelet 1, held by worker 2

	actions := c.ProcessWorkerRequestBatch()
	require.Len(t, actions, 2)
	assert.Equal(t, wire.OpConnectTo, actions[0].Opcode)
}

func TestProcessWorkerRequestBatchRequeuesWithNoHolder(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)
	_, _, err := c.RegisterWorker("a")
	require.NoError(t, err)
	_, _, err = c.RegisterWorker("b")
	require.NoError(t, err)

	c.EnqueueWorkerRequest(1, 7) // no worker holds treelet 7
	actions := c.ProcessWorkerRequestBatch()
	assert.Empty(t, actions)
	assert.Len(t, c.requests, 1)
}

func TestHandleWorkerStatsFeedsDemandTracker(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)
	now := time.Now()
	c.HandleWorkerStats(1, wire.WorkerStatsPayload{TreeletCounters: map[types.TreeletID]uint64{2: 10}}, now)
	c.HandleWorkerStats(1, wire.WorkerStatsPayload{TreeletCounters: map[types.TreeletID]uint64{2: 20}}, now.Add(time.Second))
	assert.Greater(t, c.demandTracker.ByTreelet(2), 0.0)
}

func TestHandleFinishedRaysAccumulatesIntoFilm(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)
	c.HandleFinishedRays([]types.FinishedSample{
		{PFilm: types.Point2f{X: 1, Y: 1}, L: types.Spectrum{R: 1}, Weight: 1},
	})
	film := c.film.(*StubFilm)
	assert.Equal(t, 1, film.PixelCount())
}

func TestShutdownBroadcastsByeToEveryWorker(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)
	_, _, err := c.RegisterWorker("a")
	require.NoError(t, err)
	_, _, err = c.RegisterWorker("b")
	require.NoError(t, err)

	actions := c.Shutdown()
	require.Len(t, actions, 2)
	for _, a := range actions {
		assert.Equal(t, wire.OpBye, a.Opcode)
	}
}

func TestStatusReportsCounts(t *testing.T) {
	c := newTestCoordinator(t, types.AssignmentUniform)
	_, _, err := c.RegisterWorker("a")
	require.NoError(t, err)
	assert.Contains(t, c.Status(), "workers=1/2")
}
