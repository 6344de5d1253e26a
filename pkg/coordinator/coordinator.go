// Package coordinator implements the control-plane process that
// launches workers, maintains the global treelet-to-worker topology,
// services peer-discovery requests, and accumulates finished samples
// into the output image.
package coordinator

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/alex-ozdemir/raylet/pkg/assign"
	"github.com/alex-ozdemir/raylet/pkg/demand"
	"github.com/alex-ozdemir/raylet/pkg/events"
	"github.com/alex-ozdemir/raylet/pkg/metrics"
	"github.com/alex-ozdemir/raylet/pkg/peer"
	"github.com/alex-ozdemir/raylet/pkg/scene"
	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/alex-ozdemir/raylet/pkg/wire"
)

// initialWorkerFreeBytes is the per-worker memory budget debited by
// every treelet assignment, e.g. a 200 MB worker memory allowance.
const initialWorkerFreeBytes = 200 << 20

// batchThreshold is the fraction of expected workers that must have
// registered before pending WorkerRequests are processed as a batch.
const batchThreshold = 0.9

// Action is a side effect the caller (the event-loop dispatcher wired
// to a real transport) must carry out: send Payload, framed as Opcode,
// to Target.
type Action struct {
	Target  types.WorkerID
	Opcode  wire.Opcode
	Payload any
}

// Coordinator holds the control plane's full mutable state. Like every
// other core in this system, it is owned by exactly one goroutine: the
// event loop's dispatcher.
type Coordinator struct {
	seed uint64

	registry *scene.Registry
	mode     types.AssignmentMode
	probs    map[types.TreeletID]float64

	numberOfWorkers uint32
	sampleBounds    types.Bounds2i
	completeTopology bool

	film Film

	nextWorkerID types.WorkerID
	workers      map[types.WorkerID]*types.WorkerRecord

	demandTracker *demand.Tracker

	requests []workerRequest

	rng *rand.Rand

	events *events.Broker
}

type workerRequest struct {
	from    types.WorkerID
	treelet types.TreeletID
}

// Config bundles the parameters fixed at coordinator construction.
type Config struct {
	NumberOfWorkers  uint32
	SampleBounds     types.Bounds2i
	AssignmentMode   types.AssignmentMode
	TreeletProbs     map[types.TreeletID]float64
	CompleteTopology bool
}

// New creates a coordinator over registry and film, configured per cfg.
func New(registry *scene.Registry, film Film, cfg Config) (*Coordinator, error) {
	seed, err := peer.NewSeed()
	if err != nil {
		return nil, fmt.Errorf("coordinator: generate seed: %w", err)
	}
	broker := events.NewBroker()
	broker.Start()

	c := &Coordinator{
		seed:             seed,
		registry:         registry,
		mode:             cfg.AssignmentMode,
		probs:            cfg.TreeletProbs,
		numberOfWorkers:  cfg.NumberOfWorkers,
		sampleBounds:     cfg.SampleBounds,
		completeTopology: cfg.CompleteTopology,
		film:             film,
		nextWorkerID:     1,
		workers:          make(map[types.WorkerID]*types.WorkerRecord),
		demandTracker:    demand.NewTracker(0),
		rng:              rand.New(rand.NewSource(int64(seed))),
		events:           broker,
	}
	c.events.Publish(&events.Event{
		Type:    events.EventSceneRegistered,
		Message: fmt.Sprintf("%d treelets, %d base objects", len(registry.TreeletIDs()), len(assign.BaseObjects(registry.Objects()))),
	})
	return c, nil
}

// Events returns the coordinator's event broker, for a runtime to
// subscribe to and log or export what happens inside the control
// plane without threading a logger through every decision method.
func (c *Coordinator) Events() *events.Broker { return c.events }

// StopEvents shuts down the event broker. Call once, after the
// runtime has no further use for the coordinator.
func (c *Coordinator) StopEvents() { c.events.Stop() }

// Seed returns the coordinator's session seed, echoed in every
// ConnectionResponse it sends as the peer-handshake side-channel that
// detects stale replies after a restart.
func (c *Coordinator) Seed() uint64 { return c.seed }

// Worker returns the registration record for id, if any.
func (c *Coordinator) Worker(id types.WorkerID) (*types.WorkerRecord, bool) {
	w, ok := c.workers[id]
	return w, ok
}

// WorkerCount returns the number of registered workers.
func (c *Coordinator) WorkerCount() int { return len(c.workers) }

// Workers returns every registered worker record, satisfying
// pkg/metrics's TopologySource interface.
func (c *Coordinator) Workers() []types.WorkerRecord {
	out := make([]types.WorkerRecord, 0, len(c.workers))
	for _, w := range c.workers {
		out = append(out, *w)
	}
	return out
}

// Treelets satisfies the other half of pkg/metrics's TopologySource.
func (c *Coordinator) Treelets() []types.Treelet {
	return c.registry.Treelets()
}

// RegisterWorker accepts a new TCP connection, assigns the next
// worker id, a tile, base objects, and (in uniform mode) an initial
// treelet; in static and dynamic mode only the shared root is assigned
// here. It returns the actions the caller must send back
// over that worker's TCP connection.
func (c *Coordinator) RegisterWorker(tcpAddr string) (*types.WorkerRecord, []Action, error) {
	id := c.nextWorkerID
	c.nextWorkerID++

	rec := &types.WorkerRecord{
		ID:          id,
		TCPAddr:     tcpAddr,
		Objects:     make(map[types.ObjectKey]bool),
		Treelets:    make(map[types.TreeletID]bool),
		FreeBytes:   initialWorkerFreeBytes,
		State:       types.ConnConnected,
		ConnectedAt: time.Now(),
	}
	c.workers[id] = rec

	var actions []Action
	actions = append(actions, Action{Target: id, Opcode: wire.OpHey, Payload: wire.HeyPayload{WorkerID: id}})

	objects := assign.BaseObjects(c.registry.Objects())
	for _, key := range objects {
		rec.Objects[key] = true
		if err := c.registry.MarkObjectHolder(key, id); err != nil {
			return nil, nil, fmt.Errorf("coordinator: mark base object holder: %w", err)
		}
	}

	treeletIDs := c.registry.TreeletIDs()
	if len(treeletIDs) > 0 {
		rec.Treelets[0] = true // treelet 0, the shared root, belongs to every worker
		if err := c.registry.MarkHolder(0, id); err != nil {
			return nil, nil, fmt.Errorf("coordinator: mark root treelet holder: %w", err)
		}
	}

	if c.mode == types.AssignmentUniform && len(treeletIDs) > 1 {
		t := assign.Uniform(id, len(treeletIDs))
		if err := c.assignTreelet(rec, t); err != nil {
			return nil, nil, err
		}
	}

	getObjects := append([]types.ObjectKey(nil), objectKeys(rec.Objects)...)
	for treelet := range rec.Treelets {
		getObjects = append(getObjects, types.ObjectKey{Type: types.ObjectTreelet, ID: uint32(treelet)})
	}
	actions = append(actions, Action{Target: id, Opcode: wire.OpGetObjects, Payload: wire.GetObjectsPayload{Objects: getObjects}})

	if c.numberOfWorkers > 0 {
		tile, err := assign.GetTile(uint32(id-1), c.numberOfWorkers, c.sampleBounds)
		if err != nil {
			return nil, nil, fmt.Errorf("coordinator: compute tile: %w", err)
		}
		rec.Tile = tile
		actions = append(actions, Action{Target: id, Opcode: wire.OpGenerateRays, Payload: wire.GenerateRaysPayload{Tile: tile}})
	}

	c.events.Publish(&events.Event{
		Type:    events.EventWorkerJoined,
		Message: fmt.Sprintf("worker %d registered from %s", id, tcpAddr),
	})

	return rec, actions, nil
}

func (c *Coordinator) assignTreelet(rec *types.WorkerRecord, t types.TreeletID) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

	size, err := c.registry.TotalSize(t)
	if err != nil {
		return fmt.Errorf("coordinator: assign treelet: %w", err)
	}
	if err := c.registry.MarkHolder(t, rec.ID); err != nil {
		return fmt.Errorf("coordinator: assign treelet: %w", err)
	}
	rec.Treelets[t] = true
	rec.FreeBytes -= size
	c.events.Publish(&events.Event{
		Type:    events.EventTreeletAssigned,
		Message: fmt.Sprintf("treelet %d assigned to worker %d", t, rec.ID),
	})
	return nil
}

// FinalizeStaticAssignment runs the one-round static placement once
// enough workers have registered, per §4.9's batching threshold. It is
// a no-op outside static mode or if it has already run.
func (c *Coordinator) FinalizeStaticAssignment() ([]Action, error) {
	if c.mode != types.AssignmentStatic {
		return nil, nil
	}
	if !c.readyForBatch() {
		return nil, nil
	}

	var workers []*types.WorkerRecord
	for _, w := range c.workers {
		if len(w.Treelets) <= 1 { // only the mandatory root so far
			workers = append(workers, w)
		}
	}
	if len(workers) == 0 {
		return nil, nil
	}

	var nonRoot []types.TreeletID
	for _, id := range c.registry.TreeletIDs() {
		if id != 0 {
			nonRoot = append(nonRoot, id)
		}
	}
	if len(nonRoot) == 0 {
		return nil, nil
	}

	placement, err := assign.StaticPlacement(nonRoot, c.probs, workers)
	if err != nil {
		return nil, fmt.Errorf("coordinator: static assignment: %w", err)
	}

	var actions []Action
	for workerID, treelet := range placement {
		rec := c.workers[workerID]
		if err := c.assignTreelet(rec, treelet); err != nil {
			return nil, err
		}
		actions = append(actions, Action{
			Target: workerID,
			Opcode: wire.OpGetObjects,
			Payload: wire.GetObjectsPayload{Objects: []types.ObjectKey{
				{Type: types.ObjectTreelet, ID: uint32(treelet)},
			}},
		})
	}
	c.events.Publish(&events.Event{
		Type:    events.EventAssignmentChanged,
		Message: fmt.Sprintf("static assignment finalized across %d workers", len(placement)),
	})
	return actions, nil
}

func (c *Coordinator) readyForBatch() bool {
	if c.numberOfWorkers == 0 {
		return false
	}
	return float64(len(c.workers))/float64(c.numberOfWorkers) >= batchThreshold
}

// HandleConnectionRequest processes the UDP ConnectionRequest that binds
// or refreshes a worker's UDP address, optionally fanning out ConnectTo
// pairs to complete a full-mesh topology on first bind.
func (c *Coordinator) HandleConnectionRequest(workerID types.WorkerID, fromAddr string, req wire.ConnectionRequestPayload) ([]Action, error) {
	rec, ok := c.workers[workerID]
	if !ok {
		return nil, fmt.Errorf("coordinator: %w: worker %d", ErrUnexpectedPeer, workerID)
	}

	firstBind := rec.UDPAddr == ""
	rec.UDPAddr = fromAddr

	if firstBind {
		c.events.Publish(&events.Event{
			Type:    events.EventWorkerConnected,
			Message: fmt.Sprintf("worker %d bound UDP at %s", workerID, fromAddr),
		})
	}

	var actions []Action
	actions = append(actions, Action{
		Target: workerID,
		Opcode: wire.OpConnectionResponse,
		Payload: wire.ConnectionResponsePayload{
			WorkerID: 0,
			MySeed:   c.seed,
			YourSeed: req.MySeed,
		},
	})

	if firstBind && c.completeTopology {
		for otherID, other := range c.workers {
			if otherID == workerID || other.UDPAddr == "" {
				continue
			}
			actions = append(actions,
				Action{Target: workerID, Opcode: wire.OpConnectTo, Payload: wire.ConnectToPayload{WorkerID: otherID, Address: other.UDPAddr}},
				Action{Target: otherID, Opcode: wire.OpConnectTo, Payload: wire.ConnectToPayload{WorkerID: workerID, Address: fromAddr}},
			)
		}
	}
	return actions, nil
}

// EnqueueWorkerRequest records a worker's GetWorker{treeletId} request
// for batch processing.
func (c *Coordinator) EnqueueWorkerRequest(from types.WorkerID, treelet types.TreeletID) {
	c.requests = append(c.requests, workerRequest{from: from, treelet: treelet})
}

// ProcessWorkerRequestBatch is invoked periodically (the 250 ms
// WorkerRequest batching tick). It is a no-op until readyForBatch
// reports that enough workers have registered, the same threshold
// static assignment waits on, so early GetWorker requests queue up
// rather than racing a topology that's still being built. Once ready,
// it tries to connect each pending requester to a random current
// holder of its requested treelet; requests whose treelet has no
// holder yet stay queued.
func (c *Coordinator) ProcessWorkerRequestBatch() []Action {
	if !c.readyForBatch() {
		return nil
	}

	var actions []Action
	var remaining []workerRequest

	for _, req := range c.requests {
		holders := c.registry.HoldersOf(req.treelet)
		if len(holders) == 0 {
			remaining = append(remaining, req)
			continue
		}
		holder := holders[c.rng.Intn(len(holders))]
		requester := c.workers[req.from]
		holderRec := c.workers[holder]
		if requester == nil || holderRec == nil || requester.UDPAddr == "" || holderRec.UDPAddr == "" {
			remaining = append(remaining, req)
			continue
		}
		actions = append(actions,
			Action{Target: req.from, Opcode: wire.OpConnectTo, Payload: wire.ConnectToPayload{WorkerID: holder, Address: holderRec.UDPAddr}},
			Action{Target: holder, Opcode: wire.OpConnectTo, Payload: wire.ConnectToPayload{WorkerID: req.from, Address: requester.UDPAddr}},
		)
	}
	c.requests = remaining
	return actions
}

// HandleWorkerStats folds a worker's periodic report into the demand
// tracker.
func (c *Coordinator) HandleWorkerStats(from types.WorkerID, stats wire.WorkerStatsPayload, at time.Time) {
	for treelet, count := range stats.TreeletCounters {
		c.demandTracker.Observe(from, treelet, count, at)
	}
}

// HandleFinishedRays merges a batch of finished samples into the film.
func (c *Coordinator) HandleFinishedRays(records []types.FinishedSample) {
	for _, r := range records {
		c.film.AddSample(r.PFilm, r.L, r.Weight)
	}
}

// MergeOutput writes the current film state to path. It is idempotent:
// calling it again simply reflects whatever samples arrived since.
func (c *Coordinator) MergeOutput(path string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.OutputMergeLatency)

	if err := c.film.WriteImage(path); err != nil {
		return err
	}
	c.events.Publish(&events.Event{Type: events.EventOutputMerged, Message: path})
	return nil
}

// Status renders a one-line summary for the periodic status print.
func (c *Coordinator) Status() string {
	connected := 0
	for _, w := range c.workers {
		if w.State == types.ConnConnected {
			connected++
		}
	}
	return fmt.Sprintf("workers=%d/%d connected=%d pendingRequests=%d demand=%.2f",
		len(c.workers), c.numberOfWorkers, connected, len(c.requests), c.demandTracker.Total())
}

// Shutdown returns the Bye actions a clean shutdown broadcasts to every
// registered worker.
func (c *Coordinator) Shutdown() []Action {
	var actions []Action
	for id := range c.workers {
		actions = append(actions, Action{Target: id, Opcode: wire.OpBye})
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Target < actions[j].Target })
	c.events.Publish(&events.Event{Type: events.EventRenderComplete, Message: fmt.Sprintf("%d workers notified", len(actions))})
	return actions
}

// RequestDiagnostics broadcasts RequestDiagnostics to every registered
// worker, used ahead of an optional diagnostics-gathering shutdown.
func (c *Coordinator) RequestDiagnostics() []Action {
	var actions []Action
	for id := range c.workers {
		actions = append(actions, Action{Target: id, Opcode: wire.OpRequestDiagnostics})
	}
	return actions
}

func objectKeys(m map[types.ObjectKey]bool) []types.ObjectKey {
	out := make([]types.ObjectKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
