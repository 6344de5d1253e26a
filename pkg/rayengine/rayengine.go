// Package rayengine implements a worker's ray-processing core: the
// local trace/shade step loop, the routing decision that sends a ray to
// a local queue, a peer, or the pending-peer-discovery queue, and the
// outbound flush that packs routed rays into MTU-sized datagrams.
package rayengine

import (
	"fmt"
	"math/rand"

	"github.com/alex-ozdemir/raylet/pkg/stats"
	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/alex-ozdemir/raylet/pkg/wire"
)

// Tracer advances a ray through the local acceleration structure: it
// pops/pushes toVisit frames and sets Hit when an intersection is
// found. Production binaries supply their own implementation backed by
// the excluded intersection kernel; tests and the reference cmd/
// binaries use a stub.
type Tracer interface {
	Trace(ray types.RayState) (types.RayState, error)
}

// Shader turns a hit into zero or more continuation rays: typically a
// bounce ray and/or a shadow ray toward a sampled light. It consumes
// RemainingBounces.
type Shader interface {
	Shade(ray types.RayState) ([]types.RayState, error)
}

// finishedQueueDrainThreshold is the depth at which the finished queue
// is flushed to the coordinator (or discarded), per §4.4.
const finishedQueueDrainThreshold = 1000

// datagramBudget is the record-payload budget inside one 1400-byte UDP
// datagram once the 5-byte wire frame header is accounted for.
const datagramBudget = 1400 - 5

// OutboundBatch is one packed datagram's worth of routed rays, addressed
// to a single peer by its worker id.
type OutboundBatch struct {
	Peer    types.WorkerID
	Payload []byte
	Count   int
}

// Engine holds one worker's ray-processing state. Like every other
// mutable core in this system, an Engine is owned by exactly one
// goroutine, the event loop's dispatcher.
type Engine struct {
	workerID types.WorkerID
	tracer   Tracer
	shader   Shader
	counters *stats.Counters
	rng      *rand.Rand

	treeletIDs      map[types.TreeletID]bool
	treeletToWorker map[types.TreeletID][]types.WorkerID

	rayQueue      []types.RayState
	outQueue      map[types.TreeletID][]types.RayState
	pendingQueue  map[types.TreeletID][]types.RayState
	finishedQueue []types.FinishedSample

	neededTreelets    map[types.TreeletID]bool
	requestedTreelets map[types.TreeletID]bool
}

// New creates an engine for workerID backed by tracer and shader.
// Counters is the stats sink every finished path and routed ray is
// credited to.
func New(workerID types.WorkerID, tracer Tracer, shader Shader, counters *stats.Counters) *Engine {
	return &Engine{
		workerID:          workerID,
		tracer:            tracer,
		shader:            shader,
		counters:          counters,
		rng:               rand.New(rand.NewSource(int64(workerID) + 1)),
		treeletIDs:        make(map[types.TreeletID]bool),
		treeletToWorker:   make(map[types.TreeletID][]types.WorkerID),
		outQueue:          make(map[types.TreeletID][]types.RayState),
		pendingQueue:      make(map[types.TreeletID][]types.RayState),
		neededTreelets:    make(map[types.TreeletID]bool),
		requestedTreelets: make(map[types.TreeletID]bool),
	}
}

// HoldTreelet marks id as held locally: rays routed to it stay on this
// worker instead of being forwarded.
func (e *Engine) HoldTreelet(id types.TreeletID) {
	e.treeletIDs[id] = true
}

// HoldsTreelet reports whether id is held locally.
func (e *Engine) HoldsTreelet(id types.TreeletID) bool {
	return e.treeletIDs[id]
}

// HeldTreelets returns every treelet id held locally, advertised to a
// peer as part of the connection handshake so it can route rays here
// directly instead of via the coordinator.
func (e *Engine) HeldTreelets() []types.TreeletID {
	out := make([]types.TreeletID, 0, len(e.treeletIDs))
	for id := range e.treeletIDs {
		out = append(out, id)
	}
	return out
}

// Enqueue adds a ray to the local work queue, e.g. a freshly generated
// camera ray or one received from a peer's SendRays.
func (e *Engine) Enqueue(ray types.RayState) {
	e.rayQueue = append(e.rayQueue, ray)
}

// RayQueueLen reports the depth of the local work queue.
func (e *Engine) RayQueueLen() int { return len(e.rayQueue) }

// UpdateHolders records that the given workers now hold treelet id. If
// this is the treelet's first known holder, any rays parked in
// pendingQueue[id] move into outQueue[id] and id is cleared from
// neededTreelets/requestedTreelets.
func (e *Engine) UpdateHolders(id types.TreeletID, workers []types.WorkerID) {
	hadHolder := len(e.treeletToWorker[id]) > 0
	e.treeletToWorker[id] = append([]types.WorkerID(nil), workers...)

	if !hadHolder && len(workers) > 0 {
		if pending := e.pendingQueue[id]; len(pending) > 0 {
			e.outQueue[id] = append(e.outQueue[id], pending...)
			delete(e.pendingQueue, id)
		}
		delete(e.neededTreelets, id)
		delete(e.requestedTreelets, id)
	}
}

// NeededTreelets returns the treelets with rays waiting on a holder
// that have not yet been requested from the coordinator.
func (e *Engine) NeededTreelets() []types.TreeletID {
	var out []types.TreeletID
	for id := range e.neededTreelets {
		if !e.requestedTreelets[id] {
			out = append(out, id)
		}
	}
	return out
}

// MarkRequested records that GetWorker{id} has been sent, so the
// peer-request path does not resend it every tick while it's
// outstanding.
func (e *Engine) MarkRequested(id types.TreeletID) {
	e.requestedTreelets[id] = true
}

// Step drains up to maxRays rays from the local work queue, applying
// the trace/shade/route decision to each.
func (e *Engine) Step(maxRays int) error {
	n := 0
	for n < maxRays && len(e.rayQueue) > 0 {
		ray := e.rayQueue[0]
		e.rayQueue = e.rayQueue[1:]
		if err := e.processOne(ray); err != nil {
			return err
		}
		n++
	}
	return nil
}

func (e *Engine) processOne(ray types.RayState) error {
	switch {
	case len(ray.ToVisit) > 0:
		traced, err := e.tracer.Trace(ray)
		if err != nil {
			return fmt.Errorf("rayengine: trace: %w", err)
		}
		return e.classify(traced)

	case ray.Hit != nil:
		continuations, err := e.shader.Shade(ray)
		if err != nil {
			return fmt.Errorf("rayengine: shade: %w", err)
		}
		for _, c := range continuations {
			if err := e.route(c); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("rayengine: %w: ray has neither toVisit nor hit", wire.ErrProtocolViolation)
	}
}

// classify applies the post-Trace decision table from §4.4.
func (e *Engine) classify(ray types.RayState) error {
	escaped := len(ray.ToVisit) == 0 && ray.Hit == nil

	switch {
	case ray.IsShadowRay && (ray.Hit != nil || len(ray.ToVisit) == 0):
		if ray.Hit != nil {
			ray.Ld = types.Spectrum{}
		}
		e.finish(ray)
		return nil

	case escaped:
		ray.Ld = types.Spectrum{}
		e.finish(ray)
		return nil

	default:
		return e.route(ray)
	}
}

func (e *Engine) finish(ray types.RayState) {
	e.finishedQueue = append(e.finishedQueue, types.FinishedSample{
		PFilm:  ray.Sample.PFilm,
		L:      ray.Ld,
		Weight: ray.Sample.Weight,
	})
	e.counters.AddFinishedPaths(1)
}

// route sends ray to its next treelet's destination: the local queue if
// held here, otherwise the outbound queue for a known holder, otherwise
// the pending queue until a holder is discovered.
func (e *Engine) route(ray types.RayState) error {
	next, ok := ray.NextTreelet()
	if !ok {
		return fmt.Errorf("rayengine: %w: ray has no next treelet to route to", wire.ErrProtocolViolation)
	}

	if e.treeletIDs[next] {
		e.rayQueue = append(e.rayQueue, ray)
		return nil
	}

	if holders := e.treeletToWorker[next]; len(holders) > 0 {
		e.outQueue[next] = append(e.outQueue[next], ray)
		return nil
	}

	e.pendingQueue[next] = append(e.pendingQueue[next], ray)
	e.neededTreelets[next] = true
	return nil
}

// FlushOutbound packs every non-empty outbound queue into as many
// datagram-sized batches as needed, each addressed to one holder of
// that treelet chosen uniformly at random. Rays that don't fit in the
// current datagram roll over into the next one to the same peer.
func (e *Engine) FlushOutbound() []OutboundBatch {
	var batches []OutboundBatch

	for treelet, queue := range e.outQueue {
		if len(queue) == 0 {
			continue
		}
		holders := e.treeletToWorker[treelet]
		if len(holders) == 0 {
			continue
		}
		peer := holders[e.rng.Intn(len(holders))]

		rw := wire.NewRecordWriter()
		sent := 0
		for _, ray := range queue {
			fits, err := rw.WouldFit(ray, datagramBudget)
			if err != nil {
				continue
			}
			if !fits {
				if rw.Len() > 0 {
					batches = append(batches, OutboundBatch{Peer: peer, Payload: rw.Bytes(), Count: sent})
				}
				rw = wire.NewRecordWriter()
				sent = 0
				if ok, _ := rw.WouldFit(ray, datagramBudget); !ok {
					continue // a single ray too large for any datagram; drop it
				}
			}
			if err := rw.Append(ray); err != nil {
				continue
			}
			sent++
		}
		if rw.Len() > 0 {
			batches = append(batches, OutboundBatch{Peer: peer, Payload: rw.Bytes(), Count: sent})
		}
		delete(e.outQueue, treelet)
		e.counters.AddRaysSent(uint64(len(queue)))
	}

	return batches
}

// FinishedQueueLen reports the current depth of the finished queue.
func (e *Engine) FinishedQueueLen() int { return len(e.finishedQueue) }

// ShouldDrainFinished reports whether the finished queue has crossed
// the drain threshold.
func (e *Engine) ShouldDrainFinished() bool {
	return len(e.finishedQueue) > finishedQueueDrainThreshold
}

// DrainFinished empties and returns the finished queue.
func (e *Engine) DrainFinished() []types.FinishedSample {
	out := e.finishedQueue
	e.finishedQueue = nil
	return out
}

// QueueStats reports the current depth of every named queue, for the
// WorkerStats payload.
func (e *Engine) QueueStats() wire.QueueStats {
	out := 0
	for _, q := range e.outQueue {
		out += len(q)
	}
	pending := 0
	for _, q := range e.pendingQueue {
		pending += len(q)
	}
	return wire.QueueStats{
		Ray:      len(e.rayQueue),
		Out:      out,
		Pending:  pending,
		Finished: len(e.finishedQueue),
	}
}
