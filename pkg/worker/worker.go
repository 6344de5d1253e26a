// Package worker ties together the ray engine, peer table, and stats
// counters into one process: the handlers here decide what a worker
// does in response to each control message and timer tick, returning
// the Actions a transport-aware runtime must carry out. Like
// pkg/coordinator, this package touches no sockets itself so its
// decision logic is exercised by plain state-transition tests.
package worker

import (
	"fmt"
	"net"

	"github.com/alex-ozdemir/raylet/pkg/peer"
	"github.com/alex-ozdemir/raylet/pkg/rayengine"
	"github.com/alex-ozdemir/raylet/pkg/stats"
	"github.com/alex-ozdemir/raylet/pkg/storage"
	"github.com/alex-ozdemir/raylet/pkg/transport"
	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/alex-ozdemir/raylet/pkg/wire"
)

// Channel selects which socket an Action travels over: the persistent
// TCP connection to the coordinator, or this worker's UDP endpoint.
type Channel int

const (
	ChannelTCP Channel = iota
	ChannelUDP
)

// Action is a send the caller's runtime must perform. PeerAddr is only
// meaningful for ChannelUDP; an empty PeerAddr on a UDP action means
// "send to the coordinator's bound UDP address" rather than a peer's.
type Action struct {
	Channel  Channel
	PeerAddr string
	Opcode   wire.Opcode
	Payload  any
	Mode     transport.Mode
	Priority transport.Priority
}

// Worker holds one worker process's full mutable state: its ray engine,
// its peer table, and its stats/diagnostics accumulators. It is owned
// by exactly one goroutine, the event loop's dispatcher, from the
// moment its Hey arrives.
type Worker struct {
	id types.WorkerID

	tracer rayengine.Tracer
	shader rayengine.Shader

	engine      *rayengine.Engine
	peers       *peer.Table
	counters    *stats.Counters
	diagnostics *stats.Diagnostics
	storageClient *storage.Client

	finishedPolicy types.FinishedRaysPolicy

	seed          uint64
	coordYourSeed uint64
	coordBound    bool

	tile types.Bounds2i

	shuttingDown bool
}

// New creates a worker around tracer/shader (the excluded intersection
// and shading kernels' stand-ins, or production implementations) and a
// storage client for fetching scene objects. The worker has no id of
// its own until HandleHey assigns one.
func New(tracer rayengine.Tracer, shader rayengine.Shader, storageClient *storage.Client, finishedPolicy types.FinishedRaysPolicy) (*Worker, error) {
	seed, err := peer.NewSeed()
	if err != nil {
		return nil, fmt.Errorf("worker: generate seed: %w", err)
	}
	return &Worker{
		tracer:         tracer,
		shader:         shader,
		storageClient:  storageClient,
		finishedPolicy: finishedPolicy,
		peers:          peer.NewTable(),
		diagnostics:    stats.NewDiagnostics(),
		seed:           seed,
	}, nil
}

// ID returns the worker's assigned id, or 0 before Hey arrives.
func (w *Worker) ID() types.WorkerID { return w.id }

// Ready reports whether Hey has been processed and the ray engine is
// live.
func (w *Worker) Ready() bool { return w.engine != nil }

// HandleHey assigns this process's worker id and stands up the ray
// engine and counters, which both need that id to exist.
func (w *Worker) HandleHey(p wire.HeyPayload) {
	w.id = p.WorkerID
	w.counters = stats.NewCounters(w.id)
	w.engine = rayengine.New(w.id, w.tracer, w.shader, w.counters)
}

// HandleGetObjects marks every TREELET key in the list as held locally
// and returns the full key list for the caller to fetch via the
// storage client.
func (w *Worker) HandleGetObjects(p wire.GetObjectsPayload) []types.ObjectKey {
	for _, key := range p.Objects {
		if key.Type == types.ObjectTreelet {
			w.engine.HoldTreelet(types.TreeletID(key.ID))
		}
	}
	return p.Objects
}

// HandleGenerateRays records the assigned tile and enqueues one
// freshly generated camera ray per pixel, via the package's stub
// camera/sampler collaborator.
func (w *Worker) HandleGenerateRays(p wire.GenerateRaysPayload) {
	w.tile = p.Tile
	for _, ray := range GenerateCameraRays(p.Tile) {
		w.engine.Enqueue(ray)
	}
}

// HandleConnectTo opens (or re-requests) a connection to the named
// peer, returning the ConnectionRequest to send.
func (w *Worker) HandleConnectTo(p wire.ConnectToPayload) (Action, error) {
	existing := w.peers.Get(p.WorkerID)
	if existing == nil {
		addr, err := net.ResolveUDPAddr("udp", p.Address)
		if err != nil {
			return Action{}, fmt.Errorf("worker: resolve peer address %s: %w", p.Address, err)
		}
		existing, err = w.peers.Create(p.WorkerID, addr)
		if err != nil {
			return Action{}, fmt.Errorf("worker: connect to %d: %w", p.WorkerID, err)
		}
	}
	return Action{
		Channel:  ChannelUDP,
		PeerAddr: p.Address,
		Opcode:   wire.OpConnectionRequest,
		Payload:  wire.ConnectionRequestPayload{WorkerID: w.id, MySeed: existing.MySeed, YourSeed: existing.YourSeed},
		Mode:     transport.Reliable,
		Priority: transport.High,
	}, nil
}

// HandleConnectionRequest answers an inbound peer handshake datagram,
// creating a table entry for the dialer if none exists yet.
func (w *Worker) HandleConnectionRequest(from types.WorkerID, fromAddr *net.UDPAddr, p wire.ConnectionRequestPayload) (Action, error) {
	pe := w.peers.Get(from)
	if pe == nil {
		var err error
		pe, err = w.peers.Create(from, fromAddr)
		if err != nil {
			return Action{}, fmt.Errorf("worker: handle connection request from %d: %w", from, err)
		}
	}
	pe.OnConnectionRequest(p.MySeed)

	return Action{
		Channel:  ChannelUDP,
		PeerAddr: fromAddr.String(),
		Opcode:   wire.OpConnectionResponse,
		Payload: wire.ConnectionResponsePayload{
			WorkerID:   w.id,
			MySeed:     pe.MySeed,
			YourSeed:   p.MySeed,
			TreeletIDs: w.engine.HeldTreelets(),
		},
		Mode:     transport.Reliable,
		Priority: transport.High,
	}, nil
}

// HandleConnectionResponse completes (or validates) a handshake this
// worker initiated, and, once connected, feeds the peer's advertised
// treelets into the ray engine's routing table.
func (w *Worker) HandleConnectionResponse(from types.WorkerID, p wire.ConnectionResponsePayload) {
	pe := w.peers.Get(from)
	if pe == nil {
		return
	}
	if !pe.OnConnectionResponse(p.YourSeed, p.TreeletIDs) {
		return
	}
	for _, id := range p.TreeletIDs {
		w.engine.UpdateHolders(id, w.peers.HoldersOf(id))
	}
}

// HandleCoordinatorConnectionResponse completes the worker's UDP
// binding handshake with the coordinator, distinct from a peer
// handshake because the coordinator is not a routable ray destination.
func (w *Worker) HandleCoordinatorConnectionResponse(p wire.ConnectionResponsePayload) {
	w.coordYourSeed = p.MySeed
	w.coordBound = true
}

// BindRequest builds the ConnectionRequest this worker sends (and
// resends, until bound) to register its UDP address with the
// coordinator.
func (w *Worker) BindRequest() Action {
	return Action{
		Channel:  ChannelUDP,
		Opcode:   wire.OpConnectionRequest,
		Payload:  wire.ConnectionRequestPayload{WorkerID: w.id, MySeed: w.seed, YourSeed: w.coordYourSeed},
		Mode:     transport.Reliable,
		Priority: transport.High,
	}
}

// CoordinatorBound reports whether the UDP binding handshake has
// completed.
func (w *Worker) CoordinatorBound() bool { return w.coordBound }

// PeerAddr returns the UDP address of a connected peer, for the
// runtime to address an outbound ray batch to.
func (w *Worker) PeerAddr(id types.WorkerID) (*net.UDPAddr, bool) {
	pe := w.peers.Get(id)
	if pe == nil {
		return nil, false
	}
	return pe.UDPAddr, true
}

// HandleSendRays unpacks a record-framed batch of forwarded rays into
// the local work queue.
func (w *Worker) HandleSendRays(payload []byte) error {
	reader := wire.NewRecordReader(payload)
	var n uint64
	for {
		var ray types.RayState
		ok, err := reader.Next(&ray)
		if err != nil {
			return fmt.Errorf("worker: decode SendRays: %w", err)
		}
		if !ok {
			break
		}
		w.engine.Enqueue(ray)
		n++
	}
	w.counters.AddRaysReceived(n)
	return nil
}

// HandleBye records that the coordinator has said Bye, which
// ShuttingDown then reports. Nothing else acts on it: the worker keeps
// accepting ray work and the runtime's event loop keeps running.
func (w *Worker) HandleBye() { w.shuttingDown = true }

// ShuttingDown reports whether Bye has been received.
func (w *Worker) ShuttingDown() bool { return w.shuttingDown }

// Step advances the ray engine by up to maxRays.
func (w *Worker) Step(maxRays int) error { return w.engine.Step(maxRays) }

// FlushOutbound packs every routed-but-unsent ray into MTU-sized
// batches ready to hand to the transport.
func (w *Worker) FlushOutbound() []rayengine.OutboundBatch { return w.engine.FlushOutbound() }

// CollectFinished drains the finished-ray queue once it crosses its
// threshold, honoring the configured forward/discard policy. It
// returns nil, false if nothing is ready or the policy discards
// locally; AddFinishedPaths has already been credited either way by
// the engine itself.
func (w *Worker) CollectFinished() ([]types.FinishedSample, bool) {
	if !w.engine.ShouldDrainFinished() {
		return nil, false
	}
	drained := w.engine.DrainFinished()
	if w.finishedPolicy == types.FinishedRaysDiscard {
		return nil, false
	}
	return drained, true
}

// PeerUpkeep advances the peer connection FSM: it retries or expires
// every Connecting peer, and asks the coordinator for a holder of any
// treelet the ray engine needs but hasn't already requested.
func (w *Worker) PeerUpkeep() []Action {
	var actions []Action

	for _, p := range w.peers.Connecting() {
		if p.RetryOrExpire() {
			w.peers.Remove(p.WorkerID)
			continue
		}
		actions = append(actions, Action{
			Channel:  ChannelUDP,
			PeerAddr: p.UDPAddr.String(),
			Opcode:   wire.OpConnectionRequest,
			Payload:  wire.ConnectionRequestPayload{WorkerID: w.id, MySeed: p.MySeed, YourSeed: p.YourSeed},
			Mode:     transport.Reliable,
			Priority: transport.High,
		})
	}

	for _, id := range w.engine.NeededTreelets() {
		actions = append(actions, Action{
			Channel: ChannelTCP,
			Opcode:  wire.OpGetWorker,
			Payload: wire.GetWorkerPayload{TreeletID: id},
		})
		w.engine.MarkRequested(id)
	}

	return actions
}

// StatsSnapshot builds this interval's WorkerStats payload and resets
// the counters for the next one.
func (w *Worker) StatsSnapshot() wire.WorkerStatsPayload {
	snap := w.counters.Snapshot(w.engine.QueueStats())
	w.counters.Reset()
	return snap
}

// Diagnostics exposes the worker's diagnostics accumulator, e.g. for
// RequestDiagnostics handling in the runtime.
func (w *Worker) Diagnostics() *stats.Diagnostics { return w.diagnostics }

// StorageClient exposes the worker's object-store client for the
// runtime to fetch newly assigned objects through.
func (w *Worker) StorageClient() *storage.Client { return w.storageClient }
