// Package stats aggregates a worker's per-interval ray counters into the
// WorkerStats report sent to the coordinator, and tracks scoped timing
// intervals for diagnostics.
package stats

import (
	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/alex-ozdemir/raylet/pkg/wire"
)

// Counters accumulates one worker's ray and byte activity between stats
// intervals. Like every other piece of mutable worker state, a Counters
// is owned by the event loop's dispatcher goroutine.
type Counters struct {
	workerID types.WorkerID

	raysSent      uint64
	raysReceived  uint64
	raysWaiting   uint64
	raysProcessed uint64
	raysDemanded  uint64
	raysSending   uint64
	raysPending   uint64
	finishedPaths uint64

	treelet map[types.TreeletID]uint64

	bytesSent     uint64
	bytesReceived uint64
}

// NewCounters creates a zeroed counter set for workerID.
func NewCounters(workerID types.WorkerID) *Counters {
	return &Counters{workerID: workerID, treelet: make(map[types.TreeletID]uint64)}
}

func (c *Counters) AddRaysSent(n uint64)      { c.raysSent += n }
func (c *Counters) AddRaysReceived(n uint64)  { c.raysReceived += n }
func (c *Counters) AddRaysWaiting(n uint64)   { c.raysWaiting += n }
func (c *Counters) AddRaysProcessed(n uint64) { c.raysProcessed += n }
func (c *Counters) AddRaysDemanded(n uint64)  { c.raysDemanded += n }
func (c *Counters) AddRaysSending(n uint64)   { c.raysSending += n }
func (c *Counters) AddRaysPending(n uint64)   { c.raysPending += n }
func (c *Counters) AddFinishedPaths(n uint64) { c.finishedPaths += n }
func (c *Counters) AddBytesSent(n uint64)     { c.bytesSent += n }
func (c *Counters) AddBytesReceived(n uint64) { c.bytesReceived += n }

// AddTreelet credits n processed rays to treelet id's per-treelet
// counter; this is the breakdown the coordinator feeds into pkg/demand.
func (c *Counters) AddTreelet(id types.TreeletID, n uint64) {
	c.treelet[id] += n
}

// Snapshot builds the WorkerStats payload for the current interval,
// given the caller's live queue depths (queues are not owned by
// Counters, so they must be supplied at snapshot time).
func (c *Counters) Snapshot(queues wire.QueueStats) wire.WorkerStatsPayload {
	treelet := make(map[types.TreeletID]uint64, len(c.treelet))
	for k, v := range c.treelet {
		treelet[k] = v
	}
	return wire.WorkerStatsPayload{
		WorkerID:        c.workerID,
		RaysSent:        c.raysSent,
		RaysReceived:    c.raysReceived,
		RaysWaiting:     c.raysWaiting,
		RaysProcessed:   c.raysProcessed,
		RaysDemanded:    c.raysDemanded,
		RaysSending:     c.raysSending,
		RaysPending:     c.raysPending,
		FinishedPaths:   c.finishedPaths,
		TreeletCounters: treelet,
		Queues:          queues,
		BytesSent:       c.bytesSent,
		BytesReceived:   c.bytesReceived,
	}
}

// Reset zeros every counter, ready for the next interval. Per-treelet
// entries are cleared rather than the map being reallocated, keeping
// memory use flat across the worker's lifetime.
func (c *Counters) Reset() {
	c.raysSent = 0
	c.raysReceived = 0
	c.raysWaiting = 0
	c.raysProcessed = 0
	c.raysDemanded = 0
	c.raysSending = 0
	c.raysPending = 0
	c.finishedPaths = 0
	c.bytesSent = 0
	c.bytesReceived = 0
	for k := range c.treelet {
		delete(c.treelet, k)
	}
}
