package metrics

import (
	"strconv"
	"time"

	"github.com/alex-ozdemir/raylet/pkg/types"
)

// TopologySource is implemented by the coordinator to expose the state the
// collector needs without creating an import cycle back into pkg/coordinator.
type TopologySource interface {
	Workers() []types.WorkerRecord
	Treelets() []types.Treelet
}

// Collector periodically samples coordinator state into gauge metrics that
// have no natural call site of their own (holder counts, peer state
// tallies), the way counters and histograms updated inline at the call
// site do not need to be.
type Collector struct {
	source TopologySource
	stopCh chan struct{}
}

// NewCollector creates a collector sampling the given topology source.
func NewCollector(source TopologySource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic sampling on its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectWorkerMetrics()
	c.collectTreeletMetrics()
}

func (c *Collector) collectWorkerMetrics() {
	workers := c.source.Workers()

	stateCounts := make(map[types.ConnState]int)
	connected := 0
	for _, w := range workers {
		stateCounts[w.State]++
		if w.State == types.ConnConnected {
			connected++
		}
	}

	for state, count := range stateCounts {
		PeerState.WithLabelValues(string(state)).Set(float64(count))
	}
	WorkersConnected.Set(float64(connected))
}

func (c *Collector) collectTreeletMetrics() {
	for _, t := range c.source.Treelets() {
		TreeletHolders.WithLabelValues(treeletLabel(t.ID)).Set(float64(len(t.Holders)))
	}
}

func treeletLabel(id types.TreeletID) string {
	return strconv.FormatUint(uint64(id), 10)
}
