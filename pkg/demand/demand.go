// Package demand implements the exponentially-smoothed rate estimators
// the coordinator uses to judge which treelets are in demand.
package demand

import (
	"time"

	"github.com/VividCortex/ewma"
	"github.com/alex-ozdemir/raylet/pkg/types"
)

// defaultHalfLife is the EWMA's smoothing window, expressed as a fixed
// number of samples (the average age VividCortex/ewma's variable-age
// average decays with), not as a wall-clock duration.
const defaultHalfLife = 10 // ~5s at a 500ms WorkerStats cadence

// RateEstimator tracks the smoothed rate of change of a monotonically
// increasing counter: given cumulative samples at wall-clock times, it
// estimates d(counter)/dt in units per second.
type RateEstimator struct {
	avg      ewma.MovingAverage
	lastVal  uint64
	lastTime time.Time
	started  bool
	primed   bool
}

// NewRateEstimator creates an estimator smoothed over roughly
// halfLife samples; halfLife <= 0 selects defaultHalfLife.
func NewRateEstimator(halfLife int) *RateEstimator {
	if halfLife <= 0 {
		halfLife = defaultHalfLife
	}
	return &RateEstimator{avg: ewma.NewMovingAverage(float64(halfLife))}
}

// Observe feeds a new cumulative counter sample. The first observation
// only establishes a baseline; it contributes no rate estimate.
func (r *RateEstimator) Observe(value uint64, at time.Time) {
	if !r.started {
		r.lastVal = value
		r.lastTime = at
		r.started = true
		return
	}

	elapsed := at.Sub(r.lastTime).Seconds()
	if elapsed <= 0 {
		return
	}

	var delta uint64
	if value >= r.lastVal {
		delta = value - r.lastVal
	}
	// A counter that appears to have gone backward (a worker restarted
	// its counters) is treated as a zero-delta sample rather than
	// wrapping to a huge rate.

	rate := float64(delta) / elapsed
	if r.primed {
		r.avg.Add(rate)
	} else {
		// The first rate sample seeds the average, so Rate reports it
		// at once instead of reading zero through ewma's warm-up.
		r.avg.Set(rate)
		r.primed = true
	}
	r.lastVal = value
	r.lastTime = at
}

// Rate returns the current smoothed rate estimate, in units per second.
func (r *RateEstimator) Rate() float64 {
	return r.avg.Value()
}

// Tracker maintains one RateEstimator per (workerID, treeletID) pair,
// plus per-axis sums kept incrementally in sync as estimators update.
type Tracker struct {
	halfLife int

	byWorkerTreelet map[workerTreelet]*RateEstimator
	byWorker        map[types.WorkerID]float64
	byTreelet       map[types.TreeletID]float64
	total           float64
}

type workerTreelet struct {
	worker  types.WorkerID
	treelet types.TreeletID
}

// NewTracker creates an empty demand tracker.
func NewTracker(halfLife int) *Tracker {
	return &Tracker{
		halfLife:        halfLife,
		byWorkerTreelet: make(map[workerTreelet]*RateEstimator),
		byWorker:        make(map[types.WorkerID]float64),
		byTreelet:       make(map[types.TreeletID]float64),
	}
}

// Observe records a new cumulative ray count for (worker, treelet) and
// recomputes the per-worker, per-treelet, and global sums from the
// updated rate.
func (t *Tracker) Observe(worker types.WorkerID, treelet types.TreeletID, count uint64, at time.Time) {
	key := workerTreelet{worker, treelet}
	est, ok := t.byWorkerTreelet[key]
	if !ok {
		est = NewRateEstimator(t.halfLife)
		t.byWorkerTreelet[key] = est
	}

	before := est.Rate()
	est.Observe(count, at)
	after := est.Rate()
	delta := after - before

	t.byWorker[worker] += delta
	t.byTreelet[treelet] += delta
	t.total += delta
}

// RateFor returns the smoothed rate for one (worker, treelet) pair.
func (t *Tracker) RateFor(worker types.WorkerID, treelet types.TreeletID) float64 {
	est, ok := t.byWorkerTreelet[workerTreelet{worker, treelet}]
	if !ok {
		return 0
	}
	return est.Rate()
}

// ByTreelet returns the summed demand rate across all workers for treeletID.
func (t *Tracker) ByTreelet(treeletID types.TreeletID) float64 {
	return t.byTreelet[treeletID]
}

// ByWorker returns the summed demand rate across all treelets for workerID.
func (t *Tracker) ByWorker(workerID types.WorkerID) float64 {
	return t.byWorker[workerID]
}

// Total returns the global demand rate across every (worker, treelet) pair.
func (t *Tracker) Total() float64 {
	return t.total
}

// HighestUnmetDemand returns the treelet id with the largest ByTreelet
// rate among candidates, and reports whether any candidate was given.
// The dynamic assignment mode (pkg/assign) uses this to pick which
// treelet to place next.
func (t *Tracker) HighestUnmetDemand(candidates []types.TreeletID) (types.TreeletID, bool) {
	var best types.TreeletID
	var bestRate float64
	found := false
	for _, c := range candidates {
		rate := t.byTreelet[c]
		if !found || rate > bestRate {
			best = c
			bestRate = rate
			found = true
		}
	}
	return best, found
}
