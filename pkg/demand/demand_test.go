package demand

import (
	"testing"
	"time"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestRateEstimatorFirstObservationIsBaseline(t *testing.T) {
	est := NewRateEstimator(5)
	est.Observe(100, time.Now())
	assert.Equal(t, 0.0, est.Rate())
}

func TestRateEstimatorTracksPositiveRate(t *testing.T) {
	est := NewRateEstimator(5)
	start := time.Now()
	est.Observe(0, start)
	est.Observe(100, start.Add(time.Second))

	assert.Greater(t, est.Rate(), 0.0)
}

func TestRateEstimatorIgnoresNonPositiveElapsed(t *testing.T) {
	est := NewRateEstimator(5)
	now := time.Now()
	est.Observe(0, now)
	est.Observe(100, now) // zero elapsed, should be a no-op
	assert.Equal(t, 0.0, est.Rate())
}

func TestRateEstimatorTreatsCounterResetAsZeroDelta(t *testing.T) {
	est := NewRateEstimator(5)
	start := time.Now()
	est.Observe(1000, start)
	est.Observe(10, start.Add(time.Second)) // counter went backward
	assert.Equal(t, 0.0, est.Rate())
}

func TestTrackerAggregatesAcrossWorkersAndTreelets(t *testing.T) {
	tr := NewTracker(5)
	start := time.Now()

	tr.Observe(1, 10, 0, start)
	tr.Observe(2, 10, 0, start)
	tr.Observe(1, 20, 0, start)

	tr.Observe(1, 10, 100, start.Add(time.Second))
	tr.Observe(2, 10, 50, start.Add(time.Second))
	tr.Observe(1, 20, 30, start.Add(time.Second))

	assert.Greater(t, tr.ByTreelet(10), 0.0)
	assert.Greater(t, tr.ByWorker(1), 0.0)
	assert.Greater(t, tr.Total(), 0.0)

	// Treelet 10's demand should reflect both workers.
	assert.Greater(t, tr.ByTreelet(10), tr.RateFor(1, 10))
}

func TestHighestUnmetDemandPicksLargest(t *testing.T) {
	tr := NewTracker(5)
	start := time.Now()

	tr.Observe(1, 1, 0, start)
	tr.Observe(1, 2, 0, start)
	tr.Observe(1, 1, 10, start.Add(time.Second))
	tr.Observe(1, 2, 1000, start.Add(time.Second))

	best, ok := tr.HighestUnmetDemand([]types.TreeletID{1, 2})
	assert.True(t, ok)
	assert.Equal(t, types.TreeletID(2), best)
}

func TestHighestUnmetDemandNoCandidates(t *testing.T) {
	tr := NewTracker(5)
	_, ok := tr.HighestUnmetDemand(nil)
	assert.False(t, ok)
}
