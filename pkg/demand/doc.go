/*
Package demand implements the coordinator's exponentially-smoothed rate
estimators, the input to dynamic treelet assignment.

RateEstimator wraps a VividCortex/ewma moving average fed by
counter-delta-over-elapsed-time samples: each Observe call turns a raw
cumulative counter (rays processed for a treelet, say) into an
instantaneous rate, then folds that rate into the smoothed average.
Tracker maintains one RateEstimator per (workerID, treeletID) pair and
keeps per-worker, per-treelet, and global sums updated incrementally
alongside it, rather than resumming the whole table on every
observation.
*/
package demand
