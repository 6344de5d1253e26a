package health

import (
	"context"
	"time"
)

// CheckType identifies the mechanism a Checker uses to probe a dependency.
type CheckType string

// CheckTypeTCP is the only check type this core implements: a bare TCP
// dial against the dependency's address. Defined as a named type rather
// than inlining "tcp" so a second mechanism (e.g. an HTTP probe against
// a storage backend with a health endpoint) has somewhere to slot in.
const CheckTypeTCP CheckType = "tcp"

// Result represents the outcome of a single health check.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is implemented by anything that can probe a dependency once
// and report what it found.
type Checker interface {
	// Check performs the health check and returns the result.
	Check(ctx context.Context) Result

	// Type returns the check mechanism in use.
	Type() CheckType
}

// Config bundles the knobs around how often a Checker runs and how its
// results are folded into a Status.
type Config struct {
	// Interval is the time between health checks.
	Interval time.Duration

	// Timeout is the maximum time to wait for a health check to complete.
	Timeout time.Duration

	// Retries is the number of consecutive failures before the
	// dependency is marked unhealthy.
	Retries int

	// StartPeriod is the grace period after launch during which a
	// failing check updates LastResult but does not flip Healthy false,
	// so a backend that's merely slow to come up on process start
	// doesn't trip an alert the instant the coordinator starts probing it.
	StartPeriod time.Duration
}

// DefaultConfig returns the interval/timeout/retry settings the
// coordinator's storage-backend monitor runs with.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		Retries:     3,
		StartPeriod: 0,
	}
}

// Status folds a stream of Results for one dependency into a single
// Healthy bit, so a transient dropped connection doesn't flip it on its
// own.
type Status struct {
	// ConsecutiveFailures tracks the number of consecutive failed checks.
	ConsecutiveFailures int

	// ConsecutiveSuccesses tracks the number of consecutive successful checks.
	ConsecutiveSuccesses int

	// LastCheck is the timestamp of the last health check.
	LastCheck time.Time

	// LastResult is the result of the last health check.
	LastResult Result

	// Healthy indicates whether the dependency is currently considered healthy.
	Healthy bool

	// StartedAt is when health monitoring started for this dependency.
	StartedAt time.Time
}

// NewStatus creates a new Status, optimistic until the first check says
// otherwise.
func NewStatus() *Status {
	return &Status{
		Healthy:   true,
		StartedAt: time.Now(),
	}
}

// Update folds a new check result into the status.
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0

	if s.ConsecutiveFailures >= config.Retries && !s.InStartPeriod(config) {
		s.Healthy = false
	}
}

// InStartPeriod reports whether the dependency is still within its
// startup grace window, during which consecutive failures accumulate
// but don't flip Healthy false.
func (s *Status) InStartPeriod(config Config) bool {
	if config.StartPeriod == 0 {
		return false
	}
	return time.Since(s.StartedAt) < config.StartPeriod
}
