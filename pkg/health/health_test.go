package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusUpdateMarksHealthyOnFirstSuccess(t *testing.T) {
	s := NewStatus()
	cfg := DefaultConfig()

	s.Update(Result{Healthy: true, CheckedAt: time.Now()}, cfg)

	assert.True(t, s.Healthy)
	assert.Equal(t, 1, s.ConsecutiveSuccesses)
	assert.Equal(t, 0, s.ConsecutiveFailures)
}

func TestStatusUpdateRequiresRetriesBeforeUnhealthy(t *testing.T) {
	s := NewStatus()
	cfg := Config{Retries: 3}

	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.True(t, s.Healthy, "one failure should not yet flip status")

	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.True(t, s.Healthy)

	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.False(t, s.Healthy, "status should flip after reaching the retry threshold")
}

func TestStatusUpdateRecoversAfterSuccess(t *testing.T) {
	s := NewStatus()
	cfg := Config{Retries: 2}

	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.False(t, s.Healthy)

	s.Update(Result{Healthy: true, CheckedAt: time.Now()}, cfg)
	assert.True(t, s.Healthy)
	assert.Equal(t, 0, s.ConsecutiveFailures)
	assert.Equal(t, 1, s.ConsecutiveSuccesses)
}

func TestStatusUpdateWithinStartPeriodStaysHealthy(t *testing.T) {
	s := NewStatus()
	cfg := Config{Retries: 1, StartPeriod: time.Hour}

	for i := 0; i < 5; i++ {
		s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	}

	assert.True(t, s.Healthy, "failures within the start period should not flip status")
	assert.Equal(t, 5, s.ConsecutiveFailures, "failures still accumulate during the start period")
}

func TestInStartPeriod(t *testing.T) {
	s := NewStatus()

	assert.False(t, s.InStartPeriod(Config{StartPeriod: 0}), "zero start period disables the grace window")
	assert.True(t, s.InStartPeriod(Config{StartPeriod: time.Hour}))

	s.StartedAt = time.Now().Add(-2 * time.Hour)
	assert.False(t, s.InStartPeriod(Config{StartPeriod: time.Hour}))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
}
