package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatusStartsHealthy(t *testing.T) {
	s := NewStatus()
	assert.True(t, s.Healthy)
	assert.Equal(t, 0, s.ConsecutiveFailures)
}

func TestStatusUpdateTracksConsecutiveFailures(t *testing.T) {
	s := NewStatus()
	cfg := Config{Retries: 3}

	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.True(t, s.Healthy)
	assert.Equal(t, 1, s.ConsecutiveFailures)

	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.True(t, s.Healthy)

	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.False(t, s.Healthy)
	assert.Equal(t, 3, s.ConsecutiveFailures)
}

func TestStatusUpdateResetsOnSuccess(t *testing.T) {
	s := NewStatus()
	cfg := Config{Retries: 2}

	s.Update(Result{Healthy: false}, cfg)
	s.Update(Result{Healthy: true}, cfg)
	assert.True(t, s.Healthy)
	assert.Equal(t, 0, s.ConsecutiveFailures)
	assert.Equal(t, 1, s.ConsecutiveSuccesses)
}

func TestInStartPeriod(t *testing.T) {
	s := NewStatus()
	cfg := Config{StartPeriod: time.Hour}
	assert.True(t, s.InStartPeriod(cfg))

	cfg.StartPeriod = 0
	assert.False(t, s.InStartPeriod(cfg))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 3, cfg.Retries)
}
