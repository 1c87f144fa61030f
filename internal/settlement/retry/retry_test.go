package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 30*time.Second, p.Backoff(1))
	assert.Equal(t, time.Minute, p.Backoff(2))
	assert.Equal(t, 2*time.Minute, p.Backoff(3))
	assert.Equal(t, time.Hour, p.Backoff(20))
	assert.Equal(t, 30*time.Second, p.Backoff(0))
}

func TestExhausted(t *testing.T) {
	p := DefaultPolicy()
	assert.False(t, p.Exhausted(4))
	assert.True(t, p.Exhausted(5))
	assert.True(t, p.Exhausted(6))
}

func TestNormalize(t *testing.T) {
	p := Policy{MaxAttempts: 3}.Normalize()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 30*time.Second, p.BaseDelay)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.Equal(t, 2*time.Minute, p.ClaimLease)
}

func TestTimes(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := DefaultPolicy()
	assert.Equal(t, now.Add(time.Minute), p.NextAttemptAt(now, 2))
	assert.Equal(t, now.Add(-2*time.Minute), p.LeaseExpiry(now))
}
