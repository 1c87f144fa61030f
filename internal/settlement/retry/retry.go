// Package retry holds the bounded retry schedule for outbox delivery. It is
// independent of the HTTP call so the schedule can be tested on its own.
package retry

import (
	"time"
)

// Policy bounds delivery retries. Attempts count every dispatch try,
// including the first.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
	// ClaimLease is how long a claimed entry stays invisible to other
	// dispatchers before it is considered abandoned.
	ClaimLease time.Duration `yaml:"claim_lease" json:"claim_lease"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   30 * time.Second,
		MaxDelay:    time.Hour,
		Multiplier:  2,
		ClaimLease:  2 * time.Minute,
	}
}

// Normalize fills zero fields from the defaults.
func (p Policy) Normalize() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.ClaimLease <= 0 {
		p.ClaimLease = d.ClaimLease
	}
	return p
}

// Exhausted reports whether an entry that has made attempts tries may not be
// retried again.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// Backoff returns the delay after the given attempt (1-based).
// attempt 1 → BaseDelay, attempt 2 → BaseDelay*Multiplier, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// NextAttemptAt is when a failed entry becomes claimable again.
func (p Policy) NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(p.Backoff(attempt))
}

// LeaseExpiry is the instant before which a claimed entry is still owned.
func (p Policy) LeaseExpiry(now time.Time) time.Time {
	return now.Add(-p.ClaimLease)
}
