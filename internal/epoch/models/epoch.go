package models

import (
	"time"

	"github.com/google/uuid"

	"dividend/internal/ubi/pool"
	dErrors "dividend/pkg/domain-errors"
)

// ShardsPerCredit is fixed: 1 credit = 1,000,000 shards.
const ShardsPerCredit int64 = 1_000_000

// State is the position of an epoch in its transition.
type State string

const (
	StateIdle         State = "idle"
	StateFrozen       State = "frozen"
	StateDecayed      State = "decayed"
	StatePooled       State = "pooled"
	StateDistributing State = "distributing"
	StateUnfrozen     State = "unfrozen"
	StateAttested     State = "attested"
	StateFailed       State = "failed"
)

var epochTransitions = map[State][]State{
	StateIdle:         {StateFrozen},
	StateFrozen:       {StateDecayed},
	StateDecayed:      {StatePooled},
	StatePooled:       {StateDistributing, StateUnfrozen},
	StateDistributing: {StateUnfrozen},
	StateUnfrozen:     {StateAttested},
}

func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateFrozen, StateDecayed, StatePooled, StateDistributing, StateUnfrozen, StateAttested, StateFailed:
		return true
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateAttested || s == StateFailed
}

// CanTransitionTo enforces the forward-only order
// idle → frozen → decayed → pooled → distributing → unfrozen → attested.
// pooled may skip straight to unfrozen when the GI interlock halts
// distribution. Any non-terminal state may fail.
func (s State) CanTransitionTo(next State) bool {
	if next == StateFailed {
		return !s.IsTerminal()
	}
	for _, allowed := range epochTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DecayResult is the decay source's figures for one epoch.
type DecayResult struct {
	DecayedShards    int64 `json:"decayed_shards"`
	ReabsorbedShards int64 `json:"reabsorbed_shards"`
}

func (d DecayResult) Validate() error {
	if d.DecayedShards < 0 || d.ReabsorbedShards < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "decay figures must be non-negative")
	}
	if d.ReabsorbedShards > d.DecayedShards {
		return dErrors.New(dErrors.CodeInvalidInput, "reabsorbed shards exceed decayed shards")
	}
	return nil
}

// Epoch is the orchestrator's record of one accounting period.
//
// Invariants:
//   - Number is assigned monotonically (previous + 1)
//   - State only moves along CanTransitionTo
//   - RunID is set once distribution has created a run
//   - Reason explains non-failure pauses (GI below halt); LastError explains failures
//   - AttestationError is set while an unfrozen epoch awaits a retried attestation
type Epoch struct {
	Number           int64        `json:"epoch"`
	MonthKey         string       `json:"month_key"`
	State            State        `json:"state"`
	Decay            DecayResult  `json:"decay"`
	GIUsed           float64      `json:"gi_used"`
	Pool             *pool.Result `json:"pool,omitempty"`
	RunID            *uuid.UUID   `json:"run_id,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	LastError        string       `json:"last_error,omitempty"`
	AttestationError string       `json:"attestation_error,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Advance moves the epoch to next, or returns InvariantViolation.
func (e *Epoch) Advance(next State, now time.Time) error {
	if !e.State.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation, "epoch cannot move from "+string(e.State)+" to "+string(next))
	}
	e.State = next
	e.UpdatedAt = now
	return nil
}

// Fail records err and moves the epoch to failed when allowed.
func (e *Epoch) Fail(err error, now time.Time) {
	if err != nil {
		e.LastError = err.Error()
	}
	if e.State.CanTransitionTo(StateFailed) {
		e.State = StateFailed
	}
	e.UpdatedAt = now
}

// Paused reports whether the epoch stopped at the GI interlock.
func (e *Epoch) Paused() bool {
	return e.State == StateUnfrozen && e.RunID == nil && e.Pool != nil && e.Pool.Halted()
}

// MonthKey formats t as YYYY-MM in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
