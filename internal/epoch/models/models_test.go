package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend/internal/ubi/pool"
	dErrors "dividend/pkg/domain-errors"
)

func TestStateTransitions(t *testing.T) {
	path := []State{StateIdle, StateFrozen, StateDecayed, StatePooled, StateDistributing, StateUnfrozen, StateAttested}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, path[i].CanTransitionTo(path[i+1]), "%s → %s", path[i], path[i+1])
		assert.False(t, path[i+1].CanTransitionTo(path[i]), "%s → %s must be rejected", path[i+1], path[i])
	}

	assert.False(t, StateFrozen.CanTransitionTo(StatePooled), "decay cannot be skipped")
	assert.False(t, StateDecayed.CanTransitionTo(StateDistributing), "pooling cannot be skipped")
	assert.True(t, StatePooled.CanTransitionTo(StateUnfrozen), "halt path skips distribution")

	for _, s := range path[:len(path)-1] {
		assert.True(t, s.CanTransitionTo(StateFailed), s)
	}
	assert.False(t, StateAttested.CanTransitionTo(StateFailed))
	assert.False(t, StateFailed.CanTransitionTo(StateIdle))
	assert.False(t, State("bogus").IsValid())
}

func TestEpochAdvanceAndFail(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	e := Epoch{Number: 1, State: StateIdle}

	require.NoError(t, e.Advance(StateFrozen, now))
	err := e.Advance(StateDistributing, now)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))

	e.Fail(errors.New("decay source down"), now)
	assert.Equal(t, StateFailed, e.State)
	assert.Equal(t, "decay source down", e.LastError)

	attested := Epoch{State: StateAttested}
	attested.Fail(errors.New("late"), now)
	assert.Equal(t, StateAttested, attested.State, "terminal states stay put")
}

func TestEpochPaused(t *testing.T) {
	e := Epoch{State: StateUnfrozen, Pool: &pool.Result{Tier: pool.TierHalted}}
	assert.True(t, e.Paused())

	e.Pool = &pool.Result{Tier: pool.TierNormal}
	assert.False(t, e.Paused())
}

func TestDecayValidate(t *testing.T) {
	assert.NoError(t, DecayResult{DecayedShards: 10, ReabsorbedShards: 10}.Validate())
	assert.Error(t, DecayResult{DecayedShards: 1, ReabsorbedShards: 2}.Validate())
	assert.Error(t, DecayResult{DecayedShards: -1}.Validate())
}

func TestRunTransitions(t *testing.T) {
	now := time.Now()
	r := Run{Status: RunPreparing}
	require.NoError(t, r.Advance(RunPrepared, now))
	require.NoError(t, r.Advance(RunSettling, now))
	require.Error(t, r.Advance(RunPreparing, now))
	require.NoError(t, r.Advance(RunSettled, now))
	require.NotNil(t, r.FinishedAt)
	assert.False(t, RunSettled.CanTransitionTo(RunFailed))
}

func TestRunSummaryAllAcked(t *testing.T) {
	assert.False(t, RunSummary{Counts: map[PayoutStatus]int{}}.AllAcked())
	assert.False(t, RunSummary{Counts: map[PayoutStatus]int{PayoutAcked: 2, PayoutDispatched: 1}}.AllAcked())
	assert.True(t, RunSummary{Counts: map[PayoutStatus]int{PayoutAcked: 3}}.AllAcked())
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-02", MonthKey(time.Date(2026, 1, 31, 23, 0, 0, 0, time.FixedZone("x", -3600))))
}

func TestTreasuryFiguresValidate(t *testing.T) {
	assert.NoError(t, TreasuryFigures{NetIssuance: 1, Reserves: 2, Circulating: 3}.Validate())
	err := TreasuryFigures{Reserves: -1}.Validate()
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	err = TreasuryFigures{StabilityMultiplier: -0.1}.Validate()
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
}
