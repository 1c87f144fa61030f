package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks DecaySource,TreasurySource,WalletDirectory,EligibilityChecker,Aggregator,Enqueuer,AttestationSubmitter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	attestmodels "dividend/internal/attestation/models"
	"dividend/internal/epoch/freeze"
	"dividend/internal/epoch/models"
	"dividend/internal/epoch/service/mocks"
	"dividend/internal/epoch/store"
	integritymodels "dividend/internal/integrity/models"
	"dividend/internal/ubi/pool"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/audit"
	"dividend/pkg/platform/audit/publisher"
	auditmemory "dividend/pkg/platform/audit/store/memory"
	"dividend/pkg/platform/sentinel"
	"dividend/pkg/requestcontext"
)

// =============================================================================
// Orchestrator Test Suite
// =============================================================================
// Justification for unit tests: the transition order, the GI halt and the
// unfreeze-on-every-path rule are the safety properties of the whole system.
// External sources are mocked; the store and freeze guard are the real
// in-memory ones so state can be inspected after each path.

type OrchestratorSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	decay       *mocks.MockDecaySource
	treasury    *mocks.MockTreasurySource
	wallets     *mocks.MockWalletDirectory
	eligibility *mocks.MockEligibilityChecker
	aggregator  *mocks.MockAggregator
	enqueuer    *mocks.MockEnqueuer
	attestor    *mocks.MockAttestationSubmitter
	store       *store.InMemoryStore
	guard       *freeze.MemoryGuard
	auditLog    *auditmemory.InMemoryStore
	orch        *Orchestrator
	ctx         context.Context
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.decay = mocks.NewMockDecaySource(s.ctrl)
	s.treasury = mocks.NewMockTreasurySource(s.ctrl)
	s.wallets = mocks.NewMockWalletDirectory(s.ctrl)
	s.eligibility = mocks.NewMockEligibilityChecker(s.ctrl)
	s.aggregator = mocks.NewMockAggregator(s.ctrl)
	s.enqueuer = mocks.NewMockEnqueuer(s.ctrl)
	s.attestor = mocks.NewMockAttestationSubmitter(s.ctrl)
	s.store = store.NewInMemory()
	s.guard = freeze.NewMemoryGuard()
	s.auditLog = auditmemory.NewInMemoryStore()

	var err error
	s.orch, err = New(s.store, s.guard, s.collaborators(), s.enqueuer, pool.DefaultPolicy(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditEmitter(publisher.NewPublisher(s.auditLog)),
		WithAggregationWindow(30, 100),
	)
	s.Require().NoError(err)

	now := time.Date(2026, 7, 1, 0, 5, 0, 0, time.UTC)
	s.ctx = requestcontext.WithOperator(requestcontext.WithTime(context.Background(), now), "ops@example.org")
}

func (s *OrchestratorSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *OrchestratorSuite) collaborators() Collaborators {
	return Collaborators{
		Decay:       s.decay,
		Treasury:    s.treasury,
		Wallets:     s.wallets,
		Eligibility: s.eligibility,
		Aggregator:  s.aggregator,
		Attestor:    s.attestor,
	}
}

// expectSources primes the sources for an epoch whose raw pool is 2.6e12
// shards and whose circulating cap is 2.4e12, split across three wallets.
func (s *OrchestratorSuite) expectSources(gi float64) {
	s.decay.EXPECT().Decay(gomock.Any(), gomock.Any()).
		Return(models.DecayResult{DecayedShards: 2_000_000_000_000, ReabsorbedShards: 1_000_000_000_000}, nil)
	s.aggregator.EXPECT().TimeWeightedAverage(gomock.Any(), 30, 100).
		Return(integritymodels.Aggregate{Value: gi, SampleCount: 120, Sufficient: true}, nil)
	s.treasury.EXPECT().Treasury(gomock.Any(), gomock.Any()).
		Return(models.TreasuryFigures{
			NetIssuance: 10_000_000_000_000,
			Reserves:    200_000_000_000_000,
			Circulating: 240_000_000_000_000,
		}, nil)
	s.wallets.EXPECT().Wallets(gomock.Any()).Return([]string{"w-3", "w-1", "w-2", "w-1"}, nil)
	s.eligibility.EXPECT().Eligible(gomock.Any(), []string{"w-1", "w-2", "w-3"}).
		Return([]string{"w-1", "w-2", "w-3"}, nil)
}

func (s *OrchestratorSuite) auditCount(action audit.AuditEvent) int {
	return len(s.auditLog.ListByAction(s.ctx, action))
}

func (s *OrchestratorSuite) requireUnfrozen() {
	status, err := s.guard.Status(s.ctx)
	s.Require().NoError(err)
	s.False(status.Frozen, "maintenance freeze must be released")
}

func (s *OrchestratorSuite) TestNew() {
	policy := pool.DefaultPolicy()
	s.Run("nil store", func() {
		_, err := New(nil, s.guard, s.collaborators(), s.enqueuer, policy)
		s.ErrorContains(err, "epoch store is required")
	})
	s.Run("nil guard", func() {
		_, err := New(s.store, nil, s.collaborators(), s.enqueuer, policy)
		s.ErrorContains(err, "freeze guard is required")
	})
	s.Run("missing collaborator", func() {
		collab := s.collaborators()
		collab.Attestor = nil
		_, err := New(s.store, s.guard, collab, s.enqueuer, policy)
		s.ErrorContains(err, "attestation submitter is required")
	})
	s.Run("default window matches the aggregator", func() {
		o, err := New(s.store, s.guard, s.collaborators(), s.enqueuer, policy)
		s.Require().NoError(err)
		s.Equal(integritymodels.DefaultLookbackDays, o.lookbackDays)
		s.Equal(integritymodels.DefaultMinSamples, o.minSamples)
		s.Equal(defaultAbandonAfter, o.abandonAfter)
	})
	s.Run("invalid policy", func() {
		bad := pool.DefaultPolicy()
		bad.Thresholds.Bonus.Min = 0.5
		_, err := New(s.store, s.guard, s.collaborators(), s.enqueuer, bad)
		s.ErrorContains(err, "invalid pool policy")
	})
}

func (s *OrchestratorSuite) TestTransitionDistributesAndAttests() {
	s.expectSources(0.96)
	s.enqueuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(3, nil)
	s.attestor.EXPECT().Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub attestmodels.Submission) (attestmodels.Result, error) {
			s.Equal(int64(1), sub.Epoch)
			s.Equal(0.96, sub.GIUsed)
			s.Equal(int64(1_000_000_000_000), sub.Decay.ReabsorbedShards)
			s.Equal(attestmodels.UBI{PoolTotal: 2_400_000_000_000, PerCapita: 800_000_000_000, Recipients: 3}, sub.UBI)

			var meta map[string]string
			s.Require().NoError(json.Unmarshal(sub.Meta, &meta))
			s.Equal("2026-07", meta["month_key"])
			s.Equal("normal", meta["tier"])
			s.NotEmpty(meta["run_id"])
			s.Equal(requestcontext.Now(s.ctx).UTC(), sub.IssuedAt)
			return attestmodels.Result{Epoch: sub.Epoch, Status: attestmodels.OutcomeCreated, ContentHash: "abc"}, nil
		})

	e, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.Require().NoError(err)

	s.Equal(int64(1), e.Number)
	s.Equal(models.StateAttested, e.State)
	s.Equal("2026-07", e.MonthKey)
	s.Require().NotNil(e.Pool)
	s.Equal(int64(2_400_000_000_000), e.Pool.PoolTotal)
	s.Equal(pool.CappedByCirculating, e.Pool.CappedBy)
	s.Require().NotNil(e.RunID)

	stored, err := s.store.GetEpoch(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(models.StateAttested, stored.State)

	summary, err := s.orch.RunSummary(s.ctx, *e.RunID)
	s.Require().NoError(err)
	s.Equal(models.RunSettling, summary.Run.Status)
	s.Equal(3, summary.Counts[models.PayoutPending])

	payouts, err := s.store.ListPayouts(s.ctx, *e.RunID)
	s.Require().NoError(err)
	s.Require().Len(payouts, 3)
	for _, p := range payouts {
		s.Equal(int64(800_000_000_000), p.AmountShards)
	}

	s.requireUnfrozen()
	s.Equal(1, s.auditCount(audit.EventMaintenanceFrozen))
	s.Equal(1, s.auditCount(audit.EventMaintenanceUnfrozen))
	s.Equal(1, s.auditCount(audit.EventEpochTransitioned))
}

func (s *OrchestratorSuite) TestRequestOverridesAggregationWindow() {
	s.decay.EXPECT().Decay(gomock.Any(), int64(1)).Return(models.DecayResult{}, nil)
	s.aggregator.EXPECT().TimeWeightedAverage(gomock.Any(), 7, 10).
		Return(integritymodels.Aggregate{}, dErrors.New(dErrors.CodeNoSamplesInWindow, "no samples"))

	e, err := s.orch.Transition(s.ctx, TransitionRequest{LookbackDays: 7, MinSamples: 10})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNoSamplesInWindow))
	s.Equal(models.StateFailed, e.State)
	s.requireUnfrozen()
}

func (s *OrchestratorSuite) TestGIBelowHaltPausesDistribution() {
	s.expectSources(0.89)

	e, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeGIBelowHalt))

	s.Equal(models.StateUnfrozen, e.State)
	s.True(e.Paused())
	s.Nil(e.RunID)
	s.Contains(e.Reason, "below the halt threshold")
	s.Require().NotNil(e.Pool)
	s.Zero(e.Pool.PoolTotal)
	s.requireUnfrozen()
	s.Equal(1, s.auditCount(audit.EventEpochHalted))
	s.Zero(s.auditCount(audit.EventEpochTransitioned))

	s.Run("halted epoch cannot be attested", func() {
		_, err := s.orch.RetryAttestation(s.ctx, e.Number)
		s.True(dErrors.Is(err, dErrors.CodeGIBelowHalt))
	})
}

func (s *OrchestratorSuite) TestDecayFailureFailsEpochAndUnfreezes() {
	s.decay.EXPECT().Decay(gomock.Any(), int64(1)).Return(models.DecayResult{}, errors.New("ledger unreachable"))

	e, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.Require().Error(err)
	s.Equal(dErrors.CodeProviderUnavailable, dErrors.CodeOf(err))
	s.Equal(models.StateFailed, e.State)
	s.Contains(e.LastError, "ledger unreachable")
	s.requireUnfrozen()
	s.Equal(1, s.auditCount(audit.EventEpochFailed))

	s.Run("failed epoch consumes its number", func() {
		s.decay.EXPECT().Decay(gomock.Any(), int64(2)).Return(models.DecayResult{}, errors.New("still down"))
		next, err := s.orch.Transition(s.ctx, TransitionRequest{})
		s.Require().Error(err)
		s.Equal(int64(2), next.Number)
	})
}

func (s *OrchestratorSuite) TestInvalidDecayFiguresFailEpoch() {
	s.decay.EXPECT().Decay(gomock.Any(), int64(1)).
		Return(models.DecayResult{DecayedShards: 10, ReabsorbedShards: 11}, nil)

	e, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	s.Equal(models.StateFailed, e.State)
	s.requireUnfrozen()
}

func (s *OrchestratorSuite) TestEnqueueFailureFailsRun() {
	s.expectSources(0.96)
	s.enqueuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(0, errors.New("outbox unavailable"))

	e, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.Require().Error(err)
	s.Equal(models.StateFailed, e.State)
	s.Require().NotNil(e.RunID)

	run, err := s.store.GetRun(s.ctx, *e.RunID)
	s.Require().NoError(err)
	s.Equal(models.RunFailed, run.Status)
	s.NotNil(run.FinishedAt)
	s.requireUnfrozen()
}

func (s *OrchestratorSuite) TestNoEligibleWalletsSettlesEmptyRun() {
	s.decay.EXPECT().Decay(gomock.Any(), int64(1)).Return(models.DecayResult{}, nil)
	s.aggregator.EXPECT().TimeWeightedAverage(gomock.Any(), 30, 100).
		Return(integritymodels.Aggregate{Value: 0.97, SampleCount: 200}, nil)
	s.treasury.EXPECT().Treasury(gomock.Any(), int64(1)).
		Return(models.TreasuryFigures{NetIssuance: 1_000_000, Reserves: 1_000_000_000, Circulating: 1_000_000_000}, nil)
	s.wallets.EXPECT().Wallets(gomock.Any()).Return(nil, nil)
	s.eligibility.EXPECT().Eligible(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.attestor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(attestmodels.Result{Status: attestmodels.OutcomeCreated}, nil)

	e, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.Require().NoError(err)
	s.Equal(models.StateAttested, e.State)
	s.Require().NotNil(e.RunID)

	run, err := s.store.GetRun(s.ctx, *e.RunID)
	s.Require().NoError(err)
	s.Equal(models.RunSettled, run.Status)
	s.Zero(run.Recipients)
}

func (s *OrchestratorSuite) TestPoolBelowOneShardPerWalletReportsRecipients() {
	s.decay.EXPECT().Decay(gomock.Any(), int64(1)).Return(models.DecayResult{}, nil)
	s.aggregator.EXPECT().TimeWeightedAverage(gomock.Any(), 30, 100).
		Return(integritymodels.Aggregate{Value: 0.96, SampleCount: 200, Sufficient: true}, nil)
	s.treasury.EXPECT().Treasury(gomock.Any(), int64(1)).
		Return(models.TreasuryFigures{NetIssuance: 10, Reserves: 1_000_000_000, Circulating: 1_000_000_000}, nil)
	s.wallets.EXPECT().Wallets(gomock.Any()).Return([]string{"w-1", "w-2", "w-3"}, nil)
	s.eligibility.EXPECT().Eligible(gomock.Any(), gomock.Any()).Return([]string{"w-1", "w-2", "w-3"}, nil)
	s.attestor.EXPECT().Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub attestmodels.Submission) (attestmodels.Result, error) {
			s.Zero(sub.UBI.PerCapita)
			s.Equal(int64(3), sub.UBI.Recipients)
			return attestmodels.Result{Status: attestmodels.OutcomeCreated}, nil
		})

	e, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.Require().NoError(err)
	s.Equal(models.StateAttested, e.State)
	s.Require().NotNil(e.Pool)
	s.Equal(e.Pool.PoolTotal, e.Pool.Remainder, "the whole pool is retained")

	run, err := s.store.GetRun(s.ctx, *e.RunID)
	s.Require().NoError(err)
	s.Equal(models.RunSettled, run.Status)
	s.Equal(int64(3), run.Recipients)
	payouts, err := s.store.ListPayouts(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Empty(payouts)
}

func (s *OrchestratorSuite) TestAttestationFailureLeavesEpochUnfrozen() {
	s.expectSources(0.96)
	s.enqueuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(3, nil)
	s.attestor.EXPECT().Submit(gomock.Any(), gomock.Any()).
		Return(attestmodels.Result{}, dErrors.New(dErrors.CodeProviderUnavailable, "attestation endpoint down"))

	e, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.Require().NoError(err)
	s.Equal(models.StateUnfrozen, e.State)
	s.Contains(e.AttestationError, "attestation endpoint down")
	s.requireUnfrozen()

	s.Run("retry attests the epoch", func() {
		s.attestor.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(attestmodels.Result{Status: attestmodels.OutcomeCreated}, nil)
		retried, err := s.orch.RetryAttestation(s.ctx, e.Number)
		s.Require().NoError(err)
		s.Equal(models.StateAttested, retried.State)
		s.Empty(retried.AttestationError)
	})

	s.Run("retry of an attested epoch is a no-op", func() {
		again, err := s.orch.RetryAttestation(s.ctx, e.Number)
		s.Require().NoError(err)
		s.Equal(models.StateAttested, again.State)
	})
}

func (s *OrchestratorSuite) TestRetryAttestationRejectsOtherStates() {
	s.Require().NoError(s.store.CreateEpoch(s.ctx, models.Epoch{Number: 1, State: models.StateFailed}))

	_, err := s.orch.RetryAttestation(s.ctx, 1)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	_, err = s.orch.RetryAttestation(s.ctx, 99)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *OrchestratorSuite) TestConcurrentTransitionIsRejected() {
	started := make(chan struct{})
	release := make(chan struct{})
	s.decay.EXPECT().Decay(gomock.Any(), int64(1)).
		DoAndReturn(func(context.Context, int64) (models.DecayResult, error) {
			close(started)
			<-release
			return models.DecayResult{}, errors.New("stop here")
		})

	done := make(chan error, 1)
	go func() {
		_, err := s.orch.Transition(s.ctx, TransitionRequest{})
		done <- err
	}()
	<-started

	_, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	_, err = s.orch.SetMaintenance(s.ctx, false)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	close(release)
	s.Error(<-done)
	s.requireUnfrozen()
}

func (s *OrchestratorSuite) TestHeldFreezeBlocksTransition() {
	s.Require().NoError(s.guard.Freeze(s.ctx, 0))

	_, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	_, err = s.store.LatestEpoch(s.ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *OrchestratorSuite) TestAbandonedEpochIsFailedBeforeNextTransition() {
	runID := uuid.New()
	s.Require().NoError(s.store.CreateEpoch(s.ctx, models.Epoch{Number: 4, MonthKey: "2026-06", State: models.StateDistributing, RunID: &runID}))
	s.Require().NoError(s.store.CreateRun(s.ctx, models.Run{ID: runID, Epoch: 4, MonthKey: "2026-06", Status: models.RunPrepared}, nil))

	s.decay.EXPECT().Decay(gomock.Any(), int64(5)).Return(models.DecayResult{}, errors.New("stop here"))
	e, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.Require().Error(err)
	s.Equal(int64(5), e.Number)

	stale, err := s.store.GetEpoch(s.ctx, 4)
	s.Require().NoError(err)
	s.Equal(models.StateFailed, stale.State)
	s.Equal(reasonAbandoned, stale.LastError)

	run, err := s.store.GetRun(s.ctx, runID)
	s.Require().NoError(err)
	s.Equal(models.RunFailed, run.Status)
}

func (s *OrchestratorSuite) TestRecentlyUpdatedEpochIsNotRecovered() {
	now := requestcontext.Now(s.ctx)
	s.Require().NoError(s.store.CreateEpoch(s.ctx, models.Epoch{Number: 4, State: models.StateDistributing, UpdatedAt: now.Add(-time.Minute)}))

	_, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	e, err := s.store.GetEpoch(s.ctx, 4)
	s.Require().NoError(err)
	s.Equal(models.StateDistributing, e.State)
	s.Empty(e.LastError)
	_, err = s.store.GetEpoch(s.ctx, 5)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Zero(s.auditCount(audit.EventEpochFailed))
}

// unfreezeHook runs a callback right after the freeze is cleared, standing in
// for another process that was waiting on it.
type unfreezeHook struct {
	freeze.Guard
	after func()
}

func (g *unfreezeHook) Unfreeze(ctx context.Context) error {
	err := g.Guard.Unfreeze(ctx)
	if after := g.after; after != nil {
		g.after = nil
		after()
	}
	return err
}

func (s *OrchestratorSuite) TestEpochIsStoredUnfrozenBeforeFreezeIsCleared() {
	hook := &unfreezeHook{Guard: s.guard}
	first, err := New(s.store, hook, s.collaborators(), s.enqueuer, pool.DefaultPolicy(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditEmitter(publisher.NewPublisher(s.auditLog)),
		WithAggregationWindow(30, 100),
	)
	s.Require().NoError(err)

	s.expectSources(0.96)
	s.enqueuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(3, nil)
	s.attestor.EXPECT().Submit(gomock.Any(), gomock.Any()).
		Return(attestmodels.Result{Status: attestmodels.OutcomeCreated}, nil)
	s.decay.EXPECT().Decay(gomock.Any(), int64(2)).Return(models.DecayResult{}, errors.New("stop here"))

	var (
		second    models.Epoch
		secondErr error
	)
	hook.after = func() {
		stored, err := s.store.GetEpoch(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(models.StateUnfrozen, stored.State)
		second, secondErr = s.orch.Transition(s.ctx, TransitionRequest{})
	}

	e, err := first.Transition(s.ctx, TransitionRequest{})
	s.Require().NoError(err)
	s.Equal(models.StateAttested, e.State)

	s.Require().Error(secondErr)
	s.Equal(int64(2), second.Number)

	stored, err := s.store.GetEpoch(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(models.StateAttested, stored.State)
	for _, ev := range s.auditLog.ListByAction(s.ctx, audit.EventEpochFailed) {
		s.NotEqual("epoch:1", ev.Subject)
	}
}

func (s *OrchestratorSuite) TestStaleWriterCannotOverwriteFailedEpoch() {
	s.expectSources(0.96)
	s.enqueuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, uuid.UUID) (int, error) {
			// another process gives up on the epoch while this one is still distributing
			e, err := s.store.GetEpoch(s.ctx, 1)
			s.Require().NoError(err)
			e.Fail(errors.New(reasonAbandoned), requestcontext.Now(s.ctx))
			s.Require().NoError(s.store.SaveEpoch(s.ctx, e, models.StateDistributing))
			return 3, nil
		})

	_, err := s.orch.Transition(s.ctx, TransitionRequest{})
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	stored, err := s.store.GetEpoch(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(models.StateFailed, stored.State)
	s.Equal(reasonAbandoned, stored.LastError)
	s.Zero(s.auditCount(audit.EventEpochTransitioned))
	s.requireUnfrozen()
}

func (s *OrchestratorSuite) TestManualMaintenance() {
	status, err := s.orch.SetMaintenance(s.ctx, true)
	s.Require().NoError(err)
	s.True(status.Frozen)

	_, err = s.guard.Acquire(s.ctx)
	s.True(dErrors.Is(err, dErrors.CodeFrozen))

	status, err = s.orch.SetMaintenance(s.ctx, false)
	s.Require().NoError(err)
	s.False(status.Frozen)
	s.Equal(1, s.auditCount(audit.EventMaintenanceFrozen))
	s.Equal(1, s.auditCount(audit.EventMaintenanceUnfrozen))
}

func (s *OrchestratorSuite) TestList() {
	for n := int64(1); n <= 3; n++ {
		s.Require().NoError(s.store.CreateEpoch(s.ctx, models.Epoch{Number: n, State: models.StateAttested}))
	}

	epochs, err := s.orch.List(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(epochs, 2)
	s.Equal(int64(3), epochs[0].Number)

	_, err = s.orch.List(s.ctx, 0)
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
}
