// Package service runs epoch transitions: freeze, decay, pool, distribute,
// unfreeze and attest, in that order and never out of it.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	attestmodels "dividend/internal/attestation/models"
	"dividend/internal/epoch/freeze"
	"dividend/internal/epoch/metrics"
	"dividend/internal/epoch/models"
	"dividend/internal/platform/tracing"
	"dividend/internal/ubi/pool"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/audit"
	"dividend/pkg/platform/sentinel"
	"dividend/pkg/platform/tx"
	"dividend/pkg/requestcontext"
)

const (
	unfreezeTimeout = 10 * time.Second
	maxListLimit    = 500

	reasonAbandoned = "transition interrupted before completion"
)

// Collaborators are the external sources a transition reads from and the
// attestation endpoint it reports to.
type Collaborators struct {
	Decay       DecaySource
	Treasury    TreasurySource
	Wallets     WalletDirectory
	Eligibility EligibilityChecker
	Aggregator  Aggregator
	Attestor    AttestationSubmitter
}

func (c Collaborators) validate() error {
	switch {
	case c.Decay == nil:
		return errors.New("decay source is required")
	case c.Treasury == nil:
		return errors.New("treasury source is required")
	case c.Wallets == nil:
		return errors.New("wallet directory is required")
	case c.Eligibility == nil:
		return errors.New("eligibility checker is required")
	case c.Aggregator == nil:
		return errors.New("aggregator is required")
	case c.Attestor == nil:
		return errors.New("attestation submitter is required")
	}
	return nil
}

// TransitionRequest overrides the aggregation window for one transition.
// Zero values use the configured defaults.
type TransitionRequest struct {
	LookbackDays int `json:"lookback_days,omitempty"`
	MinSamples   int `json:"min_samples,omitempty"`
}

// Orchestrator owns epochs and runs. Transitions are serialised in process
// by a mutex and across processes by the maintenance freeze.
type Orchestrator struct {
	store      Store
	guard      freeze.Guard
	collab     Collaborators
	enqueuer   Enqueuer
	reconciler *Reconciler
	policy     pool.Policy
	txRunner   tx.Runner

	lookbackDays      int
	minSamples        int
	distributeTimeout time.Duration
	abandonAfter      time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Emitter

	mu sync.Mutex
}

func New(store Store, guard freeze.Guard, collab Collaborators, enqueuer Enqueuer, policy pool.Policy, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("epoch store is required")
	}
	if guard == nil {
		return nil, errors.New("freeze guard is required")
	}
	if enqueuer == nil {
		return nil, errors.New("settlement enqueuer is required")
	}
	if err := collab.validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool policy: %w", err)
	}

	cfg := newConfig(opts)
	reconciler := cfg.reconciler
	if reconciler == nil {
		var err error
		if reconciler, err = NewReconciler(store, opts...); err != nil {
			return nil, err
		}
	}
	return &Orchestrator{
		store:             store,
		guard:             guard,
		collab:            collab,
		enqueuer:          enqueuer,
		reconciler:        reconciler,
		policy:            policy,
		txRunner:          cfg.txRunner,
		lookbackDays:      cfg.lookbackDays,
		minSamples:        cfg.minSamples,
		distributeTimeout: cfg.distributeTimeout,
		abandonAfter:      cfg.abandonAfter,
		logger:            cfg.logger,
		metrics:           cfg.metrics,
		auditor:           cfg.auditor,
	}, nil
}

// Transition runs the next epoch from idle to attested.
//
// The returned epoch reflects where the transition stopped. GIBelowHalt
// leaves it unfrozen with a reason and no run. Other failures leave it
// failed. An attestation failure is not an error: the epoch stays unfrozen
// with AttestationError set until RetryAttestation succeeds.
//
// The outcome is stored before the freeze is cleared, so no other process
// can observe the epoch in flight without the freeze held.
func (o *Orchestrator) Transition(ctx context.Context, req TransitionRequest) (e models.Epoch, err error) {
	if !o.mu.TryLock() {
		return models.Epoch{}, dErrors.New(dErrors.CodeConflict, "an epoch transition is already running")
	}
	defer o.mu.Unlock()
	defer o.metrics.ObserveTransition(time.Now())

	lookback, minSamples := o.lookbackDays, o.minSamples
	if req.LookbackDays > 0 {
		lookback = req.LookbackDays
	}
	if req.MinSamples > 0 {
		minSamples = req.MinSamples
	}

	e, err = o.open(ctx)
	if err != nil {
		return models.Epoch{}, err
	}
	ctx, end := tracing.Track(ctx, "epoch.transition", attribute.Int64("epoch", e.Number))
	defer func() { end(err) }()

	if err := o.guard.Freeze(ctx, e.Number); err != nil {
		ferr := o.conclude(ctx, &e, keepCode(err, dErrors.CodeInternal, "failed to set maintenance freeze"))
		return e, ferr
	}
	o.audit(ctx, audit.EventMaintenanceFrozen, e, "")
	runErr := o.advance(ctx, &e, models.StateFrozen)
	if runErr == nil {
		runErr = o.run(ctx, &e, lookback, minSamples)
	}
	err = o.conclude(ctx, &e, runErr)
	o.release(ctx, e)
	if err != nil {
		return e, err
	}

	if aerr := o.attest(context.WithoutCancel(ctx), &e); aerr != nil {
		o.metrics.IncrementTransition("attestation_pending")
		return e, nil
	}
	o.metrics.IncrementTransition("attested")
	return e, nil
}

// open assigns the next epoch number and records the epoch as idle.
func (o *Orchestrator) open(ctx context.Context) (models.Epoch, error) {
	status, err := o.guard.Status(ctx)
	if err != nil {
		return models.Epoch{}, keepCode(err, dErrors.CodeInternal, "failed to read maintenance status")
	}
	if status.Frozen {
		return models.Epoch{}, dErrors.New(dErrors.CodeConflict, "maintenance freeze is held")
	}

	now := requestcontext.Now(ctx).UTC()
	next := int64(1)

	latest, err := o.store.LatestEpoch(ctx)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
	case err != nil:
		return models.Epoch{}, storeError(err, "epoch")
	default:
		if inFlight(latest.State) {
			if err := o.recoverAbandoned(ctx, latest); err != nil {
				return models.Epoch{}, err
			}
		}
		next = latest.Number + 1
	}

	e := models.Epoch{
		Number:    next,
		MonthKey:  models.MonthKey(now),
		State:     models.StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.CreateEpoch(ctx, e); err != nil {
		return models.Epoch{}, storeError(err, "epoch")
	}
	o.metrics.SetLatestEpoch(e.Number)
	o.logger.InfoContext(ctx, "epoch transition started",
		"epoch", e.Number,
		"month_key", e.MonthKey,
		"request_id", requestcontext.RequestID(ctx),
	)
	return e, nil
}

// recoverAbandoned fails an epoch a crashed process left mid-transition.
// An epoch that moved within abandonAfter may still be running somewhere
// whose freeze expired, so it is left alone. A run that never reached
// settling is failed with it.
func (o *Orchestrator) recoverAbandoned(ctx context.Context, stale models.Epoch) error {
	now := requestcontext.Now(ctx).UTC()
	if now.Sub(stale.UpdatedAt) < o.abandonAfter {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf(
			"epoch %d is %s and was updated %s ago; it may still be running", stale.Number, stale.State, now.Sub(stale.UpdatedAt).Round(time.Second)))
	}

	if stale.RunID != nil {
		run, err := o.store.GetRun(ctx, *stale.RunID)
		if err != nil {
			return storeError(err, "run")
		}
		if run.Status == models.RunPreparing || run.Status == models.RunPrepared {
			if err := o.advanceRun(ctx, &run, models.RunFailed, now); err != nil {
				return err
			}
		}
	}
	from := stale.State
	stale.Fail(errors.New(reasonAbandoned), now)
	if err := o.store.SaveEpoch(ctx, stale, from); err != nil {
		return storeError(err, "epoch")
	}
	o.audit(ctx, audit.EventEpochFailed, stale, reasonAbandoned)
	return nil
}

// run performs decay, pooling and distribution.
func (o *Orchestrator) run(ctx context.Context, e *models.Epoch, lookback, minSamples int) error {
	err := o.step(ctx, "decay", e, func(ctx context.Context) error {
		d, err := o.collab.Decay.Decay(ctx, e.Number)
		if err != nil {
			return keepCode(err, dErrors.CodeProviderUnavailable, "decay source failed")
		}
		if err := d.Validate(); err != nil {
			return err
		}
		e.Decay = d
		return o.advance(ctx, e, models.StateDecayed)
	})
	if err != nil {
		return err
	}

	var eligible []string
	err = o.step(ctx, "pool", e, func(ctx context.Context) error {
		res, wallets, err := o.computePool(ctx, e, lookback, minSamples)
		if err != nil {
			return err
		}
		e.Pool = &res
		eligible = wallets
		o.metrics.SetPoolTotal(res.PoolTotal)
		if err := o.advance(ctx, e, models.StatePooled); err != nil {
			return err
		}
		if res.Halted() {
			return dErrors.New(dErrors.CodeGIBelowHalt, fmt.Sprintf(
				"gi %.3f is below the halt threshold %.2f; distribution paused", e.GIUsed, o.policy.HaltMin()))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Distribution runs to completion or recorded failure even if the caller
	// goes away.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.distributeTimeout)
	defer cancel()
	return o.step(dctx, "distribute", e, func(ctx context.Context) error {
		return o.distribute(ctx, e, eligible)
	})
}

func (o *Orchestrator) computePool(ctx context.Context, e *models.Epoch, lookback, minSamples int) (pool.Result, []string, error) {
	agg, err := o.collab.Aggregator.TimeWeightedAverage(ctx, lookback, minSamples)
	if err != nil {
		return pool.Result{}, nil, keepCode(err, dErrors.CodeInternal, "gi aggregation failed")
	}
	e.GIUsed = agg.Value

	figures, err := o.collab.Treasury.Treasury(ctx, e.Number)
	if err != nil {
		return pool.Result{}, nil, keepCode(err, dErrors.CodeProviderUnavailable, "treasury source failed")
	}
	if err := figures.Validate(); err != nil {
		return pool.Result{}, nil, err
	}

	wallets, err := o.collab.Wallets.Wallets(ctx)
	if err != nil {
		return pool.Result{}, nil, keepCode(err, dErrors.CodeProviderUnavailable, "wallet directory failed")
	}
	slices.Sort(wallets)
	wallets = slices.Compact(wallets)
	eligible, err := o.collab.Eligibility.Eligible(ctx, wallets)
	if err != nil {
		return pool.Result{}, nil, keepCode(err, dErrors.CodeProviderUnavailable, "eligibility check failed")
	}

	in := pool.Inputs{
		Population:          int64(len(eligible)),
		NetIssuance:         figures.NetIssuance,
		ReabsorbedDecay:     e.Decay.ReabsorbedShards,
		Donations:           figures.Donations,
		Reserves:            figures.Reserves,
		Circulating:         figures.Circulating,
		GI:                  agg.Value,
		StabilityMultiplier: figures.StabilityMultiplier,
	}
	res, err := pool.Calculate(in, o.policy)
	if err != nil {
		return pool.Result{}, nil, err
	}
	if err := pool.Verify(res, in, o.policy); err != nil {
		return pool.Result{}, nil, err
	}
	if !res.Halted() && res.Recipients != int64(len(eligible)) {
		return pool.Result{}, nil, dErrors.New(dErrors.CodeInvariantViolation, "pool recipients do not match eligible wallets")
	}

	o.logger.InfoContext(ctx, "epoch pool computed",
		"epoch", e.Number,
		"gi_used", agg.Value,
		"samples", agg.SampleCount,
		"tier", res.Tier,
		"pool_total", res.PoolTotal,
		"per_capita", res.PerCapita,
		"recipients", res.Recipients,
		"capped_by", res.CappedBy,
	)
	return res, eligible, nil
}

type runMeta struct {
	Tier              pool.Tier     `json:"tier"`
	CappedBy          pool.CappedBy `json:"capped_by"`
	AppliedMultiplier float64       `json:"applied_multiplier"`
	Remainder         int64         `json:"remainder"`
}

// distribute creates the run and its payouts in one unit of work, then hands
// them to the outbox. Once enqueued, delivery belongs to the dispatcher.
func (o *Orchestrator) distribute(ctx context.Context, e *models.Epoch, eligible []string) error {
	if err := o.advance(ctx, e, models.StateDistributing); err != nil {
		return err
	}

	now := requestcontext.Now(ctx).UTC()
	res := *e.Pool
	meta, err := json.Marshal(runMeta{
		Tier:              res.Tier,
		CappedBy:          res.CappedBy,
		AppliedMultiplier: res.AppliedMultiplier,
		Remainder:         res.Remainder,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode run metadata")
	}
	run := models.Run{
		ID:         uuid.New(),
		Epoch:      e.Number,
		MonthKey:   e.MonthKey,
		StartedAt:  now,
		Status:     models.RunPreparing,
		GIUsed:     e.GIUsed,
		PoolTotal:  res.PoolTotal,
		PerCapita:  res.PerCapita,
		Recipients: res.Recipients,
		Meta:       meta,
	}
	var payouts []models.Payout
	if res.PerCapita > 0 {
		payouts = make([]models.Payout, 0, len(eligible))
		for _, w := range eligible {
			payouts = append(payouts, models.Payout{
				ID:           uuid.New(),
				RunID:        run.ID,
				Wallet:       w,
				AmountShards: res.PerCapita,
				Status:       models.PayoutPending,
				CreatedAt:    now,
			})
		}
	}

	err = o.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := o.store.CreateRun(ctx, run, payouts); err != nil {
			return err
		}
		prepared := run
		if err := prepared.Advance(models.RunPrepared, now); err != nil {
			return err
		}
		if err := o.store.UpdateRun(ctx, prepared, run.Status); err != nil {
			return err
		}
		run = prepared
		withRun := *e
		withRun.RunID = &run.ID
		withRun.UpdatedAt = now
		return o.store.SaveEpoch(ctx, withRun, e.State)
	})
	if err != nil {
		return storeError(err, "run")
	}
	e.RunID = &run.ID

	if len(payouts) == 0 {
		o.logger.InfoContext(ctx, "run has nothing to distribute", "epoch", e.Number, "run_id", run.ID)
		for _, next := range []models.RunStatus{models.RunSettling, models.RunSettled} {
			if err := o.advanceRun(ctx, &run, next, now); err != nil {
				return err
			}
		}
		return nil
	}

	enqueued, err := o.enqueuer.Enqueue(ctx, run.ID)
	if err != nil {
		o.failRun(ctx, run, err)
		return keepCode(err, dErrors.CodeInternal, "failed to enqueue run")
	}
	if err := o.advanceRun(ctx, &run, models.RunSettling, requestcontext.Now(ctx).UTC()); err != nil {
		return err
	}
	o.logger.InfoContext(ctx, "run handed to settlement",
		"epoch", e.Number,
		"run_id", run.ID,
		"payouts", len(payouts),
		"enqueued", enqueued,
	)

	// Deliveries may have finished before the run reached settling.
	if _, err := o.reconciler.ReconcileRun(ctx, run.ID); err != nil {
		o.logger.WarnContext(ctx, "run reconciliation after enqueue failed", "run_id", run.ID, "error", err)
	}
	return nil
}

func (o *Orchestrator) failRun(ctx context.Context, run models.Run, cause error) {
	if err := o.advanceRun(ctx, &run, models.RunFailed, requestcontext.Now(ctx).UTC()); err != nil {
		o.logger.ErrorContext(ctx, "failed to mark run failed", "run_id", run.ID, "error", err)
		return
	}
	o.logger.ErrorContext(ctx, "run failed during distribution; enqueued entries still drain",
		"run_id", run.ID,
		"error", cause,
	)
}

// release clears the maintenance flag. It runs on every path once the freeze
// was taken and does not depend on the caller's context.
func (o *Orchestrator) release(ctx context.Context, e models.Epoch) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unfreezeTimeout)
	defer cancel()
	if err := o.guard.Unfreeze(uctx); err != nil {
		o.metrics.IncrementUnfreezeFailure()
		o.logger.ErrorContext(ctx, "failed to clear maintenance freeze", "epoch", e.Number, "error", err)
		return
	}
	o.audit(ctx, audit.EventMaintenanceUnfrozen, e, "")
}

// conclude stores where the transition stopped: unfrozen after a
// distribution or a GI halt, failed otherwise. It returns the error the
// caller should see.
func (o *Orchestrator) conclude(ctx context.Context, e *models.Epoch, runErr error) error {
	ctx = context.WithoutCancel(ctx)

	switch {
	case runErr == nil:
		return o.advance(ctx, e, models.StateUnfrozen)

	case dErrors.Is(runErr, dErrors.CodeGIBelowHalt) && e.State == models.StatePooled:
		e.Reason = runErr.Error()
		if err := o.advance(ctx, e, models.StateUnfrozen); err != nil {
			return err
		}
		o.metrics.IncrementTransition("halted")
		o.audit(ctx, audit.EventEpochHalted, *e, e.Reason)
		return runErr

	default:
		from := e.State
		e.Fail(runErr, requestcontext.Now(ctx).UTC())
		if err := o.store.SaveEpoch(ctx, *e, from); err != nil {
			o.logger.ErrorContext(ctx, "failed to record epoch failure", "epoch", e.Number, "error", err)
		}
		o.metrics.IncrementTransition("failed")
		o.audit(ctx, audit.EventEpochFailed, *e, e.LastError)
		return runErr
	}
}

// RetryAttestation resubmits the attestation of an unfrozen epoch. An
// already attested epoch is returned unchanged.
func (o *Orchestrator) RetryAttestation(ctx context.Context, number int64) (models.Epoch, error) {
	if !o.mu.TryLock() {
		return models.Epoch{}, dErrors.New(dErrors.CodeConflict, "an epoch transition is already running")
	}
	defer o.mu.Unlock()

	e, err := o.Get(ctx, number)
	if err != nil {
		return models.Epoch{}, err
	}
	switch {
	case e.State == models.StateAttested:
		return e, nil
	case e.Paused():
		return e, dErrors.New(dErrors.CodeGIBelowHalt, "epoch was halted below the GI threshold and cannot be attested")
	case e.State != models.StateUnfrozen:
		return e, dErrors.New(dErrors.CodeConflict, "epoch is "+string(e.State)+"; only unfrozen epochs can be attested")
	}
	if err := o.attest(ctx, &e); err != nil {
		return e, err
	}
	return e, nil
}

func (o *Orchestrator) attest(ctx context.Context, e *models.Epoch) (err error) {
	ctx, end := tracing.Track(ctx, "epoch.attest", attribute.Int64("epoch", e.Number))
	defer func() { end(err) }()

	sub, err := submission(*e)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx).UTC()
	sub.IssuedAt = now
	res, err := o.collab.Attestor.Submit(ctx, sub)
	if err != nil {
		o.metrics.IncrementAttestationFailure()
		e.AttestationError = err.Error()
		e.UpdatedAt = now
		if saveErr := o.store.SaveEpoch(ctx, *e, e.State); saveErr != nil {
			o.logger.ErrorContext(ctx, "failed to record attestation failure", "epoch", e.Number, "error", saveErr)
		}
		o.logger.WarnContext(ctx, "epoch attestation failed; retry with the attest endpoint",
			"epoch", e.Number,
			"error", err,
		)
		return err
	}

	e.AttestationError = ""
	if err := o.advance(ctx, e, models.StateAttested); err != nil {
		return err
	}
	details := map[string]string{
		"attestation_status": string(res.Status),
		"content_hash":       res.ContentHash,
	}
	if e.RunID != nil {
		details["run_id"] = e.RunID.String()
	}
	audit.LogAudit(ctx, o.logger, o.auditor, audit.Event{
		Action:  string(audit.EventEpochTransitioned),
		Subject: epochSubject(e.Number),
		Epoch:   e.Number,
		Actor:   requestcontext.Operator(ctx),
		Details: details,
	})
	return nil
}

type submissionMeta struct {
	MonthKey string    `json:"month_key"`
	RunID    string    `json:"run_id,omitempty"`
	Tier     pool.Tier `json:"tier"`
}

func submission(e models.Epoch) (attestmodels.Submission, error) {
	if e.Pool == nil {
		return attestmodels.Submission{}, dErrors.New(dErrors.CodeInvariantViolation, "epoch has no pool to attest")
	}
	m := submissionMeta{MonthKey: e.MonthKey, Tier: e.Pool.Tier}
	if e.RunID != nil {
		m.RunID = e.RunID.String()
	}
	meta, err := json.Marshal(m)
	if err != nil {
		return attestmodels.Submission{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode attestation metadata")
	}
	return attestmodels.Submission{
		Epoch:  e.Number,
		GIUsed: e.GIUsed,
		Decay: attestmodels.Decay{
			DecayedShards:    e.Decay.DecayedShards,
			ReabsorbedShards: e.Decay.ReabsorbedShards,
		},
		UBI: attestmodels.UBI{
			PoolTotal:  e.Pool.PoolTotal,
			PerCapita:  e.Pool.PerCapita,
			Recipients: e.Pool.Recipients,
		},
		Meta: meta,
	}, nil
}

func (o *Orchestrator) Get(ctx context.Context, number int64) (models.Epoch, error) {
	e, err := o.store.GetEpoch(ctx, number)
	if err != nil {
		return models.Epoch{}, storeError(err, "epoch")
	}
	return e, nil
}

// List returns up to limit epochs, newest first.
func (o *Orchestrator) List(ctx context.Context, limit int) ([]models.Epoch, error) {
	if limit <= 0 || limit > maxListLimit {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
	}
	epochs, err := o.store.ListEpochs(ctx, limit)
	if err != nil {
		return nil, storeError(err, "epoch")
	}
	return epochs, nil
}

func (o *Orchestrator) ReconcileRun(ctx context.Context, runID uuid.UUID) (models.RunSummary, error) {
	return o.reconciler.ReconcileRun(ctx, runID)
}

func (o *Orchestrator) RunSummary(ctx context.Context, runID uuid.UUID) (models.RunSummary, error) {
	return o.reconciler.RunSummary(ctx, runID)
}

// MaintenanceStatus reports the freeze flag.
func (o *Orchestrator) MaintenanceStatus(ctx context.Context) (freeze.Status, error) {
	status, err := o.guard.Status(ctx)
	if err != nil {
		return freeze.Status{}, keepCode(err, dErrors.CodeInternal, "failed to read maintenance status")
	}
	return status, nil
}

// SetMaintenance freezes or unfreezes by hand. It is refused while a
// transition holds the flag.
func (o *Orchestrator) SetMaintenance(ctx context.Context, frozen bool) (freeze.Status, error) {
	if !o.mu.TryLock() {
		return freeze.Status{}, dErrors.New(dErrors.CodeConflict, "an epoch transition is running")
	}
	defer o.mu.Unlock()

	var (
		e   models.Epoch
		err error
	)
	if latest, lerr := o.store.LatestEpoch(ctx); lerr == nil {
		e = latest
	}
	action := audit.EventMaintenanceUnfrozen
	if frozen {
		action = audit.EventMaintenanceFrozen
		err = o.guard.Freeze(ctx, e.Number)
	} else {
		err = o.guard.Unfreeze(ctx)
	}
	if err != nil {
		return freeze.Status{}, keepCode(err, dErrors.CodeInternal, "failed to change maintenance state")
	}
	o.audit(ctx, action, e, "manual")
	return o.MaintenanceStatus(ctx)
}

// step wraps one transition step in a span and a duration sample.
func (o *Orchestrator) step(ctx context.Context, name string, e *models.Epoch, fn func(ctx context.Context) error) (err error) {
	defer o.metrics.ObserveStep(name, time.Now())
	ctx, end := tracing.Track(ctx, "epoch."+name, attribute.Int64("epoch", e.Number))
	defer func() { end(err) }()
	return fn(ctx)
}

// advance moves e to next in the store. e is left unchanged when the stored
// epoch is no longer where e says it is.
func (o *Orchestrator) advance(ctx context.Context, e *models.Epoch, next models.State) error {
	moved := *e
	if err := moved.Advance(next, requestcontext.Now(ctx).UTC()); err != nil {
		return err
	}
	if err := o.store.SaveEpoch(ctx, moved, e.State); err != nil {
		return storeError(err, "epoch")
	}
	*e = moved
	return nil
}

func (o *Orchestrator) advanceRun(ctx context.Context, run *models.Run, next models.RunStatus, now time.Time) error {
	moved := *run
	if err := moved.Advance(next, now); err != nil {
		return err
	}
	if err := o.store.UpdateRun(ctx, moved, run.Status); err != nil {
		return storeError(err, "run")
	}
	*run = moved
	return nil
}

func (o *Orchestrator) audit(ctx context.Context, action audit.AuditEvent, e models.Epoch, reason string) {
	ev := audit.Event{
		Action:  string(action),
		Subject: epochSubject(e.Number),
		Epoch:   e.Number,
		Reason:  reason,
		Actor:   requestcontext.Operator(ctx),
		Details: map[string]string{"state": string(e.State)},
	}
	if action == audit.EventEpochFailed || action == audit.EventEpochHalted {
		ev.Severity = audit.SeverityWarning
	}
	audit.LogAudit(ctx, o.logger, o.auditor, ev)
}

func inFlight(s models.State) bool {
	switch s {
	case models.StateIdle, models.StateFrozen, models.StateDecayed, models.StatePooled, models.StateDistributing:
		return true
	}
	return false
}

func epochSubject(n int64) string {
	return "epoch:" + strconv.FormatInt(n, 10)
}

// keepCode returns domain errors unchanged and wraps anything else.
func keepCode(err error, code dErrors.Code, msg string) error {
	if _, ok := dErrors.From(err); ok {
		return err
	}
	return dErrors.Wrap(err, code, msg)
}
