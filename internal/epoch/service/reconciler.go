package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"dividend/internal/epoch/metrics"
	"dividend/internal/epoch/models"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/audit"
	"dividend/pkg/platform/sentinel"
	"dividend/pkg/platform/tx"
	"dividend/pkg/requestcontext"
)

// Reconciler applies settlement outcomes to payouts and settles runs once
// every payout is acknowledged. The settlement dispatcher calls it for each
// delivery it finishes.
type Reconciler struct {
	store    Store
	txRunner tx.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  audit.Emitter
	mu       sync.Mutex
}

func NewReconciler(store Store, opts ...Option) (*Reconciler, error) {
	if store == nil {
		return nil, errors.New("epoch store is required")
	}
	cfg := newConfig(opts)
	return &Reconciler{
		store:    store,
		txRunner: cfg.txRunner,
		logger:   cfg.logger,
		metrics:  cfg.metrics,
		auditor:  cfg.auditor,
	}, nil
}

// PayoutDispatched records that the payout is in flight with the provider.
func (r *Reconciler) PayoutDispatched(ctx context.Context, _, payoutID uuid.UUID) error {
	if err := r.store.MarkPayoutDispatched(ctx, payoutID); err != nil {
		return storeError(err, "payout")
	}
	return nil
}

// PayoutAcked marks the payout acknowledged and settles its run when it was
// the last one outstanding.
func (r *Reconciler) PayoutAcked(ctx context.Context, runID, payoutID uuid.UUID, txID string, sentAt time.Time) error {
	if err := r.store.MarkPayoutAcked(ctx, payoutID, txID, sentAt); err != nil {
		return storeError(err, "payout")
	}
	_, err := r.ReconcileRun(ctx, runID)
	return err
}

// PayoutFailed records a payout the dispatcher gave up on. The run stays
// settling until the payout is reconciled by hand.
func (r *Reconciler) PayoutFailed(ctx context.Context, runID, payoutID uuid.UUID, reason string) error {
	if err := r.store.MarkPayoutFailed(ctx, payoutID, reason); err != nil {
		return storeError(err, "payout")
	}
	r.logger.WarnContext(ctx, "payout failed permanently",
		"run_id", runID,
		"payout_id", payoutID,
		"reason", reason,
	)
	return nil
}

// ReconcileRun moves a settling run to settled when all its payouts are
// acked, and returns the run with its payout counts either way.
func (r *Reconciler) ReconcileRun(ctx context.Context, runID uuid.UUID) (models.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		summary models.RunSummary
		settled bool
	)
	err := r.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := r.store.LockRun(ctx, runID); err != nil {
			return err
		}
		var err error
		summary, err = r.store.RunSummary(ctx, runID)
		if err != nil {
			return err
		}
		if summary.Run.Status != models.RunSettling || !summary.AllAcked() {
			return nil
		}
		run := summary.Run
		if err := run.Advance(models.RunSettled, requestcontext.Now(ctx).UTC()); err != nil {
			return err
		}
		if err := r.store.UpdateRun(ctx, run, summary.Run.Status); err != nil {
			return err
		}
		summary.Run = run
		settled = true
		return nil
	})
	if err != nil {
		return models.RunSummary{}, storeError(err, "run")
	}

	if settled {
		r.metrics.IncrementRunSettled()
		audit.LogAudit(ctx, r.logger, r.auditor, audit.Event{
			Action:  string(audit.EventRunSettled),
			Subject: "run:" + runID.String(),
			Epoch:   summary.Run.Epoch,
			RunID:   runID.String(),
			Details: map[string]string{
				"payouts":    strconv.Itoa(summary.Counts[models.PayoutAcked]),
				"pool_total": strconv.FormatInt(summary.Run.PoolTotal, 10),
			},
		})
	}
	return summary, nil
}

// RunSummary reads a run with its payout counts without changing it.
func (r *Reconciler) RunSummary(ctx context.Context, runID uuid.UUID) (models.RunSummary, error) {
	summary, err := r.store.RunSummary(ctx, runID)
	if err != nil {
		return models.RunSummary{}, storeError(err, "run")
	}
	return summary, nil
}

// storeError translates store sentinels into domain errors.
func storeError(err error, what string) error {
	if _, ok := dErrors.From(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" already exists")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" is in the wrong state")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist "+what)
	}
}
