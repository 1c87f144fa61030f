// Package service drives the settlement outbox: enqueue a run's payouts,
// claim batches, call the wallet provider and reconcile the outcome.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"dividend/internal/platform/tracing"
	"dividend/internal/settlement/metrics"
	"dividend/internal/settlement/models"
	"dividend/internal/settlement/retry"
	"dividend/internal/settlement/wallet"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/audit"
	"dividend/pkg/platform/circuit"
	"dividend/pkg/platform/sentinel"
	"dividend/pkg/platform/tx"
	"dividend/pkg/requestcontext"
)

const (
	defaultConcurrency = 4
	maxBatch           = 500
)

// Dispatcher owns outbox transitions after entries are created. No store
// lock is held while the provider is called: entries are claimed in one
// statement, then delivered, then marked.
type Dispatcher struct {
	store       Store
	provider    Provider
	reconciler  PayoutReconciler
	policy      retry.Policy
	breaker     *circuit.Breaker
	txRunner    tx.Runner
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	auditor     audit.Emitter
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithAuditEmitter(e audit.Emitter) Option {
	return func(d *Dispatcher) {
		d.auditor = e
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(d *Dispatcher) {
		d.policy = p.Normalize()
	}
}

// WithBreaker guards the provider. While open, dispatch cycles claim nothing.
func WithBreaker(b *circuit.Breaker) Option {
	return func(d *Dispatcher) {
		d.breaker = b
	}
}

// WithTxRunner makes the outbox ack and the payout reconciliation one unit of
// work when both stores share a database.
func WithTxRunner(r tx.Runner) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.txRunner = r
		}
	}
}

func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func New(store Store, provider Provider, reconciler PayoutReconciler, opts ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("outbox store is required")
	}
	if provider == nil {
		return nil, errors.New("wallet provider is required")
	}
	if reconciler == nil {
		return nil, errors.New("payout reconciler is required")
	}
	d := &Dispatcher{
		store:       store,
		provider:    provider,
		reconciler:  reconciler,
		policy:      retry.DefaultPolicy(),
		txRunner:    tx.NopRunner{},
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Dispatcher) Policy() retry.Policy {
	return d.policy
}

// Enqueue creates a pending entry for every payout of the run not yet in the
// outbox. Calling it again for the same run creates nothing.
func (d *Dispatcher) Enqueue(ctx context.Context, runID uuid.UUID) (int, error) {
	n, err := d.store.Enqueue(ctx, runID, requestcontext.Now(ctx).UTC())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue run")
	}
	d.metrics.AddEnqueued(n)
	audit.LogAudit(ctx, d.logger, d.auditor, audit.Event{
		Action:  string(audit.EventRunEnqueued),
		Subject: "run:" + runID.String(),
		RunID:   runID.String(),
		Actor:   requestcontext.Operator(ctx),
		Details: map[string]string{"entries_created": strconv.Itoa(n)},
	})
	return n, nil
}

// ClaimBatch claims up to limit due entries without dispatching them.
func (d *Dispatcher) ClaimBatch(ctx context.Context, limit int) ([]models.Entry, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	entries, err := d.store.ClaimBatch(ctx, limit, requestcontext.Now(ctx).UTC(), d.policy)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim outbox batch")
	}
	d.metrics.AddClaimed(len(entries))
	return entries, nil
}

// DispatchOnce runs one claim-and-deliver cycle and returns how many entries
// it attempted. Per-entry delivery failures are recorded on the entry, not
// returned; only store failures are.
func (d *Dispatcher) DispatchOnce(ctx context.Context, limit int) (attempted int, err error) {
	if err := validateLimit(limit); err != nil {
		return 0, err
	}
	ctx, end := tracing.Track(ctx, "settlement.dispatch_once", attribute.Int("limit", limit))
	defer func() { end(err) }()

	if d.breaker != nil && !d.breaker.Allow() {
		d.metrics.IncrementSkipped()
		d.logger.WarnContext(ctx, "wallet provider circuit open; skipping dispatch cycle")
		return 0, nil
	}

	now := requestcontext.Now(ctx).UTC()
	abandoned, err := d.store.FailAbandoned(ctx, d.policy.LeaseExpiry(now), d.policy.MaxAttempts, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep abandoned claims")
	}
	for _, e := range abandoned {
		d.exhausted(ctx, e, e.LastError)
	}

	entries, err := d.ClaimBatch(ctx, limit)
	if err != nil {
		return 0, err
	}

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, e := range entries {
		g.Go(func() error {
			return d.deliver(ctx, e)
		})
	}
	if err := g.Wait(); err != nil {
		return len(entries), dErrors.Wrap(err, dErrors.CodeInternal, "failed to record dispatch outcome")
	}
	return len(entries), nil
}

// Exhausted lists permanently failed entries awaiting manual reconciliation.
func (d *Dispatcher) Exhausted(ctx context.Context, limit int) ([]models.Entry, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	entries, err := d.store.ListExhausted(ctx, d.policy.MaxAttempts, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list exhausted entries")
	}
	return entries, nil
}

func (d *Dispatcher) Entries(ctx context.Context, runID uuid.UUID) ([]models.Entry, error) {
	entries, err := d.store.ListByRun(ctx, runID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list run entries")
	}
	return entries, nil
}

// Requeue gives a permanently failed entry a fresh attempt budget. The next
// dispatch cycle claims it again under the same idempotency key.
func (d *Dispatcher) Requeue(ctx context.Context, id uuid.UUID) (models.Entry, error) {
	e, err := d.store.Requeue(ctx, id, requestcontext.Now(ctx).UTC())
	if err != nil {
		return models.Entry{}, entryError(err, "failed to requeue entry")
	}
	d.metrics.IncrementDelivery("requeued")
	audit.LogAudit(ctx, d.logger, d.auditor, audit.Event{
		Action:   string(audit.EventSettlementRequeued),
		Subject:  "payout:" + e.PayoutID.String(),
		RunID:    e.RunID.String(),
		Reason:   e.LastError,
		Severity: audit.SeverityWarning,
		Actor:    requestcontext.Operator(ctx),
		Details: map[string]string{
			"entry_id":      e.ID.String(),
			"wallet":        e.Wallet,
			"amount_shards": strconv.FormatInt(e.AmountShards, 10),
		},
	})
	return e, nil
}

// Resolve records a permanently failed payout that an operator settled by
// hand under txID. The entry and the payout are acked together, which may
// settle the run.
func (d *Dispatcher) Resolve(ctx context.Context, id uuid.UUID, txID string) (models.Entry, error) {
	if txID == "" {
		return models.Entry{}, dErrors.New(dErrors.CodeInvalidInput, "tx_id is required")
	}
	now := requestcontext.Now(ctx).UTC()
	var e models.Entry
	err := d.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if e, err = d.store.Resolve(ctx, id, now); err != nil {
			return err
		}
		return d.reconciler.PayoutAcked(ctx, e.RunID, e.PayoutID, txID, now)
	})
	if err != nil {
		return models.Entry{}, entryError(err, "failed to resolve entry")
	}
	d.metrics.IncrementDelivery("resolved")
	audit.LogAudit(ctx, d.logger, d.auditor, audit.Event{
		Action:   string(audit.EventPayoutResolved),
		Subject:  "payout:" + e.PayoutID.String(),
		RunID:    e.RunID.String(),
		Reason:   e.LastError,
		Severity: audit.SeverityWarning,
		Actor:    requestcontext.Operator(ctx),
		Details: map[string]string{
			"entry_id":      e.ID.String(),
			"wallet":        e.Wallet,
			"amount_shards": strconv.FormatInt(e.AmountShards, 10),
			"tx_id":         txID,
		},
	})
	return e, nil
}

func (d *Dispatcher) deliver(ctx context.Context, e models.Entry) (err error) {
	ctx, end := tracing.Track(ctx, "settlement.deliver",
		attribute.String("payout_id", e.PayoutID.String()),
		attribute.Int("attempt", e.Attempts),
	)
	defer func() { end(err) }()

	if err := d.reconciler.PayoutDispatched(ctx, e.RunID, e.PayoutID); err != nil {
		d.logger.ErrorContext(ctx, "failed to mark payout dispatched",
			"payout_id", e.PayoutID,
			"error", err,
		)
	}

	start := time.Now()
	ack, sendErr := d.provider.Send(ctx, wallet.Request{
		Wallet:         e.Wallet,
		AmountShards:   e.AmountShards,
		RunID:          e.RunID.String(),
		PayoutID:       e.PayoutID.String(),
		IdempotencyKey: e.IdempotencyKey(),
	})
	d.metrics.ObserveDispatch(start)
	if sendErr != nil {
		return d.failed(ctx, e, sendErr)
	}

	d.breakerSuccess(ctx)
	now := requestcontext.Now(ctx).UTC()
	err = d.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := d.store.MarkAcked(ctx, e.ID, now); err != nil {
			return err
		}
		return d.reconciler.PayoutAcked(ctx, e.RunID, e.PayoutID, ack.TxID, now)
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to record payout acknowledgement",
			"payout_id", e.PayoutID,
			"tx_id", ack.TxID,
			"error", err,
		)
		return fmt.Errorf("ack payout %s: %w", e.PayoutID, err)
	}
	d.metrics.IncrementDelivery("acked")
	audit.LogAudit(ctx, d.logger, d.auditor, audit.Event{
		Action:  string(audit.EventPayoutAcked),
		Subject: "payout:" + e.PayoutID.String(),
		RunID:   e.RunID.String(),
		Details: map[string]string{
			"wallet":        e.Wallet,
			"amount_shards": strconv.FormatInt(e.AmountShards, 10),
			"tx_id":         ack.TxID,
			"attempts":      strconv.Itoa(e.Attempts),
		},
	})
	return nil
}

func (d *Dispatcher) failed(ctx context.Context, e models.Entry, sendErr error) error {
	if dErrors.Is(sendErr, dErrors.CodeProviderUnavailable) || dErrors.Is(sendErr, dErrors.CodeDispatchTimeout) {
		d.breakerFailure(ctx)
	}
	reason := sendErr.Error()
	if code := dErrors.CodeOf(sendErr); code != dErrors.CodeInternal {
		reason = string(code) + ": " + reason
	}

	if d.policy.Exhausted(e.Attempts) {
		if err := d.store.MarkFailed(ctx, e.ID, reason, nil, requestcontext.Now(ctx).UTC()); err != nil {
			return fmt.Errorf("fail payout %s: %w", e.PayoutID, err)
		}
		d.exhausted(ctx, e, reason)
		return nil
	}

	next := d.policy.NextAttemptAt(requestcontext.Now(ctx).UTC(), e.Attempts)
	if err := d.store.MarkFailed(ctx, e.ID, reason, &next, requestcontext.Now(ctx).UTC()); err != nil {
		return fmt.Errorf("fail payout %s: %w", e.PayoutID, err)
	}
	d.metrics.IncrementDelivery("retry")
	d.logger.WarnContext(ctx, "payout delivery failed; will retry",
		"payout_id", e.PayoutID,
		"attempt", e.Attempts,
		"next_attempt_at", next,
		"error", sendErr,
	)
	return nil
}

// exhausted surfaces an entry that will not be retried.
func (d *Dispatcher) exhausted(ctx context.Context, e models.Entry, reason string) {
	d.metrics.IncrementDelivery("exhausted")
	if err := d.reconciler.PayoutFailed(ctx, e.RunID, e.PayoutID, reason); err != nil {
		d.logger.ErrorContext(ctx, "failed to mark payout failed",
			"payout_id", e.PayoutID,
			"error", err,
		)
	}
	audit.LogAudit(ctx, d.logger, d.auditor, audit.Event{
		Action:   string(audit.EventSettlementExhausted),
		Subject:  "payout:" + e.PayoutID.String(),
		RunID:    e.RunID.String(),
		Reason:   reason,
		Severity: audit.SeverityCritical,
		Details: map[string]string{
			"wallet":        e.Wallet,
			"amount_shards": strconv.FormatInt(e.AmountShards, 10),
			"attempts":      strconv.Itoa(e.Attempts),
		},
	})
}

func (d *Dispatcher) breakerFailure(ctx context.Context) {
	if d.breaker == nil {
		return
	}
	if _, change := d.breaker.RecordFailure(); change.Opened {
		d.metrics.SetBreakerOpen(true)
		d.logger.WarnContext(ctx, "wallet provider circuit opened", "breaker", d.breaker.Name())
	}
}

func (d *Dispatcher) breakerSuccess(ctx context.Context) {
	if d.breaker == nil {
		return
	}
	if _, change := d.breaker.RecordSuccess(); change.Closed {
		d.metrics.SetBreakerOpen(false)
		d.logger.InfoContext(ctx, "wallet provider circuit closed", "breaker", d.breaker.Name())
	}
}

// entryError keeps domain errors from the reconciler and maps outbox
// sentinels.
func entryError(err error, msg string) error {
	if _, ok := dErrors.From(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "outbox entry not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "outbox entry is not permanently failed")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func validateLimit(limit int) error {
	if limit <= 0 || limit > maxBatch {
		return dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and "+strconv.Itoa(maxBatch))
	}
	return nil
}
