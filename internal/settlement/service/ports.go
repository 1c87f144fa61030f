package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dividend/internal/settlement/models"
	"dividend/internal/settlement/retry"
	"dividend/internal/settlement/wallet"
)

// Store is the outbox. ClaimBatch must be atomic across concurrent callers.
type Store interface {
	Enqueue(ctx context.Context, runID uuid.UUID, now time.Time) (int, error)
	ClaimBatch(ctx context.Context, limit int, now time.Time, policy retry.Policy) ([]models.Entry, error)
	MarkAcked(ctx context.Context, id uuid.UUID, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt *time.Time, now time.Time) error
	FailAbandoned(ctx context.Context, leaseCutoff time.Time, maxAttempts int, now time.Time) ([]models.Entry, error)
	ListExhausted(ctx context.Context, maxAttempts, limit int) ([]models.Entry, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Entry, error)
	// Requeue and Resolve only apply to permanently failed entries; anything
	// else is sentinel.ErrInvalidState.
	Requeue(ctx context.Context, id uuid.UUID, now time.Time) (models.Entry, error)
	Resolve(ctx context.Context, id uuid.UUID, now time.Time) (models.Entry, error)
}

// Provider delivers one payout to the wallet provider.
type Provider interface {
	Send(ctx context.Context, req wallet.Request) (wallet.Ack, error)
}

// PayoutReconciler updates the payout rows owned by the orchestrator.
type PayoutReconciler interface {
	PayoutDispatched(ctx context.Context, runID, payoutID uuid.UUID) error
	PayoutAcked(ctx context.Context, runID, payoutID uuid.UUID, txID string, sentAt time.Time) error
	PayoutFailed(ctx context.Context, runID, payoutID uuid.UUID, reason string) error
}
