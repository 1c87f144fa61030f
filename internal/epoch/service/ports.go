package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	attestmodels "dividend/internal/attestation/models"
	"dividend/internal/epoch/models"
	integritymodels "dividend/internal/integrity/models"
)

// Store persists epochs, runs and payouts. Lookups of missing records return
// sentinel.ErrNotFound.
//
// SaveEpoch and UpdateRun only apply when the stored state still equals from;
// otherwise they return sentinel.ErrInvalidState and change nothing.
type Store interface {
	LatestEpoch(ctx context.Context) (models.Epoch, error)
	GetEpoch(ctx context.Context, number int64) (models.Epoch, error)
	ListEpochs(ctx context.Context, limit int) ([]models.Epoch, error)
	CreateEpoch(ctx context.Context, e models.Epoch) error
	SaveEpoch(ctx context.Context, e models.Epoch, from models.State) error

	CreateRun(ctx context.Context, run models.Run, payouts []models.Payout) error
	UpdateRun(ctx context.Context, run models.Run, from models.RunStatus) error
	GetRun(ctx context.Context, id uuid.UUID) (models.Run, error)
	// LockRun reads the run and, inside a transaction, holds its row until
	// commit so concurrent reconciliations of the same run serialise.
	LockRun(ctx context.Context, id uuid.UUID) (models.Run, error)
	RunSummary(ctx context.Context, id uuid.UUID) (models.RunSummary, error)
	ListPayouts(ctx context.Context, runID uuid.UUID) ([]models.Payout, error)
	MarkPayoutDispatched(ctx context.Context, payoutID uuid.UUID) error
	MarkPayoutAcked(ctx context.Context, payoutID uuid.UUID, txID string, sentAt time.Time) error
	MarkPayoutFailed(ctx context.Context, payoutID uuid.UUID, reason string) error
}

// DecaySource reports the decay figures of an epoch.
type DecaySource interface {
	Decay(ctx context.Context, epoch int64) (models.DecayResult, error)
}

// TreasurySource reports issuance and treasury figures of an epoch.
type TreasurySource interface {
	Treasury(ctx context.Context, epoch int64) (models.TreasuryFigures, error)
}

// WalletDirectory lists candidate recipient wallets.
type WalletDirectory interface {
	Wallets(ctx context.Context) ([]string, error)
}

type EligibilityChecker interface {
	Eligible(ctx context.Context, wallets []string) ([]string, error)
}

type Aggregator interface {
	TimeWeightedAverage(ctx context.Context, lookbackDays, minSamples int) (integritymodels.Aggregate, error)
}

// Enqueuer hands a run's payouts to the settlement outbox.
type Enqueuer interface {
	Enqueue(ctx context.Context, runID uuid.UUID) (int, error)
}

type AttestationSubmitter interface {
	Submit(ctx context.Context, sub attestmodels.Submission) (attestmodels.Result, error)
}
