package models

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus is the outbox delivery state.
type EntryStatus string

const (
	EntryPending EntryStatus = "pending"
	EntryClaimed EntryStatus = "claimed"
	EntryAcked   EntryStatus = "acked"
	EntryFailed  EntryStatus = "failed"
)

// Entry is one durable delivery intent. PayoutID is unique across the outbox.
//
// Invariants:
//   - Attempts counts every claim, so it equals the number of dispatch tries
//   - NextAttemptAt is set only on failed entries that may be retried
//   - ClaimedAt is set while the entry is claimed
type Entry struct {
	ID            uuid.UUID   `json:"id"`
	RunID         uuid.UUID   `json:"run_id"`
	PayoutID      uuid.UUID   `json:"payout_id"`
	Wallet        string      `json:"wallet"`
	AmountShards  int64       `json:"amount_shards"`
	Status        EntryStatus `json:"status"`
	Attempts      int         `json:"attempts"`
	LastError     string      `json:"last_error,omitempty"`
	NextAttemptAt *time.Time  `json:"next_attempt_at,omitempty"`
	ClaimedAt     *time.Time  `json:"claimed_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Claimable reports whether a claimer at now may take the entry.
// leaseCutoff is the claimed_at before which a claim counts as abandoned.
func (e Entry) Claimable(now, leaseCutoff time.Time, maxAttempts int) bool {
	switch e.Status {
	case EntryPending:
		return true
	case EntryFailed:
		return e.Attempts < maxAttempts && e.NextAttemptAt != nil && !e.NextAttemptAt.After(now)
	case EntryClaimed:
		return e.Attempts < maxAttempts && e.ClaimedAt != nil && e.ClaimedAt.Before(leaseCutoff)
	}
	return false
}

// IdempotencyKey is stable across retries of the same payout.
func (e Entry) IdempotencyKey() string {
	return e.RunID.String() + ":" + e.PayoutID.String()
}
