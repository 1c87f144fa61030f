package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	dErrors "dividend/pkg/domain-errors"
)

// RunStatus is the lifecycle of a UBI distribution run.
type RunStatus string

const (
	RunPreparing RunStatus = "preparing"
	RunPrepared  RunStatus = "prepared"
	RunSettling  RunStatus = "settling"
	RunSettled   RunStatus = "settled"
	RunFailed    RunStatus = "failed"
)

var runTransitions = map[RunStatus][]RunStatus{
	RunPreparing: {RunPrepared, RunFailed},
	RunPrepared:  {RunSettling, RunFailed},
	RunSettling:  {RunSettled, RunFailed},
}

func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Run is one distribution. (Epoch, MonthKey) is unique.
type Run struct {
	ID         uuid.UUID       `json:"id"`
	Epoch      int64           `json:"epoch"`
	MonthKey   string          `json:"month_key"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Status     RunStatus       `json:"status"`
	GIUsed     float64         `json:"gi_used"`
	PoolTotal  int64           `json:"pool_total"`
	PerCapita  int64           `json:"per_capita"`
	Recipients int64           `json:"recipients"`
	Meta       json.RawMessage `json:"meta,omitempty"`
}

func (r *Run) Advance(next RunStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation, "run cannot move from "+string(r.Status)+" to "+string(next))
	}
	r.Status = next
	if next == RunSettled || next == RunFailed {
		r.FinishedAt = &now
	}
	return nil
}

// PayoutStatus tracks one wallet's share of a run.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutDispatched PayoutStatus = "dispatched"
	PayoutAcked      PayoutStatus = "acked"
	PayoutFailed     PayoutStatus = "failed"
)

// Payout is unique on (RunID, Wallet).
type Payout struct {
	ID           uuid.UUID    `json:"id"`
	RunID        uuid.UUID    `json:"run_id"`
	Wallet       string       `json:"wallet"`
	AmountShards int64        `json:"amount_shards"`
	Status       PayoutStatus `json:"status"`
	Reason       string       `json:"reason,omitempty"`
	TxID         string       `json:"tx_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	SentAt       *time.Time   `json:"sent_at,omitempty"`
}

// RunSummary is a run with payout counts by status.
type RunSummary struct {
	Run    Run                  `json:"run"`
	Counts map[PayoutStatus]int `json:"payouts"`
}

// AllAcked reports whether every payout of the run has been acknowledged.
func (s RunSummary) AllAcked() bool {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total > 0 && s.Counts[PayoutAcked] == total
}
