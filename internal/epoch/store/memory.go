package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"dividend/internal/epoch/models"
	"dividend/pkg/platform/sentinel"
)

// InMemoryStore keeps epochs, runs and payouts in process.
type InMemoryStore struct {
	mu      sync.RWMutex
	epochs  map[int64]models.Epoch
	runs    map[uuid.UUID]models.Run
	payouts map[uuid.UUID]models.Payout
	byRun   map[uuid.UUID][]uuid.UUID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		epochs:  make(map[int64]models.Epoch),
		runs:    make(map[uuid.UUID]models.Run),
		payouts: make(map[uuid.UUID]models.Payout),
		byRun:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *InMemoryStore) LatestEpoch(_ context.Context) (models.Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest models.Epoch
		found  bool
	)
	for n, e := range s.epochs {
		if !found || n > latest.Number {
			latest, found = e, true
		}
	}
	if !found {
		return models.Epoch{}, sentinel.ErrNotFound
	}
	return cloneEpoch(latest), nil
}

func (s *InMemoryStore) GetEpoch(_ context.Context, number int64) (models.Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.epochs[number]
	if !ok {
		return models.Epoch{}, sentinel.ErrNotFound
	}
	return cloneEpoch(e), nil
}

// ListEpochs returns up to limit epochs, newest first.
func (s *InMemoryStore) ListEpochs(_ context.Context, limit int) ([]models.Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	numbers := make([]int64, 0, len(s.epochs))
	for n := range s.epochs {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	slices.Reverse(numbers)
	if len(numbers) > limit {
		numbers = numbers[:limit]
	}
	out := make([]models.Epoch, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, cloneEpoch(s.epochs[n]))
	}
	return out, nil
}

func (s *InMemoryStore) CreateEpoch(_ context.Context, e models.Epoch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.epochs[e.Number]; exists {
		return fmt.Errorf("epoch %d: %w", e.Number, sentinel.ErrConflict)
	}
	s.epochs[e.Number] = cloneEpoch(e)
	return nil
}

// SaveEpoch replaces the epoch if it is still in state from.
func (s *InMemoryStore) SaveEpoch(_ context.Context, e models.Epoch, from models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.epochs[e.Number]
	if !exists {
		return sentinel.ErrNotFound
	}
	if stored.State != from {
		return fmt.Errorf("epoch %d is %s, not %s: %w", e.Number, stored.State, from, sentinel.ErrInvalidState)
	}
	s.epochs[e.Number] = cloneEpoch(e)
	return nil
}

// CreateRun stores the run and its payouts. (Epoch, MonthKey) and
// (RunID, Wallet) are unique.
func (s *InMemoryStore) CreateRun(_ context.Context, run models.Run, payouts []models.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.Epoch == run.Epoch && r.MonthKey == run.MonthKey {
			return fmt.Errorf("run for epoch %d: %w", run.Epoch, sentinel.ErrConflict)
		}
	}
	seen := make(map[string]struct{}, len(payouts))
	for _, p := range payouts {
		if _, dup := seen[p.Wallet]; dup {
			return fmt.Errorf("payout for wallet %s: %w", p.Wallet, sentinel.ErrConflict)
		}
		seen[p.Wallet] = struct{}{}
	}

	s.runs[run.ID] = run
	ids := make([]uuid.UUID, 0, len(payouts))
	for _, p := range payouts {
		s.payouts[p.ID] = p
		ids = append(ids, p.ID)
	}
	s.byRun[run.ID] = ids
	return nil
}

func (s *InMemoryStore) UpdateRun(_ context.Context, run models.Run, from models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.runs[run.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if stored.Status != from {
		return fmt.Errorf("run %s is %s, not %s: %w", run.ID, stored.Status, from, sentinel.ErrInvalidState)
	}
	s.runs[run.ID] = run
	return nil
}

func (s *InMemoryStore) GetRun(_ context.Context, id uuid.UUID) (models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return models.Run{}, sentinel.ErrNotFound
	}
	return run, nil
}

// LockRun is GetRun; callers serialise in process.
func (s *InMemoryStore) LockRun(ctx context.Context, id uuid.UUID) (models.Run, error) {
	return s.GetRun(ctx, id)
}

func (s *InMemoryStore) RunSummary(_ context.Context, id uuid.UUID) (models.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return models.RunSummary{}, sentinel.ErrNotFound
	}
	counts := make(map[models.PayoutStatus]int)
	for _, pid := range s.byRun[id] {
		counts[s.payouts[pid].Status]++
	}
	return models.RunSummary{Run: run, Counts: counts}, nil
}

// ListPayouts returns the run's payouts ordered by wallet.
func (s *InMemoryStore) ListPayouts(_ context.Context, runID uuid.UUID) ([]models.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Payout, 0, len(s.byRun[runID]))
	for _, pid := range s.byRun[runID] {
		out = append(out, s.payouts[pid])
	}
	slices.SortFunc(out, func(a, b models.Payout) int {
		switch {
		case a.Wallet < b.Wallet:
			return -1
		case a.Wallet > b.Wallet:
			return 1
		}
		return 0
	})
	return out, nil
}

// MarkPayoutDispatched flags a payout as handed to the wallet provider. A
// failed payout goes back in flight when its entry is requeued.
func (s *InMemoryStore) MarkPayoutDispatched(_ context.Context, payoutID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payouts[payoutID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Status == models.PayoutAcked {
		return fmt.Errorf("payout %s already acked: %w", payoutID, sentinel.ErrInvalidState)
	}
	p.Status = models.PayoutDispatched
	p.Reason = ""
	s.payouts[payoutID] = p
	return nil
}

// MarkPayoutAcked records the provider acknowledgement. Repeating it with
// the same transaction id is a no-op.
func (s *InMemoryStore) MarkPayoutAcked(_ context.Context, payoutID uuid.UUID, txID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payouts[payoutID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Status == models.PayoutAcked {
		if p.TxID == txID {
			return nil
		}
		return fmt.Errorf("payout %s already acked with %s: %w", payoutID, p.TxID, sentinel.ErrInvalidState)
	}
	p.Status = models.PayoutAcked
	p.TxID = txID
	p.Reason = ""
	p.SentAt = &sentAt
	s.payouts[payoutID] = p
	return nil
}

func (s *InMemoryStore) MarkPayoutFailed(_ context.Context, payoutID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payouts[payoutID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Status == models.PayoutAcked {
		return fmt.Errorf("payout %s already acked: %w", payoutID, sentinel.ErrInvalidState)
	}
	p.Status = models.PayoutFailed
	p.Reason = reason
	s.payouts[payoutID] = p
	return nil
}

func cloneEpoch(e models.Epoch) models.Epoch {
	if e.Pool != nil {
		p := *e.Pool
		e.Pool = &p
	}
	if e.RunID != nil {
		id := *e.RunID
		e.RunID = &id
	}
	return e
}
