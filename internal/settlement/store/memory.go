package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	epochmodels "dividend/internal/epoch/models"
	"dividend/internal/settlement/models"
	"dividend/internal/settlement/retry"
	"dividend/pkg/platform/sentinel"
)

// PayoutSource lists the payouts of a run for Enqueue.
type PayoutSource interface {
	ListPayouts(ctx context.Context, runID uuid.UUID) ([]epochmodels.Payout, error)
}

// InMemoryStore is the mutex-guarded outbox. Every claim happens under the
// lock, so concurrent claimers always see disjoint sets.
type InMemoryStore struct {
	mu       sync.Mutex
	payouts  PayoutSource
	entries  map[uuid.UUID]*models.Entry
	byPayout map[uuid.UUID]uuid.UUID
	order    []uuid.UUID
}

func NewInMemory(payouts PayoutSource) *InMemoryStore {
	return &InMemoryStore{
		payouts:  payouts,
		entries:  make(map[uuid.UUID]*models.Entry),
		byPayout: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *InMemoryStore) Enqueue(ctx context.Context, runID uuid.UUID, now time.Time) (int, error) {
	payouts, err := s.payouts.ListPayouts(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("list payouts for run %s: %w", runID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, p := range payouts {
		if _, exists := s.byPayout[p.ID]; exists {
			continue
		}
		e := &models.Entry{
			ID:           uuid.New(),
			RunID:        p.RunID,
			PayoutID:     p.ID,
			Wallet:       p.Wallet,
			AmountShards: p.AmountShards,
			Status:       models.EntryPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.entries[e.ID] = e
		s.byPayout[p.ID] = e.ID
		s.order = append(s.order, e.ID)
		inserted++
	}
	return inserted, nil
}

func (s *InMemoryStore) ClaimBatch(_ context.Context, limit int, now time.Time, policy retry.Policy) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := policy.LeaseExpiry(now)
	var out []models.Entry
	for _, id := range s.order {
		if len(out) >= limit {
			break
		}
		e := s.entries[id]
		if !e.Claimable(now, cutoff, policy.MaxAttempts) {
			continue
		}
		claimedAt := now
		e.Status = models.EntryClaimed
		e.Attempts++
		e.ClaimedAt = &claimedAt
		e.NextAttemptAt = nil
		e.UpdatedAt = now
		out = append(out, *e)
	}
	return out, nil
}

func (s *InMemoryStore) MarkAcked(_ context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.claimed(id)
	if err != nil {
		return err
	}
	e.Status = models.EntryAcked
	e.ClaimedAt = nil
	e.LastError = ""
	e.UpdatedAt = now
	return nil
}

// MarkFailed records a failed try. A nil nextAttemptAt fails the entry
// permanently.
func (s *InMemoryStore) MarkFailed(_ context.Context, id uuid.UUID, lastError string, nextAttemptAt *time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.claimed(id)
	if err != nil {
		return err
	}
	e.Status = models.EntryFailed
	e.ClaimedAt = nil
	e.LastError = lastError
	e.NextAttemptAt = nextAttemptAt
	e.UpdatedAt = now
	return nil
}

// FailAbandoned permanently fails claims whose lease expired after the last
// permitted attempt.
func (s *InMemoryStore) FailAbandoned(_ context.Context, leaseCutoff time.Time, maxAttempts int, now time.Time) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Entry
	for _, id := range s.order {
		e := s.entries[id]
		if e.Status != models.EntryClaimed || e.Attempts < maxAttempts || e.ClaimedAt == nil || !e.ClaimedAt.Before(leaseCutoff) {
			continue
		}
		e.Status = models.EntryFailed
		e.ClaimedAt = nil
		e.LastError = LeaseExpiredReason
		e.NextAttemptAt = nil
		e.UpdatedAt = now
		out = append(out, *e)
	}
	return out, nil
}

func (s *InMemoryStore) ListExhausted(_ context.Context, maxAttempts, limit int) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Entry
	for _, id := range s.order {
		if len(out) >= limit {
			break
		}
		e := s.entries[id]
		if e.Status == models.EntryFailed && e.Attempts >= maxAttempts {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByRun(_ context.Context, runID uuid.UUID) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Entry
	for _, id := range s.order {
		if e := s.entries[id]; e.RunID == runID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// Requeue resets a permanently failed entry to pending with a fresh attempt
// budget. LastError is kept for the record.
func (s *InMemoryStore) Requeue(_ context.Context, id uuid.UUID, now time.Time) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.permanentlyFailed(id)
	if err != nil {
		return models.Entry{}, err
	}
	e.Status = models.EntryPending
	e.Attempts = 0
	e.UpdatedAt = now
	return *e, nil
}

// Resolve closes a permanently failed entry that was settled outside the
// dispatcher.
func (s *InMemoryStore) Resolve(_ context.Context, id uuid.UUID, now time.Time) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.permanentlyFailed(id)
	if err != nil {
		return models.Entry{}, err
	}
	e.Status = models.EntryAcked
	e.UpdatedAt = now
	return *e, nil
}

func (s *InMemoryStore) permanentlyFailed(id uuid.UUID) (*models.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if e.Status != models.EntryFailed || e.NextAttemptAt != nil {
		return nil, fmt.Errorf("entry %s is not permanently failed: %w", id, sentinel.ErrInvalidState)
	}
	return e, nil
}

func (s *InMemoryStore) claimed(id uuid.UUID) (*models.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if e.Status != models.EntryClaimed {
		return nil, fmt.Errorf("entry %s is %s: %w", id, e.Status, sentinel.ErrInvalidState)
	}
	return e, nil
}
