package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"dividend/internal/attestation/models"
	"dividend/pkg/platform/sentinel"
)

// InMemoryStore keeps attestations in a map keyed by epoch.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[int64]models.Attestation
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[int64]models.Attestation)}
}

func (s *InMemoryStore) Get(_ context.Context, epoch int64) (models.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.records[epoch]
	if !ok {
		return models.Attestation{}, sentinel.ErrNotFound
	}
	return clone(a), nil
}

func (s *InMemoryStore) Latest(_ context.Context) (models.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest models.Attestation
		found  bool
	)
	for epoch, a := range s.records {
		if !found || epoch > latest.Epoch {
			latest, found = a, true
		}
	}
	if !found {
		return models.Attestation{}, sentinel.ErrNotFound
	}
	return clone(latest), nil
}

// Upsert stores a keyed on its epoch. A record whose ContentHash matches the
// stored one is left untouched. Different content only replaces the stored
// record when it was issued later; otherwise sentinel.ErrConflict.
func (s *InMemoryStore) Upsert(_ context.Context, a models.Attestation, now time.Time) (models.StoreOutcome, models.Attestation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[a.Epoch]
	if ok && existing.ContentHash == a.ContentHash {
		return models.OutcomeUnchanged, clone(existing), nil
	}
	if ok && !a.Supersedes(existing) {
		return "", models.Attestation{}, fmt.Errorf("attestation %d issued %s is not newer than %s: %w",
			a.Epoch, a.IssuedAt.Format(time.RFC3339), existing.IssuedAt.Format(time.RFC3339), sentinel.ErrConflict)
	}

	outcome := models.OutcomeCreated
	a.CreatedAt = now
	if ok {
		outcome = models.OutcomeOverwritten
		a.CreatedAt = existing.CreatedAt
	}
	a.UpdatedAt = now
	s.records[a.Epoch] = clone(a)
	return outcome, clone(a), nil
}

func clone(a models.Attestation) models.Attestation {
	a.AcceptedSigners = slices.Clone(a.AcceptedSigners)
	a.Meta = slices.Clone(a.Meta)
	return a
}
