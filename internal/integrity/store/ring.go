package store

import (
	"context"
	"sync"
	"time"

	"dividend/internal/integrity/models"
)

const DefaultCapacity = 50_000

// Ring is a bounded in-memory sample store. When full, the oldest inserted
// sample is evicted.
type Ring struct {
	mu    sync.RWMutex
	buf   []models.Sample
	start int
	size  int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]models.Sample, capacity)}
}

func (r *Ring) Append(_ context.Context, s models.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.start + r.size) % len(r.buf)
	r.buf[idx] = s
	if r.size < len(r.buf) {
		r.size++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
	return nil
}

// Latest returns the sample with the newest timestamp; ties go to the most
// recently inserted.
func (r *Ring) Latest(_ context.Context) (models.Sample, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.size == 0 {
		return models.Sample{}, false, nil
	}
	var latest models.Sample
	for i := 0; i < r.size; i++ {
		s := r.buf[(r.start+i)%len(r.buf)]
		if i == 0 || !s.Timestamp.Before(latest.Timestamp) {
			latest = s
		}
	}
	return latest, true, nil
}

// Since returns samples with Timestamp >= from in insertion order.
func (r *Ring) Since(_ context.Context, from time.Time) ([]models.Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Sample, 0, r.size)
	for i := 0; i < r.size; i++ {
		s := r.buf[(r.start+i)%len(r.buf)]
		if !s.Timestamp.Before(from) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

func (r *Ring) Capacity() int {
	return len(r.buf)
}
