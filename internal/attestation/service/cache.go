package service

import (
	"sync"

	"dividend/internal/attestation/models"
)

// LatestCache holds the highest-epoch attestation seen by this process. It is
// constructed per service and never shared through package state.
type LatestCache struct {
	mu    sync.RWMutex
	value models.Attestation
	set   bool
}

func NewLatestCache() *LatestCache {
	return &LatestCache{}
}

func (c *LatestCache) Get() (models.Attestation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}

// Offer replaces the cached value when a is for the same or a later epoch.
func (c *LatestCache) Offer(a models.Attestation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set && a.Epoch < c.value.Epoch {
		return
	}
	c.value = a
	c.set = true
}
