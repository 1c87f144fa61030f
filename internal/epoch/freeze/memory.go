package freeze

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard keeps the flag in process. Suitable for a single replica.
type MemoryGuard struct {
	mu     sync.Mutex
	status Status
	now    func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{now: time.Now}
}

func (g *MemoryGuard) Freeze(_ context.Context, epoch int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status.Frozen {
		return errAlreadyHeld
	}
	g.status = Status{
		Frozen:     true,
		Epoch:      epoch,
		Since:      g.now(),
		Generation: g.status.Generation + 1,
	}
	return nil
}

func (g *MemoryGuard) Unfreeze(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = Status{Generation: g.status.Generation}
	return nil
}

func (g *MemoryGuard) Acquire(_ context.Context) (WriteToken, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status.Frozen {
		return WriteToken{}, errFrozen
	}
	return issue(g.status.Generation), nil
}

func (g *MemoryGuard) Validate(_ context.Context, token WriteToken) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return checkToken(g.status, token)
}

func (g *MemoryGuard) Status(_ context.Context) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, nil
}
