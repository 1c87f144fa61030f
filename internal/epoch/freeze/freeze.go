// Package freeze implements the maintenance freeze as a capability guard.
// Write paths that must honour maintenance obtain a WriteToken at request
// time and present it to the component that performs the write. Any freeze
// invalidates every token issued before it.
package freeze

import (
	"context"
	"time"

	dErrors "dividend/pkg/domain-errors"
)

// WriteToken proves the writer observed the system unfrozen at Generation.
// It can only be obtained from a Guard.
type WriteToken struct {
	Generation uint64
	issued     bool
}

// Status describes the current maintenance state.
type Status struct {
	Frozen     bool      `json:"frozen"`
	Epoch      int64     `json:"epoch,omitempty"`
	Since      time.Time `json:"since,omitzero"`
	Generation uint64    `json:"generation"`
}

// Guard is the maintenance flag shared by the orchestrator and write paths.
type Guard interface {
	Freeze(ctx context.Context, epoch int64) error
	Unfreeze(ctx context.Context) error
	Acquire(ctx context.Context) (WriteToken, error)
	Validate(ctx context.Context, token WriteToken) error
	Status(ctx context.Context) (Status, error)
}

var (
	errFrozen      = dErrors.New(dErrors.CodeFrozen, "maintenance in progress; writes are paused")
	errStaleToken  = dErrors.New(dErrors.CodeFrozen, "write token invalidated by a maintenance freeze")
	errNoToken     = dErrors.New(dErrors.CodeFrozen, "write token required")
	errAlreadyHeld = dErrors.New(dErrors.CodeConflict, "maintenance freeze already held")
)

func issue(generation uint64) WriteToken {
	return WriteToken{Generation: generation, issued: true}
}

func checkToken(status Status, token WriteToken) error {
	if !token.issued {
		return errNoToken
	}
	if status.Frozen {
		return errFrozen
	}
	if token.Generation != status.Generation {
		return errStaleToken
	}
	return nil
}
