// Package worker runs the settlement dispatcher on an interval.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dividend/pkg/requestcontext"
)

// BatchDispatcher is the slice of the settlement dispatcher the worker drives.
type BatchDispatcher interface {
	DispatchOnce(ctx context.Context, limit int) (int, error)
}

// Worker calls DispatchOnce every interval. A full batch is followed
// immediately by another so a backlog drains without waiting for the ticker.
type Worker struct {
	dispatcher BatchDispatcher
	interval   time.Duration
	batchSize  int
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithClock overrides the time stamped on each batch.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func New(dispatcher BatchDispatcher, interval time.Duration, batchSize int, opts ...Option) (*Worker, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if batchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	w := &Worker{
		dispatcher: dispatcher,
		interval:   interval,
		batchSize:  batchSize,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run dispatches until ctx is cancelled. Dispatch errors are logged and the
// next tick tries again.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.drain(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		batchCtx := requestcontext.WithTime(ctx, w.now())
		attempted, err := w.dispatcher.DispatchOnce(batchCtx, w.batchSize)
		if err != nil {
			w.logger.ErrorContext(ctx, "settlement dispatch cycle failed", "error", err)
			return
		}
		if attempted > 0 {
			w.logger.DebugContext(ctx, "settlement dispatch cycle", "attempted", attempted)
		}
		if attempted < w.batchSize {
			return
		}
	}
}
