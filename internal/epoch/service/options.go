package service

import (
	"log/slog"
	"time"

	"dividend/internal/epoch/metrics"
	integritymodels "dividend/internal/integrity/models"
	"dividend/pkg/platform/audit"
	"dividend/pkg/platform/tx"
)

const (
	defaultDistributeTimeout = 2 * time.Minute
	defaultAbandonAfter      = 15 * time.Minute
)

type config struct {
	logger            *slog.Logger
	metrics           *metrics.Metrics
	auditor           audit.Emitter
	txRunner          tx.Runner
	reconciler        *Reconciler
	lookbackDays      int
	minSamples        int
	distributeTimeout time.Duration
	abandonAfter      time.Duration
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

func WithAuditEmitter(e audit.Emitter) Option {
	return func(c *config) {
		c.auditor = e
	}
}

// WithTxRunner makes run creation atomic and serialises run reconciliation
// across processes.
func WithTxRunner(r tx.Runner) Option {
	return func(c *config) {
		if r != nil {
			c.txRunner = r
		}
	}
}

// WithReconciler shares the reconciler the settlement dispatcher reports to.
func WithReconciler(r *Reconciler) Option {
	return func(c *config) {
		c.reconciler = r
	}
}

// WithAggregationWindow sets the TWA window used when a transition request
// does not name one.
func WithAggregationWindow(lookbackDays, minSamples int) Option {
	return func(c *config) {
		if lookbackDays > 0 {
			c.lookbackDays = lookbackDays
		}
		if minSamples > 0 {
			c.minSamples = minSamples
		}
	}
}

// WithDistributeTimeout bounds the distributing step, which runs detached
// from the caller's context.
func WithDistributeTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.distributeTimeout = d
		}
	}
}

// WithAbandonAfter sets how long an in-flight epoch must sit unchanged before
// the next transition treats it as abandoned. Keep it above the distribute
// timeout.
func WithAbandonAfter(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.abandonAfter = d
		}
	}
}

func newConfig(opts []Option) config {
	c := config{
		logger:            slog.Default(),
		txRunner:          tx.NopRunner{},
		lookbackDays:      integritymodels.DefaultLookbackDays,
		minSamples:        integritymodels.DefaultMinSamples,
		distributeTimeout: defaultDistributeTimeout,
		abandonAfter:      defaultAbandonAfter,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
