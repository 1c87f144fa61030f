package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks epoch transitions.
type Metrics struct {
	Transitions         *prometheus.CounterVec
	TransitionDuration  prometheus.Histogram
	StepDuration        *prometheus.HistogramVec
	LatestEpoch         prometheus.Gauge
	PoolTotal           prometheus.Gauge
	AttestationFailures prometheus.Counter
	UnfreezeFailures    prometheus.Counter
	RunsSettled         prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dividend_epoch_transitions_total",
			Help: "Epoch transition outcomes: attested, attestation_pending, halted, failed",
		}, []string{"outcome"}),
		TransitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dividend_epoch_transition_duration_seconds",
			Help:    "Wall time of a full epoch transition",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dividend_epoch_step_duration_seconds",
			Help:    "Wall time per transition step",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		LatestEpoch: f.NewGauge(prometheus.GaugeOpts{
			Name: "dividend_epoch_latest",
			Help: "Number of the most recently started epoch",
		}),
		PoolTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "dividend_epoch_pool_total_shards",
			Help: "Pool total of the most recently pooled epoch",
		}),
		AttestationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "dividend_epoch_attestation_failures_total",
			Help: "Attestation submissions that failed and await retry",
		}),
		UnfreezeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "dividend_epoch_unfreeze_failures_total",
			Help: "Maintenance flag releases that failed",
		}),
		RunsSettled: f.NewCounter(prometheus.CounterOpts{
			Name: "dividend_epoch_runs_settled_total",
			Help: "Runs whose payouts were all acknowledged",
		}),
	}
}

func (m *Metrics) IncrementTransition(outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(start time.Time) {
	if m == nil {
		return
	}
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveStep(step string, start time.Time) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetLatestEpoch(n int64) {
	if m == nil {
		return
	}
	m.LatestEpoch.Set(float64(n))
}

func (m *Metrics) SetPoolTotal(shards int64) {
	if m == nil {
		return
	}
	m.PoolTotal.Set(float64(shards))
}

func (m *Metrics) IncrementAttestationFailure() {
	if m == nil {
		return
	}
	m.AttestationFailures.Inc()
}

func (m *Metrics) IncrementUnfreezeFailure() {
	if m == nil {
		return
	}
	m.UnfreezeFailures.Inc()
}

func (m *Metrics) IncrementRunSettled() {
	if m == nil {
		return
	}
	m.RunsSettled.Inc()
}
