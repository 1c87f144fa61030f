package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Submissions         *prometheus.CounterVec
	SignatureFailures   *prometheus.CounterVec
	LatestAttestedEpoch prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dividend_attestation_submissions_total",
			Help: "Attestation submissions by outcome",
		}, []string{"outcome"}),
		SignatureFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dividend_attestation_signature_failures_total",
			Help: "Failed proofs by mechanism",
		}, []string{"mechanism"}),
		LatestAttestedEpoch: f.NewGauge(prometheus.GaugeOpts{
			Name: "dividend_attestation_latest_epoch",
			Help: "Highest epoch with a stored attestation",
		}),
	}
}

func (m *Metrics) IncrementSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementSignatureFailure(mechanism string) {
	if m == nil {
		return
	}
	m.SignatureFailures.WithLabelValues(mechanism).Inc()
}

func (m *Metrics) ObserveEpoch(epoch int64) {
	if m == nil {
		return
	}
	m.LatestAttestedEpoch.Set(float64(epoch))
}
