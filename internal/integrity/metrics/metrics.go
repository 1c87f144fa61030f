package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks sample ingestion and aggregation.
type Metrics struct {
	SamplesRecorded  prometheus.Counter
	SamplesRejected  prometheus.Counter
	OutliersRejected prometheus.Counter
	LastTWA          prometheus.Gauge
	TWADuration      prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SamplesRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "dividend_gi_samples_recorded_total",
			Help: "GI samples accepted",
		}),
		SamplesRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "dividend_gi_samples_rejected_total",
			Help: "GI samples rejected as out of range or during maintenance",
		}),
		OutliersRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "dividend_gi_outliers_rejected_total",
			Help: "Samples excluded by outlier rejection across TWA computations",
		}),
		LastTWA: f.NewGauge(prometheus.GaugeOpts{
			Name: "dividend_gi_twa",
			Help: "Most recently computed GI time-weighted average",
		}),
		TWADuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dividend_gi_twa_duration_seconds",
			Help:    "Duration of TWA computations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) IncrementRecorded() {
	if m == nil {
		return
	}
	m.SamplesRecorded.Inc()
}

func (m *Metrics) IncrementRejected() {
	if m == nil {
		return
	}
	m.SamplesRejected.Inc()
}

// ObserveTWA records a finished computation. Call with time.Now() taken at start.
func (m *Metrics) ObserveTWA(start time.Time, value float64, outliers int) {
	if m == nil {
		return
	}
	m.TWADuration.Observe(time.Since(start).Seconds())
	m.LastTWA.Set(value)
	m.OutliersRejected.Add(float64(outliers))
}
