package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbox throughput and provider health.
type Metrics struct {
	Enqueued         prometheus.Counter
	Claimed          prometheus.Counter
	Deliveries       *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
	BreakerOpen      prometheus.Gauge
	SkippedBatches   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "dividend_settlement_enqueued_total",
			Help: "Outbox entries created",
		}),
		Claimed: f.NewCounter(prometheus.CounterOpts{
			Name: "dividend_settlement_claimed_total",
			Help: "Outbox entries claimed for dispatch",
		}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dividend_settlement_deliveries_total",
			Help: "Dispatch outcomes: acked, retry, exhausted",
		}, []string{"outcome"}),
		DispatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dividend_settlement_dispatch_duration_seconds",
			Help:    "Wallet provider call latency",
			Buckets: prometheus.DefBuckets,
		}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "dividend_settlement_breaker_open",
			Help: "1 while the wallet provider circuit is open",
		}),
		SkippedBatches: f.NewCounter(prometheus.CounterOpts{
			Name: "dividend_settlement_skipped_batches_total",
			Help: "Dispatch cycles skipped because the circuit was open",
		}),
	}
}

func (m *Metrics) AddEnqueued(n int) {
	if m == nil {
		return
	}
	m.Enqueued.Add(float64(n))
}

func (m *Metrics) AddClaimed(n int) {
	if m == nil {
		return
	}
	m.Claimed.Add(float64(n))
}

func (m *Metrics) IncrementDelivery(outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDispatch(start time.Time) {
	if m == nil {
		return
	}
	m.DispatchDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) IncrementSkipped() {
	if m == nil {
		return
	}
	m.SkippedBatches.Inc()
}
