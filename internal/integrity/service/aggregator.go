// Package service computes the GI time-weighted average over recorded samples.
package service

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"dividend/internal/epoch/freeze"
	"dividend/internal/integrity/metrics"
	"dividend/internal/integrity/models"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/requestcontext"
)

const (
	DefaultMinSamples   = models.DefaultMinSamples
	DefaultLookbackDays = models.DefaultLookbackDays
	// MaxClockSkew is how far past the request time a caller timestamp may be.
	MaxClockSkew = 5 * time.Minute

	// outlierZ is the |z| beyond which a sample is dropped.
	outlierZ = 3.0
	// minRejectionSample keeps rejection off for tiny windows where one value
	// moves the mean a lot.
	minRejectionSample = 8
	recencyFloor       = 0.2
	minSpan            = time.Millisecond
)

type SampleStore interface {
	Append(ctx context.Context, s models.Sample) error
	Latest(ctx context.Context) (models.Sample, bool, error)
	Since(ctx context.Context, from time.Time) ([]models.Sample, error)
}

// Pruner is implemented by stores with retention.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// WriteGuard validates maintenance write tokens.
type WriteGuard interface {
	Validate(ctx context.Context, token freeze.WriteToken) error
}

// Aggregator records samples and derives the TWA.
type Aggregator struct {
	store       SampleStore
	guard       WriteGuard
	logger      *slog.Logger
	metrics     *metrics.Metrics
	defaultSpot float64
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithDefaultSpot sets the value Spot reports when no sample exists.
func WithDefaultSpot(v float64) Option {
	return func(a *Aggregator) {
		a.defaultSpot = v
	}
}

func New(store SampleStore, guard WriteGuard, opts ...Option) *Aggregator {
	a := &Aggregator{store: store, guard: guard, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecordSample appends a sample. Weight defaults to 1 and the timestamp to the
// request time.
func (a *Aggregator) RecordSample(ctx context.Context, token freeze.WriteToken, value float64, weight *float64, ts *time.Time, source string) (models.Sample, error) {
	if math.IsNaN(value) || value < 0 || value > 1 {
		a.metrics.IncrementRejected()
		return models.Sample{}, dErrors.New(dErrors.CodeInvalidRange, "value must be in [0,1]")
	}
	w := 1.0
	if weight != nil {
		w = *weight
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		a.metrics.IncrementRejected()
		return models.Sample{}, dErrors.New(dErrors.CodeInvalidRange, "weight must be a non-negative number")
	}

	if err := a.guard.Validate(ctx, token); err != nil {
		a.metrics.IncrementRejected()
		return models.Sample{}, err
	}

	now := requestcontext.Now(ctx).UTC()
	if ts != nil && ts.After(now.Add(MaxClockSkew)) {
		a.metrics.IncrementRejected()
		return models.Sample{}, dErrors.New(dErrors.CodeInvalidInput, "timestamp is in the future")
	}

	sample := models.Sample{
		Timestamp: now,
		Value:     value,
		Weight:    w,
		Source:    source,
	}
	if ts != nil {
		sample.Timestamp = ts.UTC()
	}

	if err := a.store.Append(ctx, sample); err != nil {
		return models.Sample{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record sample")
	}
	a.metrics.IncrementRecorded()
	return sample, nil
}

// Spot returns the latest sample value, or the configured default.
func (a *Aggregator) Spot(ctx context.Context) (models.Spot, error) {
	latest, ok, err := a.store.Latest(ctx)
	if err != nil {
		return models.Spot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read latest sample")
	}
	if !ok {
		return models.Spot{Value: a.defaultSpot, Default: true}, nil
	}
	ts := latest.Timestamp
	return models.Spot{Value: latest.Value, Timestamp: &ts}, nil
}

// TimeWeightedAverage computes the recency-weighted mean of samples recorded
// within the last lookbackDays, rounded to three decimals.
func (a *Aggregator) TimeWeightedAverage(ctx context.Context, lookbackDays, minSamples int) (models.Aggregate, error) {
	start := time.Now()
	if lookbackDays <= 0 {
		return models.Aggregate{}, dErrors.New(dErrors.CodeInvalidInput, "lookback_days must be positive")
	}
	if minSamples < 0 {
		return models.Aggregate{}, dErrors.New(dErrors.CodeInvalidInput, "min_samples must be non-negative")
	}

	now := requestcontext.Now(ctx).UTC()
	from := now.Add(-time.Duration(lookbackDays) * 24 * time.Hour)
	stored, err := a.store.Since(ctx, from)
	if err != nil {
		return models.Aggregate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load samples")
	}
	samples := inWindow(stored, now)
	if len(samples) == 0 {
		return models.Aggregate{}, dErrors.New(dErrors.CodeNoSamplesInWindow, "no samples in lookback window")
	}

	agg := models.Aggregate{
		WindowStart:  from,
		WindowEnd:    now,
		LookbackDays: lookbackDays,
		MinSamples:   minSamples,
		Sufficient:   len(samples) >= minSamples,
	}

	kept := samples
	if len(samples) >= minSamples && len(samples) >= minRejectionSample {
		var rejected bool
		kept, rejected = rejectOutliers(samples)
		agg.OutliersRejected = rejected
	}
	agg.Rejected = len(samples) - len(kept)
	agg.SampleCount = len(kept)

	value, ok := weightedMean(kept)
	if !ok {
		return models.Aggregate{}, dErrors.New(dErrors.CodeNoSamplesInWindow, "samples in window carry no weight")
	}
	agg.Value = value

	a.metrics.ObserveTWA(start, value, agg.Rejected)
	a.logger.DebugContext(ctx, "gi twa computed",
		"request_id", requestcontext.RequestID(ctx),
		"value", value,
		"samples", agg.SampleCount,
		"rejected", agg.Rejected,
	)
	return agg, nil
}

// PruneBefore drops samples older than the cutoff when the store supports it.
func (a *Aggregator) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	p, ok := a.store.(Pruner)
	if !ok {
		return 0, nil
	}
	return p.Prune(ctx, before)
}

// rejectOutliers drops samples more than outlierZ population standard
// deviations from the mean. With zero deviation nothing is dropped.
func rejectOutliers(samples []models.Sample) ([]models.Sample, bool) {
	n := float64(len(samples))
	values := sortedValues(samples)
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	sigma := math.Sqrt(sq / n)
	if sigma == 0 {
		return samples, false
	}

	kept := make([]models.Sample, 0, len(samples))
	for _, s := range samples {
		if math.Abs(s.Value-mean)/sigma <= outlierZ {
			kept = append(kept, s)
		}
	}
	return kept, true
}

// weightedMean applies effective weight = weight × (0.2 + 0.8 × recency) where
// recency is measured against the newest sample across the kept span.
// Samples are summed in a canonical order so the result does not depend on
// insertion order.
func weightedMean(samples []models.Sample) (float64, bool) {
	ordered := make([]models.Sample, len(samples))
	copy(ordered, samples)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.Weight < b.Weight
	})

	oldest := ordered[0].Timestamp
	newest := ordered[len(ordered)-1].Timestamp
	span := newest.Sub(oldest)
	if span < minSpan {
		span = minSpan
	}

	var num, den float64
	for _, s := range ordered {
		age := newest.Sub(s.Timestamp)
		recency := 1 - math.Min(1, float64(age)/float64(span))
		eff := s.Weight * (recencyFloor + (1-recencyFloor)*recency)
		num += eff * s.Value
		den += eff
	}
	if den <= 0 {
		return 0, false
	}
	v := num / den
	v = math.Max(0, math.Min(1, v))
	return math.Round(v*1000) / 1000, true
}

// inWindow drops samples stamped after now. Skewed writes that were accepted
// only count once the clock catches up with them.
func inWindow(samples []models.Sample, now time.Time) []models.Sample {
	out := samples[:0:0]
	for _, s := range samples {
		if !s.Timestamp.After(now) {
			out = append(out, s)
		}
	}
	return out
}

func sortedValues(samples []models.Sample) []float64 {
	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.Value
	}
	sort.Float64s(vals)
	return vals
}
