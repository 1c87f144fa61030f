package models

import (
	"time"
)

// Default TWA window. One epoch spans DefaultLookbackDays.
const (
	DefaultLookbackDays = 90
	DefaultMinSamples   = 100
)

// Sample is one integrity observation. Immutable once recorded.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Weight    float64   `json:"weight"`
	Source    string    `json:"source,omitempty"`
}

// Aggregate is a time-weighted average over a lookback window. Derived on
// demand, never stored.
type Aggregate struct {
	Value            float64   `json:"value"`
	SampleCount      int       `json:"sample_count"`
	Rejected         int       `json:"rejected"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	LookbackDays     int       `json:"lookback_days"`
	MinSamples       int       `json:"min_samples"`
	Sufficient       bool      `json:"sufficient"`
	OutliersRejected bool      `json:"outliers_rejected"`
}

// Spot is the latest observed value.
type Spot struct {
	Value     float64    `json:"value"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Default   bool       `json:"default"`
}
