package handler

import (
	"dividend/internal/epoch/service"
	dErrors "dividend/pkg/domain-errors"
)

const (
	defaultListLimit = 20
	maxLookbackDays  = 365
)

// TransitionRequest optionally overrides the GI aggregation window.
type TransitionRequest struct {
	LookbackDays int `json:"lookback_days"`
	MinSamples   int `json:"min_samples"`
}

func (r *TransitionRequest) Validate() error {
	if r.LookbackDays < 0 || r.LookbackDays > maxLookbackDays {
		return dErrors.New(dErrors.CodeValidation, "lookback_days must be between 0 and 365")
	}
	if r.MinSamples < 0 {
		return dErrors.New(dErrors.CodeValidation, "min_samples must not be negative")
	}
	return nil
}

func (r *TransitionRequest) toService() service.TransitionRequest {
	return service.TransitionRequest{LookbackDays: r.LookbackDays, MinSamples: r.MinSamples}
}

// MaintenanceRequest sets or clears the freeze by hand.
type MaintenanceRequest struct {
	Frozen bool `json:"frozen"`
}

func (r *MaintenanceRequest) Validate() error { return nil }
