package handler

import (
	"time"

	"dividend/internal/integrity/models"
	dErrors "dividend/pkg/domain-errors"
)

type RecordSampleRequest struct {
	Value     *float64   `json:"value"`
	Weight    *float64   `json:"weight,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Source    string     `json:"source,omitempty"`
}

func (r *RecordSampleRequest) Validate() error {
	if r.Value == nil {
		return dErrors.New(dErrors.CodeValidation, "value is required")
	}
	if len(r.Source) > 128 {
		return dErrors.New(dErrors.CodeValidation, "source must be 128 characters or less")
	}
	return nil
}

type TWAResponse struct {
	models.Aggregate
}
