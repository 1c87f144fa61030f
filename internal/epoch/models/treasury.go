package models

import (
	dErrors "dividend/pkg/domain-errors"
)

// TreasuryFigures are the issuance and treasury inputs to the pool for one
// epoch, in shards. They come from an external collaborator and are checked
// before use.
type TreasuryFigures struct {
	NetIssuance         int64   `json:"net_issuance"`
	Donations           int64   `json:"donations"`
	Reserves            int64   `json:"reserves"`
	Circulating         int64   `json:"circulating"`
	StabilityMultiplier float64 `json:"stability_multiplier,omitempty"`
}

func (f TreasuryFigures) Validate() error {
	if f.NetIssuance < 0 || f.Donations < 0 || f.Reserves < 0 || f.Circulating < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "treasury figures must be non-negative")
	}
	if f.StabilityMultiplier < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "stability multiplier must be non-negative")
	}
	return nil
}
