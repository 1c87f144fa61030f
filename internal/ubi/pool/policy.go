package pool

import (
	"fmt"
	"math"

	dErrors "dividend/pkg/domain-errors"
)

// Band is one GI threshold tier: samples at or above Min (and below the next
// band's Min) scale the raw pool by Multiplier.
type Band struct {
	Min        float64 `yaml:"min" json:"min"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// Thresholds orders the four bands halt < throttle < normal < bonus.
type Thresholds struct {
	Halt     Band `yaml:"halt" json:"halt"`
	Throttle Band `yaml:"throttle" json:"throttle"`
	Normal   Band `yaml:"normal" json:"normal"`
	Bonus    Band `yaml:"bonus" json:"bonus"`
}

type FundingWeights struct {
	AlphaIssuance float64 `yaml:"alpha_issuance" json:"alpha_issuance"`
	BetaDecay     float64 `yaml:"beta_decay" json:"beta_decay"`
}

type Caps struct {
	MaxShareOfReserves    float64 `yaml:"max_share_of_reserves" json:"max_share_of_reserves"`
	MaxShareOfCirculating float64 `yaml:"max_share_of_circulating" json:"max_share_of_circulating"`
}

// StabilityClamp bounds the optional price-stability multiplier supplied with
// the inputs. Disabled means a neutral 1.0.
type StabilityClamp struct {
	Enabled       bool    `yaml:"enabled" json:"enabled"`
	MinMultiplier float64 `yaml:"min_multiplier" json:"min_multiplier"`
	MaxMultiplier float64 `yaml:"max_multiplier" json:"max_multiplier"`
}

// Policy is the full set of knobs for the pool calculation.
type Policy struct {
	FundingWeights FundingWeights `yaml:"funding_weights" json:"funding_weights"`
	Thresholds     Thresholds     `yaml:"thresholds" json:"thresholds"`
	Caps           Caps           `yaml:"caps" json:"caps"`
	Stability      StabilityClamp `yaml:"stability" json:"stability"`
}

func DefaultPolicy() Policy {
	return Policy{
		FundingWeights: FundingWeights{AlphaIssuance: 0.20, BetaDecay: 0.60},
		Thresholds: Thresholds{
			Halt:     Band{Min: 0.90, Multiplier: 0.50},
			Throttle: Band{Min: 0.93, Multiplier: 0.75},
			Normal:   Band{Min: 0.95, Multiplier: 1.00},
			Bonus:    Band{Min: 0.98, Multiplier: 1.10},
		},
		Caps: Caps{MaxShareOfReserves: 0.02, MaxShareOfCirculating: 0.01},
		Stability: StabilityClamp{
			Enabled:       false,
			MinMultiplier: 0.9,
			MaxMultiplier: 1.1,
		},
	}
}

// Validate rejects policies that would make the calculation meaningless.
func (p Policy) Validate() error {
	if !nonNegative(p.FundingWeights.AlphaIssuance) || !nonNegative(p.FundingWeights.BetaDecay) {
		return dErrors.New(dErrors.CodeInvalidInput, "funding weights must be non-negative")
	}

	bands := p.Thresholds.ordered()
	prev := -1.0
	for _, b := range bands {
		if !unit(b.band.Min) {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("threshold %s min must be in [0,1]", b.tier))
		}
		if b.band.Min <= prev {
			return dErrors.New(dErrors.CodeInvalidInput, "threshold bands must be strictly increasing")
		}
		if !nonNegative(b.band.Multiplier) {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("threshold %s multiplier must be non-negative", b.tier))
		}
		prev = b.band.Min
	}

	if !unit(p.Caps.MaxShareOfReserves) || !unit(p.Caps.MaxShareOfCirculating) {
		return dErrors.New(dErrors.CodeInvalidInput, "cap shares must be in [0,1]")
	}

	if p.Stability.Enabled {
		s := p.Stability
		if !(s.MinMultiplier > 0) || math.IsInf(s.MaxMultiplier, 0) || s.MinMultiplier > s.MaxMultiplier {
			return dErrors.New(dErrors.CodeInvalidInput, "stability clamp requires 0 < min_multiplier <= max_multiplier")
		}
	}
	return nil
}

type namedBand struct {
	tier Tier
	band Band
}

func (t Thresholds) ordered() []namedBand {
	return []namedBand{
		{TierHalt, t.Halt},
		{TierThrottle, t.Throttle},
		{TierNormal, t.Normal},
		{TierBonus, t.Bonus},
	}
}

// TierFor selects the highest band whose Min is at or below gi. Below the halt
// band the tier is TierHalted with a zero multiplier.
func (p Policy) TierFor(gi float64) (Tier, float64) {
	bands := p.Thresholds.ordered()
	for i := len(bands) - 1; i >= 0; i-- {
		if gi >= bands[i].band.Min {
			return bands[i].tier, bands[i].band.Multiplier
		}
	}
	return TierHalted, 0
}

// HaltMin is the GI floor below which no distribution or attestation happens.
func (p Policy) HaltMin() float64 {
	return p.Thresholds.Halt.Min
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
