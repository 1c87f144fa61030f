// Package pool computes the per-epoch UBI pool. Calculate is a pure function:
// all figures are passed in, nothing is fetched.
package pool

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"

	dErrors "dividend/pkg/domain-errors"
)

type Tier string

const (
	TierHalted   Tier = "halted"
	TierHalt     Tier = "halt"
	TierThrottle Tier = "throttle"
	TierNormal   Tier = "normal"
	TierBonus    Tier = "bonus"
)

type CappedBy string

const (
	CappedByNone        CappedBy = "none"
	CappedByReserves    CappedBy = "reserves"
	CappedByCirculating CappedBy = "circulating"
)

// Inputs are the epoch figures. All amounts are in shards.
type Inputs struct {
	Population      int64   `json:"population"`
	NetIssuance     int64   `json:"net_issuance"`
	ReabsorbedDecay int64   `json:"reabsorbed_decay"`
	Donations       int64   `json:"donations"`
	Reserves        int64   `json:"reserves"`
	Circulating     int64   `json:"circulating"`
	GI              float64 `json:"gi"`
	// StabilityMultiplier is the externally suggested price-stability factor.
	// Zero means neutral. Ignored unless the policy enables the clamp.
	StabilityMultiplier float64 `json:"stability_multiplier,omitempty"`
}

// Result is the computed pool. PerCapita*Recipients+Remainder == PoolTotal.
type Result struct {
	PoolTotal           int64    `json:"pool_total"`
	PerCapita           int64    `json:"per_capita"`
	Recipients          int64    `json:"recipients"`
	Remainder           int64    `json:"remainder"`
	RawPool             int64    `json:"raw_pool"`
	AppliedMultiplier   float64  `json:"applied_multiplier"`
	TierMultiplier      float64  `json:"tier_multiplier"`
	StabilityMultiplier float64  `json:"stability_multiplier"`
	Tier                Tier     `json:"tier"`
	CappedBy            CappedBy `json:"capped_by"`
}

// Halted reports whether the GI interlock zeroed the pool.
func (r Result) Halted() bool {
	return r.Tier == TierHalted
}

var decCtx = apd.BaseContext.WithPrecision(34)

// Calculate turns the epoch inputs into a bounded pool and per-capita amount.
func Calculate(in Inputs, policy Policy) (Result, error) {
	if err := in.validate(); err != nil {
		return Result{}, err
	}
	if err := policy.Validate(); err != nil {
		return Result{}, err
	}

	raw := new(apd.Decimal)
	term := new(apd.Decimal)
	mul(raw, fromFloat(policy.FundingWeights.AlphaIssuance), apd.New(in.NetIssuance, 0))
	mul(term, fromFloat(policy.FundingWeights.BetaDecay), apd.New(in.ReabsorbedDecay, 0))
	add(raw, raw, term)
	add(raw, raw, apd.New(in.Donations, 0))

	rawShards, err := floorInt(raw)
	if err != nil {
		return Result{}, err
	}

	tier, g := policy.TierFor(in.GI)
	if tier == TierHalted {
		return Result{
			RawPool:             rawShards,
			Tier:                TierHalted,
			CappedBy:            CappedByNone,
			StabilityMultiplier: 1,
		}, nil
	}

	pool := new(apd.Decimal)
	mul(pool, raw, fromFloat(g))

	capReserves, capCirculating := caps(in, policy)
	cappedBy := applyCaps(pool, capReserves, capCirculating)

	stability := 1.0
	if policy.Stability.Enabled {
		stability = clampStability(in.StabilityMultiplier, policy.Stability)
		mul(pool, pool, fromFloat(stability))
		if by := applyCaps(pool, capReserves, capCirculating); by != CappedByNone {
			cappedBy = by
		}
	}

	total, err := floorInt(pool)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		PoolTotal:           total,
		RawPool:             rawShards,
		TierMultiplier:      g,
		StabilityMultiplier: stability,
		AppliedMultiplier:   g * stability,
		Tier:                tier,
		CappedBy:            cappedBy,
	}
	// Recipients is the eligible population even when the pool is too small
	// to give each a whole shard; the whole pool is then the remainder.
	if in.Population > 0 {
		res.PerCapita = total / in.Population
		res.Recipients = in.Population
	}
	res.Remainder = res.PoolTotal - res.PerCapita*res.Recipients
	return res, nil
}

// Verify re-checks the output invariants against the inputs. A violation means
// the pool must not be distributed.
func Verify(res Result, in Inputs, policy Policy) error {
	if res.PoolTotal < 0 || res.PerCapita < 0 || res.Recipients < 0 || res.Remainder < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "pool figures must be non-negative")
	}
	if in.GI < policy.HaltMin() && res.PoolTotal != 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "pool must be zero below the halt threshold")
	}

	total := apd.New(res.PoolTotal, 0)
	capReserves, capCirculating := caps(in, policy)
	if total.Cmp(capReserves) > 0 {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("pool %d exceeds reserves cap %s", res.PoolTotal, capReserves.String()))
	}
	if total.Cmp(capCirculating) > 0 {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("pool %d exceeds circulating cap %s", res.PoolTotal, capCirculating.String()))
	}

	distributed := new(apd.Decimal)
	mul(distributed, apd.New(res.PerCapita, 0), apd.New(res.Recipients, 0))
	if distributed.Cmp(total) > 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "per-capita distribution exceeds pool")
	}
	if res.Recipients > in.Population {
		return dErrors.New(dErrors.CodeInvariantViolation, "recipients exceed eligible population")
	}
	if res.PoolTotal-res.PerCapita*res.Recipients != res.Remainder {
		return dErrors.New(dErrors.CodeInvariantViolation, "remainder does not reconcile with pool")
	}
	return nil
}

func (in Inputs) validate() error {
	if in.Population < 0 || in.NetIssuance < 0 || in.ReabsorbedDecay < 0 ||
		in.Donations < 0 || in.Reserves < 0 || in.Circulating < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "pool inputs must be non-negative")
	}
	if math.IsNaN(in.GI) || in.GI < 0 || in.GI > 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "gi must be in [0,1]")
	}
	if math.IsNaN(in.StabilityMultiplier) || in.StabilityMultiplier < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "stability multiplier must be non-negative")
	}
	return nil
}

func caps(in Inputs, policy Policy) (reserves, circulating *apd.Decimal) {
	reserves = new(apd.Decimal)
	circulating = new(apd.Decimal)
	mul(reserves, fromFloat(policy.Caps.MaxShareOfReserves), apd.New(in.Reserves, 0))
	mul(circulating, fromFloat(policy.Caps.MaxShareOfCirculating), apd.New(in.Circulating, 0))
	return reserves, circulating
}

// applyCaps lowers pool in place to the tighter cap and reports which one bound.
func applyCaps(pool, capReserves, capCirculating *apd.Decimal) CappedBy {
	by := CappedByNone
	if pool.Cmp(capReserves) > 0 {
		pool.Set(capReserves)
		by = CappedByReserves
	}
	if pool.Cmp(capCirculating) > 0 {
		pool.Set(capCirculating)
		by = CappedByCirculating
	}
	return by
}

func clampStability(v float64, clamp StabilityClamp) float64 {
	if v == 0 {
		v = 1
	}
	return math.Min(clamp.MaxMultiplier, math.Max(clamp.MinMultiplier, v))
}

// fromFloat converts through the shortest decimal representation so 0.2 is
// exactly 0.2 rather than its binary approximation.
func fromFloat(v float64) *apd.Decimal {
	d, _, err := apd.NewFromString(strconv.FormatFloat(v, 'f', -1, 64))
	if err != nil {
		return apd.New(0, 0)
	}
	return d
}

func mul(res, x, y *apd.Decimal) {
	_, _ = decCtx.Mul(res, x, y)
}

func add(res, x, y *apd.Decimal) {
	_, _ = decCtx.Add(res, x, y)
}

func floorInt(d *apd.Decimal) (int64, error) {
	floored := new(apd.Decimal)
	if _, err := decCtx.Floor(floored, d); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "pool rounding failed")
	}
	v, err := floored.Int64()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "pool exceeds representable shard range")
	}
	return v, nil
}
