package pool

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const maxShards = int64(1) << 50

// Property: pool never exceeds either cap and per-capita never over-distributes.
func TestCalculate_RespectsCaps(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("pool within caps and distribution within pool", prop.ForAll(
		func(population, issuance, decay, donations, reserves, circulating int64, gi float64) bool {
			in := Inputs{
				Population:      population,
				NetIssuance:     issuance,
				ReabsorbedDecay: decay,
				Donations:       donations,
				Reserves:        reserves,
				Circulating:     circulating,
				GI:              gi,
			}
			res, err := Calculate(in, DefaultPolicy())
			if err != nil {
				return false
			}
			if Verify(res, in, DefaultPolicy()) != nil {
				return false
			}
			return res.PerCapita*res.Recipients <= res.PoolTotal
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, maxShards),
		gen.Int64Range(0, maxShards),
		gen.Int64Range(0, maxShards),
		gen.Int64Range(0, maxShards),
		gen.Int64Range(0, maxShards),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// Property: below the halt threshold the pool is zero whatever else is supplied.
func TestCalculate_HaltDominates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	policy := DefaultPolicy()

	properties.Property("gi below halt yields zero pool", prop.ForAll(
		func(gi float64, issuance, decay, donations int64) bool {
			res, err := Calculate(Inputs{
				Population:      1000,
				NetIssuance:     issuance,
				ReabsorbedDecay: decay,
				Donations:       donations,
				Reserves:        maxShards,
				Circulating:     maxShards,
				GI:              gi,
			}, policy)
			return err == nil && res.PoolTotal == 0 && res.Tier == TierHalted
		},
		gen.Float64Range(0, policy.HaltMin()-1e-9),
		gen.Int64Range(0, maxShards),
		gen.Int64Range(0, maxShards),
		gen.Int64Range(0, maxShards),
	))

	properties.TestingRun(t)
}
