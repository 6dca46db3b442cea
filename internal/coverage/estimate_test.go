package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/model"
)

func TestEstimateCosts(t *testing.T) {
	t.Parallel()
	calc := cost.NewCalculator(cost.DefaultRates())

	cells := []model.CoverageCell{
		{Zip: "45202", EstimatedBusinesses: 100},
		{Zip: "45208", EstimatedBusinesses: 100},
	}

	got := estimateCosts(calc, cells, 0)

	// 200 businesses: maps $0.80, social 60 pages $0.60, professional 100
	// lookups $1.00, verification 30 emails $0.06.
	assert.InDelta(t, 0.80, got.Maps, 0.0001)
	assert.InDelta(t, 0.60, got.Social, 0.0001)
	assert.InDelta(t, 1.00, got.Professional, 0.0001)
	assert.InDelta(t, 0.06, got.Verification, 0.0001)
	assert.Zero(t, got.LLM)
}

func TestEstimateCosts_MaxPerZipCapsEachCell(t *testing.T) {
	t.Parallel()
	calc := cost.NewCalculator(cost.DefaultRates())

	cells := []model.CoverageCell{
		{Zip: "45202", EstimatedBusinesses: 400},
		{Zip: "45208", EstimatedBusinesses: 30},
	}

	got := estimateCosts(calc, cells, 50)

	// 50 + 30 = 80 businesses.
	assert.InDelta(t, 0.32, got.Maps, 0.0001)
}

func TestEstimateCosts_MissingEstimateAssumesDefault(t *testing.T) {
	t.Parallel()
	calc := cost.NewCalculator(cost.DefaultRates())

	cells := []model.CoverageCell{{Zip: "45202"}}
	got := estimateCosts(calc, cells, 0)

	// Falls back to 250 businesses.
	assert.InDelta(t, 1.00, got.Maps, 0.0001)
}

func TestEstimateCosts_NoCells(t *testing.T) {
	t.Parallel()
	calc := cost.NewCalculator(cost.DefaultRates())

	got := estimateCosts(calc, nil, 0)
	assert.Zero(t, got.Total())
}
