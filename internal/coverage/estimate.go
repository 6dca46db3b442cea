package coverage

import (
	"math"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// Enrichment share assumptions for pre-run estimates: roughly 30% of
// businesses have a Facebook page, 50% match a professional-network search,
// and 15% yield an email that gets verified.
const (
	estSocialShare       = 0.30
	estProfessionalShare = 0.50
	estEmailShare        = 0.15
)

// directZipEstimate is the assumed business count for a ZIP targeted
// directly, which carries no model-provided estimate.
const directZipEstimate = 250

// estimateCosts projects per-service spend for the given cells. Each cell
// contributes its estimated business count, capped at maxPerZip.
func estimateCosts(calc *cost.Calculator, cells []model.CoverageCell, maxPerZip int) model.ServiceCosts {
	var businesses int
	for _, cell := range cells {
		est := cell.EstimatedBusinesses
		if est <= 0 {
			est = directZipEstimate
		}
		if maxPerZip > 0 && est > maxPerZip {
			est = maxPerZip
		}
		businesses += est
	}

	return model.ServiceCosts{
		Maps:         calc.Maps(businesses),
		Social:       calc.Social(share(businesses, estSocialShare)),
		Professional: calc.Professional(share(businesses, estProfessionalShare)),
		Verification: calc.Verification(share(businesses, estEmailShare)),
	}
}

func share(n int, frac float64) int {
	return int(math.Round(float64(n) * frac))
}
