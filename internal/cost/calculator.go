package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Apify     ApifyRates           `yaml:"apify" mapstructure:"apify"`
	Verifier  VerifierRate         `yaml:"verifier" mapstructure:"verifier"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// ApifyRates holds per-actor pricing, billed per 1000 dataset items.
type ApifyRates struct {
	MapsPer1000         float64 `yaml:"maps_per_1000" mapstructure:"maps_per_1000"`
	SocialPer1000       float64 `yaml:"social_per_1000" mapstructure:"social_per_1000"`
	ProfessionalPer1000 float64 `yaml:"professional_per_1000" mapstructure:"professional_per_1000"`
}

// VerifierRate holds email verification pricing per 1000 checks.
type VerifierRate struct {
	Per1000 float64 `yaml:"per_1000" mapstructure:"per_1000"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// Maps computes the cost of scraping the given number of map results.
func (c *Calculator) Maps(items int) float64 {
	return (float64(items) / 1000) * c.rates.Apify.MapsPer1000
}

// Social computes the cost of enriching the given number of social pages.
func (c *Calculator) Social(items int) float64 {
	return (float64(items) / 1000) * c.rates.Apify.SocialPer1000
}

// Professional computes the cost of the given number of professional-network
// lookups (searches and profile scrapes are billed the same).
func (c *Calculator) Professional(items int) float64 {
	return (float64(items) / 1000) * c.rates.Apify.ProfessionalPer1000
}

// Verification computes the cost of verifying the given number of emails.
func (c *Calculator) Verification(items int) float64 {
	return (float64(items) / 1000) * c.rates.Verifier.Per1000
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-6": {
				Input: 15.00, Output: 75.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Apify: ApifyRates{
			MapsPer1000:         4.00,
			SocialPer1000:       10.00,
			ProfessionalPer1000: 10.00,
		},
		Verifier: VerifierRate{Per1000: 2.00},
	}
}
