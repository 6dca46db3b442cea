// Package coverage turns a campaign's free-text location into the concrete
// set of target ZIP codes to scrape. Candidates come from an LLM (fanned out
// city-by-city for statewide targets), get scored, spatially de-overlapped
// against the gazetteer, and priced into a pre-run estimate.
package coverage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/govern"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/zipcatalog"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

// Config holds analyzer tuning. Zero values fall back to defaults.
type Config struct {
	LightModel   string
	CityWorkers  int           // parallel per-city candidate calls in state mode
	StateTimeout time.Duration // wall clock for a whole state fan-out
}

// Analyzer selects target ZIPs for a campaign.
type Analyzer struct {
	llm     anthropic.Client
	catalog *zipcatalog.Catalog
	gov     *govern.Governor
	calc    *cost.Calculator
	cfg     Config
}

// New creates an Analyzer. catalog may be nil when no gazetteer has been
// ingested; spatial selection then runs without distance checks.
func New(llm anthropic.Client, catalog *zipcatalog.Catalog, gov *govern.Governor, calc *cost.Calculator, cfg Config) *Analyzer {
	if cfg.CityWorkers <= 0 {
		cfg.CityWorkers = 10
	}
	if cfg.StateTimeout <= 0 {
		cfg.StateTimeout = 15 * time.Minute
	}
	return &Analyzer{llm: llm, catalog: catalog, gov: gov, calc: calc, cfg: cfg}
}

// Candidate is one ZIP proposed for a campaign, scored for selection.
type Candidate struct {
	Zip                 string
	City                string
	State               string
	DensityScore        float64
	RelevanceScore      float64
	EstimatedBusinesses int
	Lat                 float64
	Lng                 float64
}

// Score is the combined selection score, weighted toward density.
func (c Candidate) Score() float64 {
	return 0.6*c.DensityScore + 0.4*c.RelevanceScore
}

// Plan is the analyzer's output. ManualMode set means candidate generation
// failed and the campaign needs operator-supplied ZIPs before it may run.
type Plan struct {
	Location   Location
	Profile    model.Profile
	Cells      []model.CoverageCell
	Costs      model.ServiceCosts
	ManualMode bool
}

// EstimatedCostUSD is the total projected spend for the plan.
func (p *Plan) EstimatedCostUSD() float64 {
	return p.Costs.Total()
}

// Analyze builds a coverage plan for the location. LLM failures do not
// return an error: the plan comes back empty with ManualMode set, and the
// executor refuses to run such a campaign.
func (a *Analyzer) Analyze(ctx context.Context, location string, keywords []string, profile model.Profile, maxPerZip int) (*Plan, error) {
	if len(keywords) == 0 {
		return nil, eris.New("coverage: at least one keyword required")
	}

	loc := Classify(location)
	params := paramsFor(profile)
	plan := &Plan{Location: loc, Profile: profile}

	var cands []Candidate
	var spacing float64
	var err error

	switch loc.Kind {
	case KindZip:
		cands = a.zipTarget(ctx, loc)
		spacing = 0 // single cell, nothing to de-overlap
	case KindState:
		cands, err = a.stateCandidates(ctx, loc, keywords, params)
		spacing = params.SpacingMiles + stateSpacingPad
	default:
		cands, err = a.cityCandidates(ctx, loc.Label(), keywords, candidateCount(params))
		spacing = spacingForDensity(cands, params.SpacingMiles)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(err, "coverage: analysis cancelled")
		}
		zap.L().Warn("coverage: candidate generation failed, campaign needs manual ZIPs",
			zap.String("location", loc.Label()),
			zap.Error(err),
		)
		plan.ManualMode = true
		return plan, nil
	}
	if len(cands) == 0 {
		zap.L().Warn("coverage: no candidate ZIPs returned, campaign needs manual ZIPs",
			zap.String("location", loc.Label()),
		)
		plan.ManualMode = true
		return plan, nil
	}

	selected := selectSpaced(cands, spacing, params.MinZips, params.MaxZips)

	plan.Cells = make([]model.CoverageCell, 0, len(selected))
	for _, c := range selected {
		plan.Cells = append(plan.Cells, model.CoverageCell{
			Zip:                 c.Zip,
			City:                c.City,
			State:               c.State,
			Keywords:            keywords,
			MaxResults:          maxPerZip,
			DensityScore:        c.DensityScore,
			RelevanceScore:      c.RelevanceScore,
			EstimatedBusinesses: c.EstimatedBusinesses,
		})
	}
	plan.Costs = estimateCosts(a.calc, plan.Cells, maxPerZip)

	zap.L().Info("coverage: plan ready",
		zap.String("location", loc.Label()),
		zap.String("profile", string(profile)),
		zap.Int("candidates", len(cands)),
		zap.Int("selected", len(plan.Cells)),
		zap.Float64("spacing_miles", spacing),
		zap.Float64("estimated_cost_usd", plan.EstimatedCostUSD()),
	)
	return plan, nil
}

// zipTarget builds the single-cell result for a direct ZIP search.
func (a *Analyzer) zipTarget(ctx context.Context, loc Location) []Candidate {
	c := Candidate{
		Zip:                 loc.Zip,
		DensityScore:        1.0,
		RelevanceScore:      1.0,
		EstimatedBusinesses: directZipEstimate,
	}
	if info := a.lookup(ctx, loc.Zip); info != nil {
		c.City, c.State = info.City, info.State
		c.Lat, c.Lng = info.Lat, info.Lng
	}
	return []Candidate{c}
}

// candidateCount is how many ZIPs one candidate call asks the model for.
func candidateCount(params profileParams) int {
	if params.MaxZips <= 0 {
		return 25
	}
	return params.MaxZips
}

// perCityCount splits the candidate budget across a state's cities.
func perCityCount(params profileParams, cities int) int {
	n := candidateCount(params)/cities + 2
	if n < 5 {
		n = 5
	}
	return n
}

// cityCandidates issues one LLM call proposing ZIPs for the target area and
// resolves each proposal against the gazetteer for coordinates.
func (a *Analyzer) cityCandidates(ctx context.Context, area string, keywords []string, count int) ([]Candidate, error) {
	if err := a.gov.WaitForService(ctx, govern.ServiceLLMLight); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(candidateUserPrompt, area, strings.Join(keywords, ", "), count)
	resp, err := a.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.cfg.LightModel,
		MaxTokens: 8192,
		System:    anthropic.BuildCachedSystemBlocks(candidateSystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "coverage: candidates for %s", area)
	}
	resp.Usage.LogCost(a.cfg.LightModel, "coverage")

	parsed, err := parseCandidates(resp.Text())
	if err != nil {
		return nil, err
	}

	cands := make([]Candidate, 0, len(parsed))
	for _, p := range parsed {
		c := Candidate{
			Zip:                 p.Zip,
			DensityScore:        p.DensityScore,
			RelevanceScore:      p.RelevanceScore,
			EstimatedBusinesses: p.EstimatedBusinesses,
		}
		if info := a.lookup(ctx, p.Zip); info != nil {
			c.City, c.State = info.City, info.State
			c.Lat, c.Lng = info.Lat, info.Lng
		}
		cands = append(cands, c)
	}
	return cands, nil
}

// stateCandidates enumerates the state's cities, then fans out per-city
// candidate calls with bounded concurrency under one wall-clock timeout.
// Individual city failures are logged and skipped.
func (a *Analyzer) stateCandidates(ctx context.Context, loc Location, keywords []string, params profileParams) ([]Candidate, error) {
	cities, err := a.enumerateCities(ctx, loc.State, keywords, params)
	if err != nil {
		return nil, err
	}
	if len(cities) == 0 {
		return nil, eris.Errorf("coverage: no cities enumerated for %s", loc.State)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.StateTimeout)
	defer cancel()

	count := perCityCount(params, len(cities))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.CityWorkers)

	var mu sync.Mutex
	var all []Candidate

	for _, city := range cities {
		g.Go(func() error {
			cands, err := a.cityCandidates(gCtx, city+", "+loc.State, keywords, count)
			if err != nil {
				zap.L().Warn("coverage: city fan-out call failed",
					zap.String("city", city),
					zap.String("state", loc.State),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			all = append(all, cands...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return dedupeByZip(all), nil
}

// enumerateCities asks the model for the state's major, medium, and small
// cities, with group sizes set by the profile.
func (a *Analyzer) enumerateCities(ctx context.Context, state string, keywords []string, params profileParams) ([]string, error) {
	if err := a.gov.WaitForService(ctx, govern.ServiceLLMLight); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(cityEnumUserPrompt, state, strings.Join(keywords, ", "),
		params.MajorCities, params.MediumCities, params.SmallCities)
	resp, err := a.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.cfg.LightModel,
		MaxTokens: 2048,
		System:    anthropic.BuildCachedSystemBlocks(cityEnumSystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "coverage: enumerate cities for %s", state)
	}
	resp.Usage.LogCost(a.cfg.LightModel, "coverage")

	list, err := parseCityList(resp.Text())
	if err != nil {
		return nil, err
	}

	cities := list.flatten()
	if limit := params.MajorCities + params.MediumCities + params.SmallCities; len(cities) > limit {
		cities = cities[:limit]
	}
	return cities, nil
}

// lookup resolves a ZIP against the gazetteer, tolerating a nil catalog
// and lookup errors. Missing ZIPs simply lack coordinates.
func (a *Analyzer) lookup(ctx context.Context, zip string) *zipcatalog.ZipInfo {
	if a.catalog == nil {
		return nil
	}
	info, err := a.catalog.Lookup(ctx, zip)
	if err != nil {
		zap.L().Debug("coverage: gazetteer lookup failed", zap.String("zip", zip), zap.Error(err))
		return nil
	}
	return info
}
