package pipeline

import (
	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// execHarness bundles one mock per executor dependency so tests only wire
// the expectations their scenario touches.
type execHarness struct {
	st       *mockStore
	planner  *mockPlanner
	maps     *mockMapSource
	social   *mockSocialSource
	pro      *mockProfessionalSource
	site     *mockSiteSource
	writer   *mockCopyWriter
	verifier *mockEmailVerifier
	reports  *mockReportSink
	leads    *mockLeadSink
}

func newHarness() *execHarness {
	return &execHarness{
		st:       &mockStore{},
		planner:  &mockPlanner{},
		maps:     &mockMapSource{},
		social:   &mockSocialSource{},
		pro:      &mockProfessionalSource{},
		site:     &mockSiteSource{},
		writer:   &mockCopyWriter{},
		verifier: &mockEmailVerifier{},
		reports:  &mockReportSink{},
		leads:    &mockLeadSink{},
	}
}

func (h *execHarness) executor(cfg *config.Config) *Executor {
	return New(cfg, h.st, h.planner, h.maps, h.social, h.pro, h.site, h.writer, h.verifier, h.reports, h.leads)
}

// executorNoSinks leaves the report and CRM sinks unconfigured.
func (h *execHarness) executorNoSinks(cfg *config.Config) *Executor {
	return New(cfg, h.st, h.planner, h.maps, h.social, h.pro, h.site, h.writer, h.verifier, nil, nil)
}

func testConfig() *config.Config {
	return &config.Config{
		LLM:      config.LLMConfig{HeavyModel: "claude-sonnet-4-5-20250929"},
		Verifier: config.VerifierConfig{SafeScore: 70},
		Pipeline: config.PipelineConfig{
			IcebreakerWorkers:     2,
			ProfessionalBatches:   1,
			ProfessionalBatchSize: 15,
			SocialBatchSize:       50,
			SocialLimit:           500,
			ZipBatchSize:          10,
			MaxPerZip:             25,
			MapTimeoutMins:        5,
			SocialTimeoutMins:     5,
			ProTimeoutMins:        5,
		},
	}
}

func draftCampaign() *model.Campaign {
	return &model.Campaign{
		ID:        "c-1",
		OrgID:     "org-1",
		Name:      "Atlanta Plumbers Q3",
		Location:  "Atlanta, GA",
		Keywords:  []string{"plumber"},
		Profile:   model.ProfileBalanced,
		Template:  "auto",
		Status:    model.CampaignDraft,
		MaxPerZip: 25,
	}
}

func unscrapedCells(zips ...string) []model.CoverageCell {
	cells := make([]model.CoverageCell, 0, len(zips))
	for _, z := range zips {
		cells = append(cells, model.CoverageCell{
			CampaignID: "c-1",
			Zip:        z,
			Keywords:   []string{"plumber"},
			MaxResults: 25,
		})
	}
	return cells
}
