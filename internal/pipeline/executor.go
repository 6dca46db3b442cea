// Package pipeline orchestrates campaign execution: map discovery, social
// and professional enrichment, copy generation, and finalisation. Phases
// run strictly in order; enrichment failures skip the phase while Phase 1
// failures fail the campaign.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/coverage"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scraper"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/internal/writer"
	"github.com/sells-group/leadgen-cli/pkg/verifier"
)

// MapSource discovers businesses for a group of ZIPs.
type MapSource interface {
	Scrape(ctx context.Context, campaignID string, keywords, zips []string, maxPerZip int) ([]model.Business, error)
}

// SocialSource scrapes Facebook pages keyed by normalised URL.
type SocialSource interface {
	ScrapePages(ctx context.Context, urls []string) (map[string]*scraper.FacebookPage, error)
}

// ProfessionalSource finds and scrapes LinkedIn profiles.
type ProfessionalSource interface {
	FindProfileURLs(ctx context.Context, batch []model.Business) (map[string]string, error)
	ScrapeProfiles(ctx context.Context, urls []string) (map[string]*scraper.Profile, error)
	ExtractEmails(ctx context.Context, urls []string) (map[string]scraper.ExtractedContact, error)
}

// SiteSource fetches homepage plaintext for writer context.
type SiteSource interface {
	FetchText(ctx context.Context, site string, maxRunes int) (string, error)
}

// CopyWriter generates icebreaker and subject copy for one business.
type CopyWriter interface {
	Generate(ctx context.Context, req writer.Request) (*writer.Result, error)
}

// EmailVerifier checks deliverability for a set of addresses.
type EmailVerifier interface {
	VerifyBatch(ctx context.Context, emails []string) ([]verifier.Result, error)
}

// Planner builds the coverage plan during campaign creation.
type Planner interface {
	Analyze(ctx context.Context, location string, keywords []string, profile model.Profile, maxPerZip int) (*coverage.Plan, error)
}

// ReportSink publishes a campaign report page. Nil disables the sink.
type ReportSink interface {
	PublishReport(ctx context.Context, c *model.Campaign, s *model.Summary) error
}

// LeadSink pushes safe leads to the CRM. Nil disables the sink.
type LeadSink interface {
	PushLeads(ctx context.Context, c *model.Campaign, leads []model.Business) (int, error)
}

// Executor runs campaigns end to end.
type Executor struct {
	cfg      *config.Config
	store    store.Store
	planner  Planner
	maps     MapSource
	social   SocialSource
	pro      ProfessionalSource
	site     SiteSource
	writer   CopyWriter
	verifier EmailVerifier
	reports  ReportSink
	leads    LeadSink
	calc     *cost.Calculator
}

// New creates an Executor with all dependencies. reports and leads may be
// nil when the corresponding sink is not configured.
func New(
	cfg *config.Config,
	st store.Store,
	planner Planner,
	maps MapSource,
	social SocialSource,
	pro ProfessionalSource,
	site SiteSource,
	cw CopyWriter,
	ev EmailVerifier,
	reports ReportSink,
	leads LeadSink,
) *Executor {
	return &Executor{
		cfg:      cfg,
		store:    st,
		planner:  planner,
		maps:     maps,
		social:   social,
		pro:      pro,
		site:     site,
		writer:   cw,
		verifier: ev,
		reports:  reports,
		leads:    leads,
		calc:     cost.NewCalculator(cost.DefaultRates()),
	}
}

// CreateRequest describes a campaign to plan and persist.
type CreateRequest struct {
	Name      string
	Location  string
	Keywords  []string
	Profile   model.Profile
	Template  string
	OrgID     string
	MaxPerZip int
}

// Create runs coverage analysis and persists the campaign as a draft with
// its coverage cells. When analysis produces no ZIPs the draft is saved in
// manual mode and Execute refuses it until cells are added.
func (e *Executor) Create(ctx context.Context, req CreateRequest) (*model.Campaign, error) {
	maxPerZip := req.MaxPerZip
	if maxPerZip <= 0 {
		maxPerZip = e.cfg.Pipeline.MaxPerZip
	}

	plan, err := e.planner.Analyze(ctx, req.Location, req.Keywords, req.Profile, maxPerZip)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: analyze coverage")
	}

	c := &model.Campaign{
		OrgID:            req.OrgID,
		Name:             req.Name,
		Location:         req.Location,
		Keywords:         req.Keywords,
		Profile:          req.Profile,
		Template:         req.Template,
		Status:           model.CampaignDraft,
		EstimatedCostUSD: plan.EstimatedCostUSD(),
		MaxPerZip:        maxPerZip,
	}
	if plan.ManualMode {
		c.ErrorMessage = "coverage analysis produced no ZIPs; add cells before running"
	}

	if err := e.store.CreateCampaign(ctx, c); err != nil {
		return nil, eris.Wrap(err, "pipeline: create campaign")
	}
	if len(plan.Cells) > 0 {
		if err := e.store.SaveCoverageCells(ctx, c.ID, plan.Cells); err != nil {
			return nil, eris.Wrap(err, "pipeline: save coverage cells")
		}
	}

	zap.L().Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("location", req.Location),
		zap.Int("zips", len(plan.Cells)),
		zap.Float64("estimated_cost_usd", c.EstimatedCostUSD),
		zap.Bool("manual_mode", plan.ManualMode),
	)
	return c, nil
}

// Execute runs the four phases for one campaign. Work already persisted is
// skipped by the selection queries, so Execute is idempotent under rerun.
// A pause request is honoured at the next ZIP-batch boundary; the summary
// then reports the paused status and no error.
func (e *Executor) Execute(ctx context.Context, campaignID string, maxPerZip int) (*model.Summary, error) {
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load campaign")
	}
	if c == nil {
		return nil, eris.Errorf("pipeline: campaign %s not found", campaignID)
	}
	if c.Status == model.CampaignRunning {
		return nil, eris.Errorf("pipeline: campaign %s is already running", campaignID)
	}
	if maxPerZip <= 0 {
		maxPerZip = c.MaxPerZip
	}
	if maxPerZip <= 0 {
		maxPerZip = e.cfg.Pipeline.MaxPerZip
	}

	cells, err := e.store.CoverageCells(ctx, campaignID, false)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load coverage cells")
	}
	if len(cells) == 0 {
		return nil, eris.Errorf("pipeline: campaign %s has no coverage cells; add ZIPs before running", campaignID)
	}

	log := zap.L().With(zap.String("campaign_id", campaignID))
	log.Info("campaign execution starting",
		zap.String("name", c.Name),
		zap.String("location", c.Location),
		zap.Int("cells", len(cells)),
		zap.Int("max_per_zip", maxPerZip),
	)

	if err := e.store.UpdateCampaignStatus(ctx, campaignID, model.CampaignRunning, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: mark running")
	}

	// Heartbeat runs from here until return so the watchdog can tell a
	// live worker from a dead one.
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go e.heartbeat(hbCtx, campaignID)

	summary := &model.Summary{CampaignID: campaignID}

	setStatus := func(status model.CampaignStatus, errMsg string) {
		if statusErr := e.store.UpdateCampaignStatus(ctx, campaignID, status, errMsg); statusErr != nil {
			log.Warn("status update failed",
				zap.String("status", string(status)),
				zap.Error(statusErr),
			)
		}
	}

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) *model.PhaseResult {
		start := time.Now()
		pr, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if pr == nil {
			pr = &model.PhaseResult{}
		}
		pr.Name = name
		pr.Duration = duration

		switch {
		case fnErr != nil:
			pr.Status = model.PhaseFailed
			if errors.Is(fnErr, context.DeadlineExceeded) {
				pr.Status = model.PhaseTimeout
			}
			pr.Error = fnErr.Error()
			log.Error("phase failed",
				zap.String("phase", name),
				zap.String("status", string(pr.Status)),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		case pr.Status == "":
			pr.Status = model.PhaseComplete
			log.Info("phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		default:
			log.Info("phase finished",
				zap.String("phase", name),
				zap.String("status", string(pr.Status)),
				zap.Int64("duration_ms", duration),
			)
		}

		phasesMu.Lock()
		summary.Phases = append(summary.Phases, *pr)
		phasesMu.Unlock()
		return pr
	}

	// ===== Phase 1: map discovery =====
	var disc *discoveryStats
	pr := trackPhase("1_discovery", func() (*model.PhaseResult, error) {
		phaseCtx, cancel := context.WithTimeout(ctx, minutesOr(e.cfg.Pipeline.MapTimeoutMins, 30))
		defer cancel()
		d, derr := e.runDiscovery(phaseCtx, c, cells, maxPerZip)
		if derr != nil {
			return nil, derr
		}
		disc = d
		return &model.PhaseResult{
			Metadata: map[string]any{
				"zips_scraped": d.ZipsScraped,
				"businesses":   d.Businesses,
				"emails":       d.Emails,
			},
		}, nil
	})
	if pr.Status == model.PhaseFailed || pr.Status == model.PhaseTimeout {
		setStatus(model.CampaignFailed, pr.Error)
		summary.Status = model.CampaignFailed
		summary.Error = pr.Error
		return summary, eris.Errorf("pipeline: discovery failed: %s", pr.Error)
	}

	summary.ZipsScraped = disc.ZipsScraped
	summary.TotalBusinesses = disc.Businesses
	summary.TotalEmails = disc.Emails
	summary.TotalSocialPages = c.TotalSocialPages

	if disc.Paused {
		summary.Status = model.CampaignPaused
		log.Info("campaign paused between batches",
			zap.Int("zips_scraped", disc.ZipsScraped),
		)
		return summary, nil
	}

	// ===== Phase 2: social enrichment =====
	trackPhase("2_social", func() (*model.PhaseResult, error) {
		phaseCtx, cancel := context.WithTimeout(ctx, minutesOr(e.cfg.Pipeline.SocialTimeoutMins, 60))
		defer cancel()
		st, serr := e.runSocial(phaseCtx, c)
		if serr != nil {
			return nil, serr
		}
		summary.TotalSocialPages += st.Pages
		return &model.PhaseResult{
			Metadata: map[string]any{
				"candidates": st.Candidates,
				"pages":      st.Pages,
				"emails":     st.Emails,
				"missing":    st.Missing,
			},
		}, nil
	})
	e.refreshTotals(ctx, summary, log)

	// ===== Phase 2.5: professional enrichment =====
	trackPhase("2_5_professional", func() (*model.PhaseResult, error) {
		phaseCtx, cancel := context.WithTimeout(ctx, minutesOr(e.cfg.Pipeline.ProTimeoutMins, 90))
		defer cancel()
		st, perr := e.runProfessional(phaseCtx, c)
		if perr != nil {
			return nil, perr
		}
		return &model.PhaseResult{
			Metadata: map[string]any{
				"candidates": st.candidates,
				"profiles":   st.profiles,
				"tier2":      st.tier2,
				"tier4":      st.tier4,
				"misses":     st.misses,
			},
		}, nil
	})
	e.refreshTotals(ctx, summary, log)

	// ===== Phase 3: copy generation =====
	// No timeout wrap; the worker pool self-limits and honours ctx.
	trackPhase("3_copy", func() (*model.PhaseResult, error) {
		done, cerr := e.runCopy(ctx, c)
		summary.IcebreakersDone = done
		if cerr != nil {
			return nil, cerr
		}
		return &model.PhaseResult{
			Metadata: map[string]any{"icebreakers": done},
		}, nil
	})

	e.finalise(ctx, campaignID, summary, log)

	log.Info("campaign execution finished",
		zap.String("status", string(summary.Status)),
		zap.Int("businesses", summary.TotalBusinesses),
		zap.Int("emails", summary.TotalEmails),
		zap.Int("icebreakers", summary.IcebreakersDone),
		zap.Float64("cost_usd", summary.CostUSD),
	)
	return summary, nil
}

// Pause asks a running campaign to stop at the next ZIP-batch boundary.
func (e *Executor) Pause(ctx context.Context, campaignID string) error {
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return eris.Wrap(err, "pipeline: load campaign")
	}
	if c == nil {
		return eris.Errorf("pipeline: campaign %s not found", campaignID)
	}
	if c.Status != model.CampaignRunning {
		return eris.Errorf("pipeline: campaign %s is %s, not running", campaignID, c.Status)
	}
	return e.store.UpdateCampaignStatus(ctx, campaignID, model.CampaignPaused, "")
}

// Resume re-executes a paused campaign. Scraped cells and recorded
// enrichment attempts are skipped, so only the remaining work runs.
func (e *Executor) Resume(ctx context.Context, campaignID string) (*model.Summary, error) {
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load campaign")
	}
	if c == nil {
		return nil, eris.Errorf("pipeline: campaign %s not found", campaignID)
	}
	if c.Status != model.CampaignPaused {
		return nil, eris.Errorf("pipeline: campaign %s is %s, not paused", campaignID, c.Status)
	}
	return e.Execute(ctx, campaignID, 0)
}

// heartbeat refreshes updated_at on an interval while the campaign runs.
func (e *Executor) heartbeat(ctx context.Context, campaignID string) {
	interval := time.Duration(e.cfg.Pipeline.HeartbeatSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.store.Heartbeat(ctx, campaignID); err != nil {
				zap.L().Warn("heartbeat failed",
					zap.String("campaign_id", campaignID),
					zap.Error(err),
				)
			}
		}
	}
}

// pauseRequested re-reads the campaign row; Pause flips the status and the
// next batch boundary observes it.
func (e *Executor) pauseRequested(ctx context.Context, campaignID string) bool {
	cur, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		zap.L().Warn("pause check failed",
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
		return false
	}
	return cur != nil && cur.Status == model.CampaignPaused
}

// persistTotals re-counts from persisted rows and writes the campaign
// totals. In-memory counters never feed the campaign row.
func (e *Executor) persistTotals(ctx context.Context, campaignID string, socialPages int) (businesses, emails int, err error) {
	businesses, err = e.store.CountBusinesses(ctx, campaignID)
	if err != nil {
		return 0, 0, eris.Wrap(err, "pipeline: count businesses")
	}
	emails, err = e.store.CountBusinessesWithEmail(ctx, campaignID)
	if err != nil {
		return 0, 0, eris.Wrap(err, "pipeline: count emails")
	}
	if err = e.store.UpdateCampaignTotals(ctx, campaignID, businesses, emails, socialPages); err != nil {
		return 0, 0, eris.Wrap(err, "pipeline: update totals")
	}
	return businesses, emails, nil
}

// refreshTotals is the phase-boundary variant of persistTotals: failures
// are logged because the enrichment phases continue regardless.
func (e *Executor) refreshTotals(ctx context.Context, summary *model.Summary, log *zap.Logger) {
	businesses, emails, err := e.persistTotals(ctx, summary.CampaignID, summary.TotalSocialPages)
	if err != nil {
		log.Warn("totals refresh failed", zap.Error(err))
		return
	}
	summary.TotalBusinesses = businesses
	summary.TotalEmails = emails
}

// trackCost records one service cost row plus the campaign accumulator.
func (e *Executor) trackCost(ctx context.Context, campaignID, service string, items int, costUSD float64) error {
	if items == 0 {
		return nil
	}
	if err := e.store.TrackApiCost(ctx, campaignID, service, items, costUSD); err != nil {
		return eris.Wrapf(err, "pipeline: track %s cost", service)
	}
	return nil
}

// markEnrichment flips enrichment state for a set of businesses.
func (e *Executor) markEnrichment(ctx context.Context, ids []string, state model.EnrichmentState) error {
	if len(ids) == 0 {
		return nil
	}
	if err := e.store.SetEnrichmentStatus(ctx, ids, state); err != nil {
		return eris.Wrap(err, "pipeline: set enrichment status")
	}
	return nil
}

// toVerifyResult maps a verifier verdict onto the stored shape. IsSafe
// applies the configured score threshold.
func toVerifyResult(r *verifier.Result, minScore int) model.VerifyResult {
	return model.VerifyResult{
		Email:       strings.ToLower(strings.TrimSpace(r.Email)),
		Status:      model.VerifyStatus(r.Verdict),
		Score:       r.QualityScore(),
		IsRoleBased: r.Role,
		IsFree:      r.Free,
		IsSafe:      r.Safe(minScore),
	}
}

func minutesOr(mins, fallback int) time.Duration {
	if mins <= 0 {
		mins = fallback
	}
	return time.Duration(mins) * time.Minute
}
