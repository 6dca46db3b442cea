package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/leadgen-cli/internal/coverage"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scraper"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/internal/writer"
	"github.com/sells-group/leadgen-cli/pkg/verifier"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *mockStore) UpdateCampaignStatus(ctx context.Context, id string, status model.CampaignStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *mockStore) UpdateCampaignTotals(ctx context.Context, id string, businesses, emails, socialPages int) error {
	args := m.Called(ctx, id, businesses, emails, socialPages)
	return args.Error(0)
}

func (m *mockStore) Heartbeat(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) ListCampaignsByStatus(ctx context.Context, status model.CampaignStatus) ([]model.Campaign, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Campaign), args.Error(1)
}

func (m *mockStore) StaleRunningCampaigns(ctx context.Context, olderThan time.Duration) ([]model.Campaign, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Campaign), args.Error(1)
}

func (m *mockStore) SaveCoverageCells(ctx context.Context, campaignID string, cells []model.CoverageCell) error {
	args := m.Called(ctx, campaignID, cells)
	return args.Error(0)
}

func (m *mockStore) CoverageCells(ctx context.Context, campaignID string, unscrapedOnly bool) ([]model.CoverageCell, error) {
	args := m.Called(ctx, campaignID, unscrapedOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CoverageCell), args.Error(1)
}

func (m *mockStore) UpdateCoverageStatus(ctx context.Context, campaignID, zip string, businessesFound, emailsFound int, costUSD float64) error {
	args := m.Called(ctx, campaignID, zip, businessesFound, emailsFound, costUSD)
	return args.Error(0)
}

func (m *mockStore) UpsertBusinesses(ctx context.Context, campaignID string, businesses []model.Business) (int64, error) {
	args := m.Called(ctx, campaignID, businesses)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) CountBusinesses(ctx context.Context, campaignID string) (int, error) {
	args := m.Called(ctx, campaignID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) CountByZip(ctx context.Context, campaignID, zip string) (int, error) {
	args := m.Called(ctx, campaignID, zip)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) BusinessesWithUnverifiedDirectEmail(ctx context.Context, campaignID string) ([]model.Business, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Business), args.Error(1)
}

func (m *mockStore) BusinessesForSocialEnrichment(ctx context.Context, campaignID string, limit int) ([]model.Business, error) {
	args := m.Called(ctx, campaignID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Business), args.Error(1)
}

func (m *mockStore) BusinessesForProfessionalEnrichment(ctx context.Context, campaignID string, limit int) ([]model.Business, error) {
	args := m.Called(ctx, campaignID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Business), args.Error(1)
}

func (m *mockStore) BusinessesNeedingCopy(ctx context.Context, campaignID string, limit int) ([]model.Business, error) {
	args := m.Called(ctx, campaignID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Business), args.Error(1)
}

func (m *mockStore) LeadsForExport(ctx context.Context, campaignID string) ([]model.Business, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Business), args.Error(1)
}

func (m *mockStore) CountBusinessesWithEmail(ctx context.Context, campaignID string) (int, error) {
	args := m.Called(ctx, campaignID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) SetEnrichmentStatus(ctx context.Context, businessIDs []string, state model.EnrichmentState) error {
	args := m.Called(ctx, businessIDs, state)
	return args.Error(0)
}

func (m *mockStore) PromoteEmail(ctx context.Context, businessID, email string, source model.EmailSource, tier int, safe, verified bool) error {
	args := m.Called(ctx, businessID, email, source, tier, safe, verified)
	return args.Error(0)
}

func (m *mockStore) UpdateBusinessCopy(ctx context.Context, businessID, icebreaker, subjectLine, template, formula string, variant int) error {
	args := m.Called(ctx, businessID, icebreaker, subjectLine, template, formula, variant)
	return args.Error(0)
}

func (m *mockStore) SaveSocialEnrichment(ctx context.Context, e *model.FacebookEnrichment) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockStore) SaveProfessionalEnrichment(ctx context.Context, e *model.LinkedInEnrichment) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockStore) UpdateSocialVerification(ctx context.Context, enrichmentID string, res *model.VerifyResult) error {
	args := m.Called(ctx, enrichmentID, res)
	return args.Error(0)
}

func (m *mockStore) UpdateProfessionalVerification(ctx context.Context, enrichmentID string, tier int, res *model.VerifyResult) error {
	args := m.Called(ctx, enrichmentID, tier, res)
	return args.Error(0)
}

func (m *mockStore) SaveVerifications(ctx context.Context, rows []model.EmailVerification) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *mockStore) TrackApiCost(ctx context.Context, campaignID, service string, items int, costUSD float64) error {
	args := m.Called(ctx, campaignID, service, items, costUSD)
	return args.Error(0)
}

func (m *mockStore) CampaignCosts(ctx context.Context, campaignID string) ([]model.APICost, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.APICost), args.Error(1)
}

func (m *mockStore) RefreshMasterLeads(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) MasterLeads(ctx context.Context, limit int) ([]model.MasterLead, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MasterLead), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Map Source Mock ---

type mockMapSource struct {
	mock.Mock
}

func (m *mockMapSource) Scrape(ctx context.Context, campaignID string, keywords, zips []string, maxPerZip int) ([]model.Business, error) {
	args := m.Called(ctx, campaignID, keywords, zips, maxPerZip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Business), args.Error(1)
}

// --- Social Source Mock ---

type mockSocialSource struct {
	mock.Mock
}

func (m *mockSocialSource) ScrapePages(ctx context.Context, urls []string) (map[string]*scraper.FacebookPage, error) {
	args := m.Called(ctx, urls)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*scraper.FacebookPage), args.Error(1)
}

// --- Professional Source Mock ---

type mockProfessionalSource struct {
	mock.Mock
}

func (m *mockProfessionalSource) FindProfileURLs(ctx context.Context, batch []model.Business) (map[string]string, error) {
	args := m.Called(ctx, batch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *mockProfessionalSource) ScrapeProfiles(ctx context.Context, urls []string) (map[string]*scraper.Profile, error) {
	args := m.Called(ctx, urls)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*scraper.Profile), args.Error(1)
}

func (m *mockProfessionalSource) ExtractEmails(ctx context.Context, urls []string) (map[string]scraper.ExtractedContact, error) {
	args := m.Called(ctx, urls)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]scraper.ExtractedContact), args.Error(1)
}

// --- Site Source Mock ---

type mockSiteSource struct {
	mock.Mock
}

func (m *mockSiteSource) FetchText(ctx context.Context, site string, maxRunes int) (string, error) {
	args := m.Called(ctx, site, maxRunes)
	return args.String(0), args.Error(1)
}

// --- Copy Writer Mock ---

type mockCopyWriter struct {
	mock.Mock
}

func (m *mockCopyWriter) Generate(ctx context.Context, req writer.Request) (*writer.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*writer.Result), args.Error(1)
}

// --- Email Verifier Mock ---

type mockEmailVerifier struct {
	mock.Mock
}

func (m *mockEmailVerifier) VerifyBatch(ctx context.Context, emails []string) ([]verifier.Result, error) {
	args := m.Called(ctx, emails)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]verifier.Result), args.Error(1)
}

// --- Planner Mock ---

type mockPlanner struct {
	mock.Mock
}

func (m *mockPlanner) Analyze(ctx context.Context, location string, keywords []string, profile model.Profile, maxPerZip int) (*coverage.Plan, error) {
	args := m.Called(ctx, location, keywords, profile, maxPerZip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coverage.Plan), args.Error(1)
}

// --- Sink Mocks ---

type mockReportSink struct {
	mock.Mock
}

func (m *mockReportSink) PublishReport(ctx context.Context, c *model.Campaign, s *model.Summary) error {
	args := m.Called(ctx, c, s)
	return args.Error(0)
}

type mockLeadSink struct {
	mock.Mock
}

func (m *mockLeadSink) PushLeads(ctx context.Context, c *model.Campaign, leads []model.Business) (int, error) {
	args := m.Called(ctx, c, leads)
	return args.Int(0), args.Error(1)
}

// --- Ensure interface compliance ---
var (
	_ store.Store        = (*mockStore)(nil)
	_ MapSource          = (*mockMapSource)(nil)
	_ SocialSource       = (*mockSocialSource)(nil)
	_ ProfessionalSource = (*mockProfessionalSource)(nil)
	_ SiteSource         = (*mockSiteSource)(nil)
	_ CopyWriter         = (*mockCopyWriter)(nil)
	_ EmailVerifier      = (*mockEmailVerifier)(nil)
	_ Planner            = (*mockPlanner)(nil)
	_ ReportSink         = (*mockReportSink)(nil)
	_ LeadSink           = (*mockLeadSink)(nil)
)
