// Package store persists campaigns, coverage cells, businesses, and
// enrichment rows. Uniqueness lives in Postgres constraints so every
// write is idempotent under retry; batch inserts upsert on their
// documented conflict key.
package store

import (
	"context"
	"time"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Store defines the persistence interface for the campaign pipeline.
type Store interface {
	// Campaigns
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id string, status model.CampaignStatus, errMsg string) error
	UpdateCampaignTotals(ctx context.Context, id string, businesses, emails, socialPages int) error
	Heartbeat(ctx context.Context, id string) error
	ListCampaignsByStatus(ctx context.Context, status model.CampaignStatus) ([]model.Campaign, error)
	StaleRunningCampaigns(ctx context.Context, olderThan time.Duration) ([]model.Campaign, error)

	// Coverage cells
	SaveCoverageCells(ctx context.Context, campaignID string, cells []model.CoverageCell) error
	CoverageCells(ctx context.Context, campaignID string, unscrapedOnly bool) ([]model.CoverageCell, error)
	UpdateCoverageStatus(ctx context.Context, campaignID, zip string, businessesFound, emailsFound int, costUSD float64) error

	// Businesses
	UpsertBusinesses(ctx context.Context, campaignID string, businesses []model.Business) (int64, error)
	CountBusinesses(ctx context.Context, campaignID string) (int, error)
	CountByZip(ctx context.Context, campaignID, zip string) (int, error)
	BusinessesWithUnverifiedDirectEmail(ctx context.Context, campaignID string) ([]model.Business, error)
	BusinessesForSocialEnrichment(ctx context.Context, campaignID string, limit int) ([]model.Business, error)
	BusinessesForProfessionalEnrichment(ctx context.Context, campaignID string, limit int) ([]model.Business, error)
	BusinessesNeedingCopy(ctx context.Context, campaignID string, limit int) ([]model.Business, error)
	LeadsForExport(ctx context.Context, campaignID string) ([]model.Business, error)
	CountBusinessesWithEmail(ctx context.Context, campaignID string) (int, error)
	SetEnrichmentStatus(ctx context.Context, businessIDs []string, state model.EnrichmentState) error
	PromoteEmail(ctx context.Context, businessID, email string, source model.EmailSource, tier int, safe, verified bool) error
	UpdateBusinessCopy(ctx context.Context, businessID, icebreaker, subjectLine, template, formula string, variant int) error

	// Enrichments
	SaveSocialEnrichment(ctx context.Context, e *model.FacebookEnrichment) error
	SaveProfessionalEnrichment(ctx context.Context, e *model.LinkedInEnrichment) error
	UpdateSocialVerification(ctx context.Context, enrichmentID string, res *model.VerifyResult) error
	UpdateProfessionalVerification(ctx context.Context, enrichmentID string, tier int, res *model.VerifyResult) error
	SaveVerifications(ctx context.Context, rows []model.EmailVerification) error

	// Costs and reporting
	TrackApiCost(ctx context.Context, campaignID, service string, items int, costUSD float64) error
	CampaignCosts(ctx context.Context, campaignID string) ([]model.APICost, error)
	RefreshMasterLeads(ctx context.Context) error
	MasterLeads(ctx context.Context, limit int) ([]model.MasterLead, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
