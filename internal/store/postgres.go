package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/contact"
	"github.com/sells-group/leadgen-cli/internal/db"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const campaignColumns = `id, org_id, name, location, keywords, profile, template, status,
	error_message, total_businesses, total_emails, total_social_pages,
	cost_maps, cost_social, cost_professional, cost_verification, cost_llm,
	estimated_cost_usd, max_per_zip, created_at, started_at, completed_at, updated_at`

const businessColumns = `id, campaign_id, place_id, name, address, street, city, state, zip,
	phone, website, lat, lon, categories, rating, review_count, hours,
	facebook_url, instagram_url, linkedin_url, email, email_source, email_safe, email_verified,
	flags, booking_url, review_percent, sentiment_tags, competitors,
	contact_first, contact_last, needs_enrichment, enrichment_status,
	icebreaker, subject_line, template_used, formula_used, variant, created_at, updated_at`

// emailRankCase ranks the email currently on a business row. It mirrors
// contact.SourceRank: a linkedin email counts as verified only once the
// verifier confirmed it, otherwise it ranks with pattern guesses.
const emailRankCase = `CASE email_source
	WHEN 'google_maps' THEN 1
	WHEN 'facebook' THEN 2
	WHEN 'linkedin' THEN CASE WHEN email_verified THEN 3 ELSE 1 END
	ELSE 0 END`

// sqlPromoteEmail replaces the business email only on a strictly higher
// source rank. Offering the already-promoted address refreshes the
// verification flags without touching the recorded source, so re-verifying
// never downgrades provenance.
const sqlPromoteEmail = `UPDATE businesses SET
	email = CASE WHEN $6 > ` + emailRankCase + ` THEN $2 ELSE email END,
	email_source = CASE WHEN $6 > ` + emailRankCase + ` THEN $3 ELSE email_source END,
	email_safe = $4,
	email_verified = $5,
	updated_at = now()
WHERE id = $1 AND ($6 > ` + emailRankCase + ` OR email = $2)`

const sqlGetCampaign = `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

const sqlHeartbeat = `UPDATE campaigns SET updated_at = now() WHERE id = $1 AND status = 'running'`

const sqlCountByZip = `SELECT COUNT(*) FROM businesses WHERE campaign_id = $1 AND zip = $2`

const sqlUpdateBusinessCopy = `UPDATE businesses SET icebreaker = $2, subject_line = $3,
	template_used = $4, formula_used = $5, variant = $6, updated_at = now() WHERE id = $1`

const sqlUpdateCoverage = `UPDATE coverage_cells SET scraped = true, businesses_found = $3,
	emails_found = $4, cost_usd = $5, scraped_at = now() WHERE campaign_id = $1 AND zip = $2`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_campaign":         sqlGetCampaign,
	"heartbeat":            sqlHeartbeat,
	"count_by_zip":         sqlCountByZip,
	"promote_email":        sqlPromoteEmail,
	"update_business_copy": sqlUpdateBusinessCopy,
	"update_coverage":      sqlUpdateCoverage,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	s := &PostgresStore{pool: pool, closeFn: pool.Close}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Pool exposes the underlying pool for bulk helpers.
func (s *PostgresStore) Pool() db.Pool { return s.pool }

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `SELECT 1`); err != nil {
		return eris.Wrap(err, "postgres: ping")
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Migrate applies the schema. Every statement is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: run migration")
	}
	return nil
}

// CreateCampaign inserts the campaign, assigning id and timestamps in place.
func (s *PostgresStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	keywords, err := json.Marshal(c.Keywords)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal campaign keywords")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO campaigns (id, org_id, name, location, keywords, profile, template, status,
			error_message, total_businesses, total_emails, total_social_pages,
			cost_maps, cost_social, cost_professional, cost_verification, cost_llm,
			estimated_cost_usd, max_per_zip, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		c.ID, c.OrgID, c.Name, c.Location, keywords, string(c.Profile), c.Template, string(c.Status),
		c.ErrorMessage, c.TotalBusinesses, c.TotalEmails, c.TotalSocialPages,
		c.Costs.Maps, c.Costs.Social, c.Costs.Professional, c.Costs.Verification, c.Costs.LLM,
		c.EstimatedCostUSD, c.MaxPerZip, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "postgres: insert campaign")
	}
	return nil
}

// GetCampaign returns the campaign, or nil when it does not exist.
func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := scanCampaign(s.pool.QueryRow(ctx, sqlGetCampaign, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get campaign")
	}
	return c, nil
}

// UpdateCampaignStatus transitions the campaign and maintains its run
// timestamps: started_at is set on the first transition to running,
// completed_at on any terminal transition and cleared again on a re-run.
func (s *PostgresStore) UpdateCampaignStatus(ctx context.Context, id string, status model.CampaignStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE campaigns SET status = $2, error_message = $3, updated_at = now(),
			started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
			completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN now()
				WHEN $2 = 'running' THEN NULL ELSE completed_at END
		WHERE id = $1`,
		id, string(status), errMsg)
	if err != nil {
		return eris.Wrap(err, "postgres: update campaign status")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: campaign not found: %s", id)
	}
	return nil
}

// UpdateCampaignTotals stores the denormalised campaign counters.
func (s *PostgresStore) UpdateCampaignTotals(ctx context.Context, id string, businesses, emails, socialPages int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE campaigns SET total_businesses = $2, total_emails = $3, total_social_pages = $4, updated_at = now()
		WHERE id = $1`,
		id, businesses, emails, socialPages)
	if err != nil {
		return eris.Wrap(err, "postgres: update campaign totals")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: campaign not found: %s", id)
	}
	return nil
}

// Heartbeat bumps updated_at while the campaign is running. A campaign that
// already reached a terminal status stops matching; the tick is a no-op
// rather than an error.
func (s *PostgresStore) Heartbeat(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, sqlHeartbeat, id); err != nil {
		return eris.Wrap(err, "postgres: heartbeat")
	}
	return nil
}

// ListCampaignsByStatus returns campaigns in the given status, newest first.
// An empty status returns all campaigns.
func (s *PostgresStore) ListCampaignsByStatus(ctx context.Context, status model.CampaignStatus) ([]model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate campaigns")
	}
	return out, nil
}

// StaleRunningCampaigns returns running campaigns whose heartbeat is older
// than the cutoff. The watchdog marks them failed.
func (s *PostgresStore) StaleRunningCampaigns(ctx context.Context, olderThan time.Duration) ([]model.Campaign, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE status = 'running' AND updated_at < $1 ORDER BY updated_at`,
		cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stale campaigns")
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate stale campaigns")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c               model.Campaign
		keywords        []byte
		profile, status string
	)
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Location, &keywords, &profile, &c.Template, &status,
		&c.ErrorMessage, &c.TotalBusinesses, &c.TotalEmails, &c.TotalSocialPages,
		&c.Costs.Maps, &c.Costs.Social, &c.Costs.Professional, &c.Costs.Verification, &c.Costs.LLM,
		&c.EstimatedCostUSD, &c.MaxPerZip, &c.CreatedAt, &c.StartedAt, &c.CompletedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Profile = model.Profile(profile)
	c.Status = model.CampaignStatus(status)
	if err := unmarshalColumn(keywords, &c.Keywords, "campaign keywords"); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCoverageCells upserts the campaign's ZIP plan on (campaign_id, zip).
// Scrape progress columns are never part of the update set, so re-planning a
// campaign keeps already-scraped cells intact.
func (s *PostgresStore) SaveCoverageCells(ctx context.Context, campaignID string, cells []model.CoverageCell) error {
	if len(cells) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(cells))
	for i := range cells {
		cell := &cells[i]
		if cell.ID == "" {
			cell.ID = uuid.New().String()
		}
		if cell.CampaignID == "" {
			cell.CampaignID = campaignID
		}
		if cell.CreatedAt.IsZero() {
			cell.CreatedAt = now
		}
		keywords, err := json.Marshal(cell.Keywords)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal cell keywords")
		}
		rows = append(rows, []any{cell.ID, cell.CampaignID, cell.Zip, cell.City, cell.State, keywords,
			cell.MaxResults, cell.DensityScore, cell.RelevanceScore, cell.EstimatedBusinesses,
			cell.Scraped, cell.BusinessesFound, cell.EmailsFound, cell.CostUSD, cell.CreatedAt})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "coverage_cells",
		Columns: []string{"id", "campaign_id", "zip", "city", "state", "keywords",
			"max_results", "density_score", "relevance_score", "estimated_businesses",
			"scraped", "businesses_found", "emails_found", "cost_usd", "created_at"},
		ConflictKeys: []string{"campaign_id", "zip"},
		UpdateCols:   []string{"keywords", "max_results", "density_score", "relevance_score", "estimated_businesses"},
	}, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: upsert coverage cells")
	}
	return nil
}

// CoverageCells returns the campaign's cells, densest first.
func (s *PostgresStore) CoverageCells(ctx context.Context, campaignID string, unscrapedOnly bool) ([]model.CoverageCell, error) {
	query := `SELECT id, campaign_id, zip, city, state, keywords, max_results, density_score, relevance_score,
		estimated_businesses, scraped, businesses_found, emails_found, cost_usd, scraped_at, created_at
		FROM coverage_cells WHERE campaign_id = $1`
	if unscrapedOnly {
		query += ` AND NOT scraped`
	}
	query += ` ORDER BY density_score DESC, zip`

	rows, err := s.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query coverage cells")
	}
	defer rows.Close()

	var out []model.CoverageCell
	for rows.Next() {
		var (
			cell     model.CoverageCell
			keywords []byte
		)
		err := rows.Scan(&cell.ID, &cell.CampaignID, &cell.Zip, &cell.City, &cell.State, &keywords,
			&cell.MaxResults, &cell.DensityScore, &cell.RelevanceScore, &cell.EstimatedBusinesses,
			&cell.Scraped, &cell.BusinessesFound, &cell.EmailsFound, &cell.CostUSD, &cell.ScrapedAt, &cell.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan coverage cell")
		}
		if err := unmarshalColumn(keywords, &cell.Keywords, "cell keywords"); err != nil {
			return nil, err
		}
		out = append(out, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate coverage cells")
	}
	return out, nil
}

// UpdateCoverageStatus marks one cell scraped with its counts and cost.
func (s *PostgresStore) UpdateCoverageStatus(ctx context.Context, campaignID, zip string, businessesFound, emailsFound int, costUSD float64) error {
	tag, err := s.pool.Exec(ctx, sqlUpdateCoverage, campaignID, zip, businessesFound, emailsFound, costUSD)
	if err != nil {
		return eris.Wrap(err, "postgres: update coverage status")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: coverage cell not found: %s/%s", campaignID, zip)
	}
	return nil
}

// businessBatchSize bounds the rows per upsert transaction.
const businessBatchSize = 50

var businessUpsertColumns = []string{
	"id", "campaign_id", "place_id", "name", "address", "street", "city", "state", "zip",
	"phone", "website", "lat", "lon", "categories", "rating", "review_count", "hours",
	"facebook_url", "instagram_url", "linkedin_url", "email", "email_source",
	"flags", "booking_url", "review_percent", "sentiment_tags", "competitors",
	"contact_first", "contact_last", "needs_enrichment", "enrichment_status",
	"created_at", "updated_at",
}

// businessUpdateColumns restricts what a re-scrape may overwrite. Email
// promotion, verification flags, enrichment bookkeeping, and generated copy
// all survive reruns.
var businessUpdateColumns = []string{
	"name", "address", "street", "city", "state", "zip", "phone", "website", "lat", "lon",
	"categories", "rating", "review_count", "hours", "facebook_url", "instagram_url", "linkedin_url",
	"flags", "booking_url", "review_percent", "sentiment_tags", "competitors",
	"contact_first", "contact_last", "updated_at",
}

// UpsertBusinesses writes scraped businesses in batches, upserting on
// (campaign_id, place_id). The returned count includes conflicting rows, so
// it is not a count of distinct businesses; callers wanting totals re-count.
func (s *PostgresStore) UpsertBusinesses(ctx context.Context, campaignID string, businesses []model.Business) (int64, error) {
	if len(businesses) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	var total int64
	for start := 0; start < len(businesses); start += businessBatchSize {
		end := min(start+businessBatchSize, len(businesses))
		rows := make([][]any, 0, end-start)
		for i := start; i < end; i++ {
			b := &businesses[i]
			if b.ID == "" {
				b.ID = uuid.New().String()
			}
			if b.CampaignID == "" {
				b.CampaignID = campaignID
			}
			if b.EmailSource == "" {
				b.EmailSource = model.EmailSourceNone
			}
			if b.EnrichmentStatus == "" {
				b.EnrichmentStatus = model.EnrichmentPending
			}
			if b.CreatedAt.IsZero() {
				b.CreatedAt = now
			}
			b.UpdatedAt = now
			row, err := businessRow(b)
			if err != nil {
				return total, err
			}
			rows = append(rows, row)
		}

		n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "businesses",
			Columns:      businessUpsertColumns,
			ConflictKeys: []string{"campaign_id", "place_id"},
			UpdateCols:   businessUpdateColumns,
		}, rows)
		if err != nil {
			return total, eris.Wrap(err, "postgres: upsert businesses")
		}
		total += n
	}
	return total, nil
}

func businessRow(b *model.Business) ([]any, error) {
	categories, err := json.Marshal(b.Categories)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal categories")
	}
	hours, err := json.Marshal(b.Hours)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal hours")
	}
	flags, err := json.Marshal(b.Flags)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal flags")
	}
	sentimentTags, err := json.Marshal(b.SentimentTags)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal sentiment tags")
	}
	competitors, err := json.Marshal(b.Competitors)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal competitors")
	}
	return []any{b.ID, b.CampaignID, b.PlaceID, b.Name, b.Address, b.Street, b.City, b.State, b.Zip,
		b.Phone, b.Website, b.Lat, b.Lon, categories, b.Rating, b.ReviewCount, hours,
		b.FacebookURL, b.InstagramURL, b.LinkedInURL, b.Email, string(b.EmailSource),
		flags, b.BookingURL, b.ReviewPercent, sentimentTags, competitors,
		b.ContactFirst, b.ContactLast, b.NeedsEnrichment, string(b.EnrichmentStatus),
		b.CreatedAt, b.UpdatedAt}, nil
}

// CountBusinesses counts all businesses discovered for a campaign.
func (s *PostgresStore) CountBusinesses(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM businesses WHERE campaign_id = $1`, campaignID).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count businesses")
	}
	return n, nil
}

// CountByZip counts the campaign's businesses in one ZIP.
func (s *PostgresStore) CountByZip(ctx context.Context, campaignID, zip string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, sqlCountByZip, campaignID, zip).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count by zip")
	}
	return n, nil
}

// BusinessesWithUnverifiedDirectEmail returns businesses whose map payload
// carried an address that has no verification attempt on record yet. The
// log row is the attempt marker, so undeliverable addresses are not
// re-checked on rerun.
func (s *PostgresStore) BusinessesWithUnverifiedDirectEmail(ctx context.Context, campaignID string) ([]model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses b
		WHERE b.campaign_id = $1 AND b.email <> '' AND b.email_source = 'google_maps'
			AND NOT EXISTS (SELECT 1 FROM email_verifications ev
				WHERE ev.business_id = b.id AND ev.source = 'google_maps')
		ORDER BY b.created_at, b.id`
	return s.queryBusinesses(ctx, query, campaignID)
}

// BusinessesForSocialEnrichment returns businesses with a social page that
// still need enrichment and have not been attempted before. Attempted means
// an enrichment row exists, found or not, so reruns never re-scrape a page.
func (s *PostgresStore) BusinessesForSocialEnrichment(ctx context.Context, campaignID string, limit int) ([]model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses b
		WHERE b.campaign_id = $1 AND b.facebook_url <> '' AND b.needs_enrichment
			AND NOT EXISTS (SELECT 1 FROM facebook_enrichments fe WHERE fe.business_id = b.id)
		ORDER BY b.created_at, b.id`
	args := []any{campaignID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryBusinesses(ctx, query, args...)
}

// BusinessesForProfessionalEnrichment returns businesses still without an
// email after the social pass. Most reviewed first; the professional pass is
// capped well below the campaign size.
func (s *PostgresStore) BusinessesForProfessionalEnrichment(ctx context.Context, campaignID string, limit int) ([]model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses b
		WHERE b.campaign_id = $1 AND b.email = ''
			AND NOT EXISTS (SELECT 1 FROM linkedin_enrichments le WHERE le.business_id = b.id)
		ORDER BY b.review_count DESC, b.created_at, b.id`
	args := []any{campaignID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryBusinesses(ctx, query, args...)
}

// BusinessesNeedingCopy returns emailable businesses without an icebreaker.
func (s *PostgresStore) BusinessesNeedingCopy(ctx context.Context, campaignID string, limit int) ([]model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses b
		WHERE b.campaign_id = $1 AND b.email <> '' AND b.email_source <> 'not_found' AND b.icebreaker = ''
		ORDER BY b.created_at, b.id`
	args := []any{campaignID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryBusinesses(ctx, query, args...)
}

// LeadsForExport returns every emailable business in the campaign.
func (s *PostgresStore) LeadsForExport(ctx context.Context, campaignID string) ([]model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses b
		WHERE b.campaign_id = $1 AND b.email <> '' AND b.email_source <> 'not_found'
		ORDER BY b.zip, b.name`
	return s.queryBusinesses(ctx, query, campaignID)
}

// CountBusinessesWithEmail counts businesses reachable by email. The union
// covers addresses promoted onto the business row and addresses that only
// live on enrichment rows, so the count is authoritative after any phase.
func (s *PostgresStore) CountBusinessesWithEmail(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT id FROM businesses WHERE campaign_id = $1 AND email <> '' AND email_source <> 'not_found'
			UNION
			SELECT business_id FROM facebook_enrichments WHERE campaign_id = $1 AND primary_email <> ''
			UNION
			SELECT business_id FROM linkedin_enrichments WHERE campaign_id = $1 AND primary_email <> ''
		) AS with_email`,
		campaignID).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count businesses with email")
	}
	return n, nil
}

// SetEnrichmentStatus updates the enrichment state for a set of businesses.
// needs_enrichment stays true only while the state is pending.
func (s *PostgresStore) SetEnrichmentStatus(ctx context.Context, businessIDs []string, state model.EnrichmentState) error {
	if len(businessIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE businesses SET enrichment_status = $2, needs_enrichment = ($2 = 'pending'), updated_at = now()
		WHERE id = ANY($1)`,
		businessIDs, string(state))
	if err != nil {
		return eris.Wrap(err, "postgres: set enrichment status")
	}
	return nil
}

// PromoteEmail offers an address for the business's primary email slot. The
// address wins only on a strictly higher source rank than whatever is there;
// offering the already-promoted address refreshes its verification flags.
func (s *PostgresStore) PromoteEmail(ctx context.Context, businessID, email string, source model.EmailSource, tier int, safe, verified bool) error {
	if email == "" {
		return eris.New("postgres: promote empty email")
	}
	rank := contact.SourceRank(source, tier)
	if rank <= 0 {
		return eris.Errorf("postgres: source %q tier %d is not promotable", source, tier)
	}
	return s.promoteEmail(ctx, s.pool, businessID, email, source, rank, safe, verified)
}

func (s *PostgresStore) promoteEmail(ctx context.Context, q execer, businessID, email string, source model.EmailSource, rank int, safe, verified bool) error {
	_, err := q.Exec(ctx, sqlPromoteEmail, businessID, email, string(source), safe, verified, rank)
	if err != nil {
		return eris.Wrap(err, "postgres: promote email")
	}
	return nil
}

// UpdateBusinessCopy stores the generated outreach copy.
func (s *PostgresStore) UpdateBusinessCopy(ctx context.Context, businessID, icebreaker, subjectLine, template, formula string, variant int) error {
	tag, err := s.pool.Exec(ctx, sqlUpdateBusinessCopy, businessID, icebreaker, subjectLine, template, formula, variant)
	if err != nil {
		return eris.Wrap(err, "postgres: update business copy")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: business not found: %s", businessID)
	}
	return nil
}

func (s *PostgresStore) queryBusinesses(ctx context.Context, query string, args ...any) ([]model.Business, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query businesses")
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate businesses")
	}
	return out, nil
}

func scanBusiness(rows pgx.Rows) (model.Business, error) {
	var (
		b                                                    model.Business
		categories, hours, flags, sentimentTags, competitors []byte
		emailSource, enrichmentStatus                        string
	)
	err := rows.Scan(&b.ID, &b.CampaignID, &b.PlaceID, &b.Name, &b.Address, &b.Street, &b.City, &b.State, &b.Zip,
		&b.Phone, &b.Website, &b.Lat, &b.Lon, &categories, &b.Rating, &b.ReviewCount, &hours,
		&b.FacebookURL, &b.InstagramURL, &b.LinkedInURL, &b.Email, &emailSource, &b.EmailSafe, &b.EmailVerified,
		&flags, &b.BookingURL, &b.ReviewPercent, &sentimentTags, &competitors,
		&b.ContactFirst, &b.ContactLast, &b.NeedsEnrichment, &enrichmentStatus,
		&b.Icebreaker, &b.SubjectLine, &b.TemplateUsed, &b.FormulaUsed, &b.Variant, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Business{}, err
	}
	b.EmailSource = model.EmailSource(emailSource)
	b.EnrichmentStatus = model.EnrichmentState(enrichmentStatus)
	if err := unmarshalColumn(categories, &b.Categories, "categories"); err != nil {
		return model.Business{}, err
	}
	if err := unmarshalColumn(hours, &b.Hours, "hours"); err != nil {
		return model.Business{}, err
	}
	if err := unmarshalColumn(flags, &b.Flags, "flags"); err != nil {
		return model.Business{}, err
	}
	if err := unmarshalColumn(sentimentTags, &b.SentimentTags, "sentiment tags"); err != nil {
		return model.Business{}, err
	}
	if err := unmarshalColumn(competitors, &b.Competitors, "competitors"); err != nil {
		return model.Business{}, err
	}
	return b, nil
}

func unmarshalColumn(data []byte, dst any, field string) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return eris.Wrapf(err, "postgres: unmarshal %s", field)
	}
	return nil
}

// execer lets email promotion run on either the pool or an open transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// SaveSocialEnrichment records one social-enrichment attempt and, when an
// address was found, offers it for promotion in the same transaction.
func (s *PostgresStore) SaveSocialEnrichment(ctx context.Context, e *model.FacebookEnrichment) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = model.EnrichmentNoEmail
		if e.PrimaryEmail != "" {
			e.Outcome = model.EnrichmentFound
		}
	}

	emails, err := json.Marshal(e.EmailsFound)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal emails found")
	}
	verification, err := marshalVerification(e.Verification)
	if err != nil {
		return err
	}
	raw, err := marshalRaw(e.Raw)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO facebook_enrichments (id, business_id, campaign_id, page_url, page_name, likes, followers,
			emails_found, primary_email, phone, address, outcome, verification, raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.BusinessID, e.CampaignID, e.PageURL, e.PageName, e.Likes, e.Followers,
		emails, e.PrimaryEmail, e.Phone, e.Address, string(e.Outcome), verification, raw, e.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "postgres: insert facebook enrichment")
	}

	if e.PrimaryEmail != "" {
		rank := contact.SourceRank(model.EmailSourceFacebook, 0)
		safe, verified := verdictFlags(e.Verification)
		if err := s.promoteEmail(ctx, tx, e.BusinessID, e.PrimaryEmail, model.EmailSourceFacebook, rank, safe, verified); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}

// SaveProfessionalEnrichment records one professional-enrichment attempt and,
// when an address was found, offers it for promotion in the same transaction.
// Pattern-constructed addresses rank below scraped ones and only ever fill an
// empty slot.
func (s *PostgresStore) SaveProfessionalEnrichment(ctx context.Context, e *model.LinkedInEnrichment) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.EmailTier == 0 {
		e.EmailTier = model.EmailTierNotFound
	}
	if e.Outcome == "" {
		e.Outcome = model.EnrichmentNoEmail
		if e.PrimaryEmail != "" {
			e.Outcome = model.EnrichmentFound
		}
	}

	emails, err := json.Marshal(e.EmailsFound)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal emails found")
	}
	patternEmails, err := json.Marshal(e.PatternEmails)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pattern emails")
	}
	phones, err := json.Marshal(e.Phones)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phones")
	}
	verification, err := marshalVerification(e.Verification)
	if err != nil {
		return err
	}
	raw, err := marshalRaw(e.Raw)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO linkedin_enrichments (id, business_id, campaign_id, profile_url, profile_type, profile_name,
			headline, emails_found, pattern_emails, primary_email, email_tier, phones, outcome, verification, raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.BusinessID, e.CampaignID, e.ProfileURL, e.ProfileType, e.ProfileName,
		e.Headline, emails, patternEmails, e.PrimaryEmail, e.EmailTier, phones,
		string(e.Outcome), verification, raw, e.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "postgres: insert linkedin enrichment")
	}

	if e.PrimaryEmail != "" {
		if rank := contact.SourceRank(model.EmailSourceLinkedIn, e.EmailTier); rank > 0 {
			safe, verified := verdictFlags(e.Verification)
			if err := s.promoteEmail(ctx, tx, e.BusinessID, e.PrimaryEmail, model.EmailSourceLinkedIn, rank, safe, verified); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}

// UpdateSocialVerification attaches a verifier result to a social enrichment
// row and re-offers the address so the business flags track the verdict.
func (s *PostgresStore) UpdateSocialVerification(ctx context.Context, enrichmentID string, res *model.VerifyResult) error {
	if res == nil {
		return eris.New("postgres: nil verification result")
	}
	verification, err := marshalVerification(res)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var businessID, primaryEmail string
	err = tx.QueryRow(ctx, `
		UPDATE facebook_enrichments SET verification = $2 WHERE id = $1
		RETURNING business_id, primary_email`,
		enrichmentID, verification).Scan(&businessID, &primaryEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Errorf("postgres: facebook enrichment not found: %s", enrichmentID)
		}
		return eris.Wrap(err, "postgres: update facebook verification")
	}

	if primaryEmail != "" {
		rank := contact.SourceRank(model.EmailSourceFacebook, 0)
		verified := res.Status == model.VerifyDeliverable
		if err := s.promoteEmail(ctx, tx, businessID, primaryEmail, model.EmailSourceFacebook, rank, res.IsSafe, verified); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}

// UpdateProfessionalVerification attaches a verifier result to a professional
// enrichment row, regrades its tier, and re-offers the address under the new
// tier. A pattern guess the verifier confirmed is promoted as verified.
func (s *PostgresStore) UpdateProfessionalVerification(ctx context.Context, enrichmentID string, tier int, res *model.VerifyResult) error {
	if res == nil {
		return eris.New("postgres: nil verification result")
	}
	verification, err := marshalVerification(res)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var businessID, primaryEmail string
	err = tx.QueryRow(ctx, `
		UPDATE linkedin_enrichments SET verification = $2, email_tier = $3 WHERE id = $1
		RETURNING business_id, primary_email`,
		enrichmentID, verification, tier).Scan(&businessID, &primaryEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Errorf("postgres: linkedin enrichment not found: %s", enrichmentID)
		}
		return eris.Wrap(err, "postgres: update linkedin verification")
	}

	if primaryEmail != "" {
		if rank := contact.SourceRank(model.EmailSourceLinkedIn, tier); rank > 0 {
			verified := res.Status == model.VerifyDeliverable
			if err := s.promoteEmail(ctx, tx, businessID, primaryEmail, model.EmailSourceLinkedIn, rank, res.IsSafe, verified); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}

var verificationColumns = []string{"id", "campaign_id", "business_id", "enrichment_id",
	"source", "email", "status", "score", "is_safe", "result", "created_at"}

// SaveVerifications appends verification log rows via COPY. The log is
// append-only; the latest verdict for an address lives on the business row.
func (s *PostgresStore) SaveVerifications(ctx context.Context, rows []model.EmailVerification) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	copyRows := make([][]any, 0, len(rows))
	for i := range rows {
		v := &rows[i]
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		result, err := json.Marshal(v.Result)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal verification result")
		}
		copyRows = append(copyRows, []any{v.ID, v.CampaignID, v.BusinessID, v.EnrichmentID,
			string(v.Source), v.Result.Email, string(v.Result.Status), v.Result.Score, v.Result.IsSafe,
			result, v.CreatedAt})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "email_verifications", verificationColumns, copyRows); err != nil {
		return eris.Wrap(err, "postgres: copy verifications")
	}
	return nil
}

func marshalVerification(v *model.VerifyResult) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal verification")
	}
	return b, nil
}

func marshalRaw(raw map[string]any) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal raw payload")
	}
	return b, nil
}

func verdictFlags(v *model.VerifyResult) (safe, verified bool) {
	if v == nil {
		return false, false
	}
	return v.IsSafe, v.Status == model.VerifyDeliverable
}

// TrackApiCost logs one billed unit of external work and bumps the
// campaign's per-service accumulator in the same transaction.
func (s *PostgresStore) TrackApiCost(ctx context.Context, campaignID, service string, items int, costUSD float64) error {
	column, ok := serviceCostColumn(service)
	if !ok {
		return eris.Errorf("postgres: unknown cost service: %s", service)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO api_costs (id, campaign_id, service, items, cost_usd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), campaignID, service, items, costUSD, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "postgres: insert api cost")
	}

	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE campaigns SET %s = %s + $2, updated_at = now() WHERE id = $1`, column, column),
		campaignID, costUSD)
	if err != nil {
		return eris.Wrap(err, "postgres: accumulate campaign cost")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: campaign not found: %s", campaignID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}

// serviceCostColumn maps a service name to its campaign accumulator column.
// The switch doubles as an allowlist since the column is interpolated.
func serviceCostColumn(service string) (string, bool) {
	switch service {
	case model.ServiceMaps:
		return "cost_maps", true
	case model.ServiceSocial:
		return "cost_social", true
	case model.ServiceProfessional:
		return "cost_professional", true
	case model.ServiceVerification:
		return "cost_verification", true
	case model.ServiceLLM:
		return "cost_llm", true
	}
	return "", false
}

// CampaignCosts returns the campaign's cost log, oldest first.
func (s *PostgresStore) CampaignCosts(ctx context.Context, campaignID string) ([]model.APICost, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, campaign_id, service, items, cost_usd, created_at
		FROM api_costs WHERE campaign_id = $1 ORDER BY created_at, id`,
		campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query api costs")
	}
	defer rows.Close()

	var out []model.APICost
	for rows.Next() {
		var c model.APICost
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Service, &c.Items, &c.CostUSD, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan api cost")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate api costs")
	}
	return out, nil
}

// RefreshMasterLeads rebuilds the cross-campaign deduplicated leads view.
// CONCURRENTLY keeps readers unblocked; the unique place_id index makes that
// legal.
func (s *PostgresStore) RefreshMasterLeads(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY master_leads`); err != nil {
		return eris.Wrap(err, "postgres: refresh master leads")
	}
	return nil
}

// MasterLeads returns the most recently seen deduplicated leads.
func (s *PostgresStore) MasterLeads(ctx context.Context, limit int) ([]model.MasterLead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT place_id, name, city, state, zip, phone, website, email, email_source, last_seen_at
		FROM master_leads ORDER BY last_seen_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query master leads")
	}
	defer rows.Close()

	var out []model.MasterLead
	for rows.Next() {
		var l model.MasterLead
		err := rows.Scan(&l.PlaceID, &l.Name, &l.City, &l.State, &l.Zip,
			&l.Phone, &l.Website, &l.Email, &l.EmailSource, &l.LastSeenAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan master lead")
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate master leads")
	}
	return out, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	keywords JSONB NOT NULL DEFAULT '[]',
	profile TEXT NOT NULL DEFAULT 'balanced',
	template TEXT NOT NULL DEFAULT 'auto',
	status TEXT NOT NULL DEFAULT 'draft',
	error_message TEXT NOT NULL DEFAULT '',
	total_businesses INTEGER NOT NULL DEFAULT 0,
	total_emails INTEGER NOT NULL DEFAULT 0,
	total_social_pages INTEGER NOT NULL DEFAULT 0,
	cost_maps DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_social DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_professional DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_verification DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_llm DOUBLE PRECISION NOT NULL DEFAULT 0,
	estimated_cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_per_zip INTEGER NOT NULL DEFAULT 200,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status);
CREATE INDEX IF NOT EXISTS idx_campaigns_status_updated ON campaigns (status, updated_at);

CREATE TABLE IF NOT EXISTS coverage_cells (
	id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	zip TEXT NOT NULL,
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	keywords JSONB NOT NULL DEFAULT '[]',
	max_results INTEGER NOT NULL DEFAULT 0,
	density_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	estimated_businesses INTEGER NOT NULL DEFAULT 0,
	scraped BOOLEAN NOT NULL DEFAULT false,
	businesses_found INTEGER NOT NULL DEFAULT 0,
	emails_found INTEGER NOT NULL DEFAULT 0,
	cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	scraped_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (campaign_id, zip)
);

CREATE INDEX IF NOT EXISTS idx_coverage_cells_pending ON coverage_cells (campaign_id) WHERE NOT scraped;

CREATE TABLE IF NOT EXISTS businesses (
	id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	place_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	street TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	zip TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	lat DOUBLE PRECISION NOT NULL DEFAULT 0,
	lon DOUBLE PRECISION NOT NULL DEFAULT 0,
	categories JSONB NOT NULL DEFAULT '[]',
	rating DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,
	hours JSONB NOT NULL DEFAULT '{}',
	facebook_url TEXT NOT NULL DEFAULT '',
	instagram_url TEXT NOT NULL DEFAULT '',
	linkedin_url TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	email_source TEXT NOT NULL DEFAULT 'not_found',
	email_safe BOOLEAN NOT NULL DEFAULT false,
	email_verified BOOLEAN NOT NULL DEFAULT false,
	flags JSONB NOT NULL DEFAULT '{}',
	booking_url TEXT NOT NULL DEFAULT '',
	review_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_tags JSONB NOT NULL DEFAULT '[]',
	competitors JSONB NOT NULL DEFAULT '[]',
	contact_first TEXT NOT NULL DEFAULT '',
	contact_last TEXT NOT NULL DEFAULT '',
	needs_enrichment BOOLEAN NOT NULL DEFAULT true,
	enrichment_status TEXT NOT NULL DEFAULT 'pending',
	icebreaker TEXT NOT NULL DEFAULT '',
	subject_line TEXT NOT NULL DEFAULT '',
	template_used TEXT NOT NULL DEFAULT '',
	formula_used TEXT NOT NULL DEFAULT '',
	variant INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (campaign_id, place_id)
);

CREATE INDEX IF NOT EXISTS idx_businesses_campaign_zip ON businesses (campaign_id, zip);
CREATE INDEX IF NOT EXISTS idx_businesses_with_email ON businesses (campaign_id) WHERE email <> '';
CREATE INDEX IF NOT EXISTS idx_businesses_enrichment ON businesses (campaign_id, enrichment_status);

CREATE TABLE IF NOT EXISTS facebook_enrichments (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	campaign_id TEXT NOT NULL,
	page_url TEXT NOT NULL DEFAULT '',
	page_name TEXT NOT NULL DEFAULT '',
	likes INTEGER NOT NULL DEFAULT 0,
	followers INTEGER NOT NULL DEFAULT 0,
	emails_found JSONB NOT NULL DEFAULT '[]',
	primary_email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL DEFAULT 'no_email',
	verification JSONB,
	raw JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_facebook_enrichments_business ON facebook_enrichments (business_id);
CREATE INDEX IF NOT EXISTS idx_facebook_enrichments_campaign ON facebook_enrichments (campaign_id);

CREATE TABLE IF NOT EXISTS linkedin_enrichments (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	campaign_id TEXT NOT NULL,
	profile_url TEXT NOT NULL DEFAULT '',
	profile_type TEXT NOT NULL DEFAULT '',
	profile_name TEXT NOT NULL DEFAULT '',
	headline TEXT NOT NULL DEFAULT '',
	emails_found JSONB NOT NULL DEFAULT '[]',
	pattern_emails JSONB NOT NULL DEFAULT '[]',
	primary_email TEXT NOT NULL DEFAULT '',
	email_tier INTEGER NOT NULL DEFAULT 5,
	phones JSONB NOT NULL DEFAULT '[]',
	outcome TEXT NOT NULL DEFAULT 'no_email',
	verification JSONB,
	raw JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_linkedin_enrichments_business ON linkedin_enrichments (business_id);
CREATE INDEX IF NOT EXISTS idx_linkedin_enrichments_campaign ON linkedin_enrichments (campaign_id);

CREATE TABLE IF NOT EXISTS email_verifications (
	id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	business_id TEXT NOT NULL,
	enrichment_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'unknown',
	score INTEGER NOT NULL DEFAULT 0,
	is_safe BOOLEAN NOT NULL DEFAULT false,
	result JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_email_verifications_campaign ON email_verifications (campaign_id);
CREATE INDEX IF NOT EXISTS idx_email_verifications_business ON email_verifications (business_id);

CREATE TABLE IF NOT EXISTS api_costs (
	id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	service TEXT NOT NULL,
	items INTEGER NOT NULL DEFAULT 0,
	cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_api_costs_campaign ON api_costs (campaign_id);

CREATE MATERIALIZED VIEW IF NOT EXISTS master_leads AS
SELECT DISTINCT ON (place_id)
	place_id, name, city, state, zip, phone, website, email, email_source, updated_at AS last_seen_at
FROM businesses
WHERE email <> '' AND email_source <> 'not_found'
ORDER BY place_id, updated_at DESC;

CREATE UNIQUE INDEX IF NOT EXISTS idx_master_leads_place ON master_leads (place_id);
`
