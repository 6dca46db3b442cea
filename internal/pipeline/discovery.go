package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// discoveryStats aggregates Phase 1 outcomes. Businesses and Emails come
// from the persisted counts, never from the scrape payloads.
type discoveryStats struct {
	ZipsScraped int
	Businesses  int
	Emails      int
	Paused      bool
}

// runDiscovery executes Phase 1: map scrapes over unscraped coverage cells
// in ZIP batches, upserts, direct-email verification, and coverage
// bookkeeping. Totals persist before the function returns so enrichment
// always starts from counted rows.
func (e *Executor) runDiscovery(ctx context.Context, c *model.Campaign, cells []model.CoverageCell, maxPerZip int) (*discoveryStats, error) {
	stats := &discoveryStats{}
	log := zap.L().With(zap.String("campaign_id", c.ID))

	pending := make([]model.CoverageCell, 0, len(cells))
	for _, cell := range cells {
		if !cell.Scraped {
			pending = append(pending, cell)
		}
	}

	keywords := c.Keywords
	if len(keywords) == 0 && len(pending) > 0 {
		keywords = pending[0].Keywords
	}

	batchSize := e.cfg.Pipeline.ZipBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	for start := 0; start < len(pending); start += batchSize {
		// Pause lands between batches; mid-batch work always completes.
		if start > 0 && e.pauseRequested(ctx, c.ID) {
			stats.Paused = true
			log.Info("pause requested, stopping after current batch")
			break
		}
		end := min(start+batchSize, len(pending))
		if err := e.scrapeZipBatch(ctx, c, pending[start:end], keywords, maxPerZip, stats); err != nil {
			return nil, err
		}
	}

	verified, err := e.verifyDirectEmails(ctx, c)
	if err != nil {
		return nil, err
	}

	businesses, emails, err := e.persistTotals(ctx, c.ID, c.TotalSocialPages)
	if err != nil {
		return nil, err
	}
	stats.Businesses = businesses
	stats.Emails = emails

	log.Info("discovery finished",
		zap.Int("zips_scraped", stats.ZipsScraped),
		zap.Int("businesses", businesses),
		zap.Int("emails", emails),
		zap.Int("direct_verified", verified),
		zap.Bool("paused", stats.Paused),
	)
	return stats, nil
}

// scrapeZipBatch runs one map scrape over a ZIP group, upserts the items,
// and marks each cell scraped with its per-ZIP counts.
func (e *Executor) scrapeZipBatch(ctx context.Context, c *model.Campaign, batch []model.CoverageCell, keywords []string, maxPerZip int, stats *discoveryStats) error {
	zips := make([]string, 0, len(batch))
	for _, cell := range batch {
		zips = append(zips, cell.Zip)
	}

	businesses, err := e.maps.Scrape(ctx, c.ID, keywords, zips, maxPerZip)
	if err != nil {
		return eris.Wrapf(err, "pipeline: map scrape (%d zips)", len(zips))
	}
	if err := e.trackCost(ctx, c.ID, model.ServiceMaps, len(businesses), e.calc.Maps(len(businesses))); err != nil {
		return err
	}

	if len(businesses) > 0 {
		if _, err := e.store.UpsertBusinesses(ctx, c.ID, businesses); err != nil {
			return eris.Wrap(err, "pipeline: upsert businesses")
		}
	}

	// Partition by the ZIP stamped from each address; items can land
	// outside the batch ZIPs and still count toward campaign totals.
	perZip := make(map[string][]model.Business, len(batch))
	for _, b := range businesses {
		perZip[b.Zip] = append(perZip[b.Zip], b)
	}

	for _, cell := range batch {
		group := perZip[cell.Zip]
		found, err := e.store.CountByZip(ctx, c.ID, cell.Zip)
		if err != nil {
			return eris.Wrap(err, "pipeline: count by zip")
		}
		emails := 0
		for _, b := range group {
			if b.HasEmail() {
				emails++
			}
		}
		if err := e.store.UpdateCoverageStatus(ctx, c.ID, cell.Zip, found, emails, e.calc.Maps(len(group))); err != nil {
			return eris.Wrap(err, "pipeline: update coverage")
		}
		stats.ZipsScraped++
	}
	return nil
}

// verifyDirectEmails checks addresses the map payloads carried. The
// verification log marks the attempt per business, so reruns skip rows
// that were already checked regardless of verdict.
func (e *Executor) verifyDirectEmails(ctx context.Context, c *model.Campaign) (int, error) {
	rows, err := e.store.BusinessesWithUnverifiedDirectEmail(ctx, c.ID)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: select direct emails")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	byEmail := make(map[string][]model.Business, len(rows))
	emails := make([]string, 0, len(rows))
	for _, b := range rows {
		key := strings.ToLower(strings.TrimSpace(b.Email))
		if key == "" {
			continue
		}
		if _, ok := byEmail[key]; !ok {
			emails = append(emails, key)
		}
		byEmail[key] = append(byEmail[key], b)
	}

	results, err := e.verifier.VerifyBatch(ctx, emails)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: verify direct emails")
	}
	if err := e.trackCost(ctx, c.ID, model.ServiceVerification, len(results), e.calc.Verification(len(results))); err != nil {
		return 0, err
	}

	verifications := make([]model.EmailVerification, 0, len(rows))
	for i := range results {
		vr := toVerifyResult(&results[i], e.cfg.Verifier.SafeScore)
		for _, b := range byEmail[vr.Email] {
			// Same-address promotion refreshes the safety flags on the row.
			if err := e.store.PromoteEmail(ctx, b.ID, b.Email, model.EmailSourceMaps, 0, vr.IsSafe, vr.Status == model.VerifyDeliverable); err != nil {
				return 0, eris.Wrap(err, "pipeline: promote direct email")
			}
			verifications = append(verifications, model.EmailVerification{
				CampaignID: c.ID,
				BusinessID: b.ID,
				Source:     model.EmailSourceMaps,
				Result:     vr,
			})
		}
	}

	if err := e.store.SaveVerifications(ctx, verifications); err != nil {
		return 0, eris.Wrap(err, "pipeline: save verifications")
	}
	return len(verifications), nil
}
