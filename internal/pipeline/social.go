package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scraper"
)

// socialStats aggregates Phase 2 outcomes.
type socialStats struct {
	Candidates int
	Pages      int
	Emails     int
	Missing    int
}

// runSocial executes Phase 2: scrape the Facebook pages of businesses that
// still need enrichment, write one enrichment row per attempt, and verify
// the primary addresses. Chains share pages, so scraping is keyed by
// normalised URL and each result applies to every business holding it.
func (e *Executor) runSocial(ctx context.Context, c *model.Campaign) (*socialStats, error) {
	stats := &socialStats{}
	log := zap.L().With(zap.String("campaign_id", c.ID))

	limit := e.cfg.Pipeline.SocialLimit
	if limit <= 0 {
		limit = 500
	}
	candidates, err := e.store.BusinessesForSocialEnrichment(ctx, c.ID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: select social candidates")
	}
	stats.Candidates = len(candidates)
	if len(candidates) == 0 {
		return stats, nil
	}

	byURL := make(map[string][]model.Business, len(candidates))
	urls := make([]string, 0, len(candidates))
	for _, b := range candidates {
		u := scraper.NormalizeFacebookURL(b.FacebookURL)
		if u == "" {
			continue
		}
		if _, ok := byURL[u]; !ok {
			urls = append(urls, u)
		}
		byURL[u] = append(byURL[u], b)
	}

	batchSize := e.cfg.Pipeline.SocialBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	for start := 0; start < len(urls); start += batchSize {
		end := min(start+batchSize, len(urls))
		if err := e.enrichSocialBatch(ctx, c, urls[start:end], byURL, stats); err != nil {
			return nil, err
		}
	}

	log.Info("social enrichment finished",
		zap.Int("candidates", stats.Candidates),
		zap.Int("pages", stats.Pages),
		zap.Int("emails", stats.Emails),
		zap.Int("missing", stats.Missing),
	)
	return stats, nil
}

// enrichSocialBatch scrapes one URL sub-batch and applies each page to
// every business sharing it. Pages the actor returned nothing for still
// get an errored row per holder so reruns do not reselect the business.
func (e *Executor) enrichSocialBatch(ctx context.Context, c *model.Campaign, urls []string, byURL map[string][]model.Business, stats *socialStats) error {
	pages, err := e.social.ScrapePages(ctx, urls)
	if err != nil {
		return eris.Wrapf(err, "pipeline: social scrape (%d urls)", len(urls))
	}
	if err := e.trackCost(ctx, c.ID, model.ServiceSocial, len(urls), e.calc.Social(len(urls))); err != nil {
		return err
	}

	var completed, failed []string
	var withEmail []*model.FacebookEnrichment

	for _, u := range urls {
		holders := byURL[u]
		page := pages[u]
		if page == nil {
			for i := range holders {
				enr := &model.FacebookEnrichment{
					BusinessID: holders[i].ID,
					CampaignID: c.ID,
					PageURL:    u,
					Outcome:    model.EnrichmentErrored,
				}
				if err := e.store.SaveSocialEnrichment(ctx, enr); err != nil {
					return eris.Wrap(err, "pipeline: save social enrichment")
				}
				failed = append(failed, holders[i].ID)
			}
			stats.Missing++
			continue
		}

		stats.Pages++
		for i := range holders {
			enr := &model.FacebookEnrichment{
				BusinessID:   holders[i].ID,
				CampaignID:   c.ID,
				PageURL:      page.URL,
				PageName:     page.Name,
				Likes:        page.Likes,
				Followers:    page.Followers,
				EmailsFound:  page.Emails,
				PrimaryEmail: page.PrimaryEmail,
				Phone:        page.Phone,
				Address:      page.Address,
				Outcome:      model.EnrichmentNoEmail,
				Raw:          page.Raw,
			}
			if enr.PrimaryEmail != "" {
				enr.Outcome = model.EnrichmentFound
			}
			if err := e.store.SaveSocialEnrichment(ctx, enr); err != nil {
				return eris.Wrap(err, "pipeline: save social enrichment")
			}
			completed = append(completed, holders[i].ID)
			if enr.PrimaryEmail != "" {
				withEmail = append(withEmail, enr)
				stats.Emails++
			}
		}
	}

	if err := e.markEnrichment(ctx, completed, model.EnrichmentCompleted); err != nil {
		return err
	}
	if err := e.markEnrichment(ctx, failed, model.EnrichmentFailed); err != nil {
		return err
	}

	return e.verifySocialBatch(ctx, c, withEmail)
}

// verifySocialBatch checks the batch's primary addresses once per unique
// address and writes the verdict back onto every enrichment row and its
// business, plus one log row per pair.
func (e *Executor) verifySocialBatch(ctx context.Context, c *model.Campaign, enrichments []*model.FacebookEnrichment) error {
	if len(enrichments) == 0 {
		return nil
	}

	byEmail := make(map[string][]*model.FacebookEnrichment, len(enrichments))
	emails := make([]string, 0, len(enrichments))
	for _, enr := range enrichments {
		key := strings.ToLower(enr.PrimaryEmail)
		if _, ok := byEmail[key]; !ok {
			emails = append(emails, key)
		}
		byEmail[key] = append(byEmail[key], enr)
	}

	results, err := e.verifier.VerifyBatch(ctx, emails)
	if err != nil {
		return eris.Wrap(err, "pipeline: verify social emails")
	}
	if err := e.trackCost(ctx, c.ID, model.ServiceVerification, len(results), e.calc.Verification(len(results))); err != nil {
		return err
	}

	rows := make([]model.EmailVerification, 0, len(enrichments))
	for i := range results {
		vr := toVerifyResult(&results[i], e.cfg.Verifier.SafeScore)
		for _, enr := range byEmail[vr.Email] {
			if err := e.store.UpdateSocialVerification(ctx, enr.ID, &vr); err != nil {
				return eris.Wrap(err, "pipeline: update social verification")
			}
			rows = append(rows, model.EmailVerification{
				CampaignID:   c.ID,
				BusinessID:   enr.BusinessID,
				EnrichmentID: enr.ID,
				Source:       model.EmailSourceFacebook,
				Result:       vr,
			})
		}
	}

	if err := e.store.SaveVerifications(ctx, rows); err != nil {
		return eris.Wrap(err, "pipeline: save verifications")
	}
	return nil
}
