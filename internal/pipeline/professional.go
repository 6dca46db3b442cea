package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/contact"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scraper"
)

// professionalStats aggregates Phase 2.5 outcomes across the concurrent
// batch workers. The mutex covers only the counters.
type professionalStats struct {
	mu         sync.Mutex
	candidates int
	profiles   int
	tier2      int
	tier4      int
	misses     int
}

func (s *professionalStats) merge(profiles, tier2, tier4, misses int) {
	s.mu.Lock()
	s.profiles += profiles
	s.tier2 += tier2
	s.tier4 += tier4
	s.misses += misses
	s.mu.Unlock()
}

// runProfessional executes Phase 2.5: businesses still without an email go
// through profile search, profile scrape, and contact extraction in
// concurrent batches. A row is saved for every attempt, found or not.
func (e *Executor) runProfessional(ctx context.Context, c *model.Campaign) (*professionalStats, error) {
	stats := &professionalStats{}
	log := zap.L().With(zap.String("campaign_id", c.ID))

	candidates, err := e.store.BusinessesForProfessionalEnrichment(ctx, c.ID, 0)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: select professional candidates")
	}
	stats.candidates = len(candidates)
	if len(candidates) == 0 {
		return stats, nil
	}

	batchSize := e.cfg.Pipeline.ProfessionalBatchSize
	if batchSize <= 0 {
		batchSize = 15
	}
	concurrency := e.cfg.Pipeline.ProfessionalBatches
	if concurrency <= 0 {
		concurrency = 3
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for start := 0; start < len(candidates); start += batchSize {
		batch := candidates[start:min(start+batchSize, len(candidates))]
		g.Go(func() error {
			return e.enrichProfessionalBatch(gctx, c, batch, stats)
		})
	}
	if err := g.Wait(); err != nil {
		return stats, eris.Wrap(err, "pipeline: professional enrichment")
	}

	log.Info("professional enrichment finished",
		zap.Int("candidates", stats.candidates),
		zap.Int("profiles", stats.profiles),
		zap.Int("tier2", stats.tier2),
		zap.Int("tier4", stats.tier4),
		zap.Int("misses", stats.misses),
	)
	return stats, nil
}

// enrichProfessionalBatch runs one batch through search, scrape, and
// contact extraction, then saves a row per business and verifies the
// primaries it produced.
func (e *Executor) enrichProfessionalBatch(ctx context.Context, c *model.Campaign, batch []model.Business, stats *professionalStats) error {
	found, err := e.pro.FindProfileURLs(ctx, batch)
	if err != nil {
		return eris.Wrapf(err, "pipeline: profile search (%d businesses)", len(batch))
	}
	if err := e.trackCost(ctx, c.ID, model.ServiceProfessional, len(batch), e.calc.Professional(len(batch))); err != nil {
		return err
	}

	// Map payloads sometimes carry the profile already; the search result
	// wins when both exist.
	urlByBusiness := make(map[string]string, len(batch))
	seen := make(map[string]bool, len(batch))
	var urls []string
	for _, b := range batch {
		u := found[b.ID]
		if u == "" {
			u = scraper.NormalizeLinkedInURL(b.LinkedInURL)
		}
		if u == "" {
			continue
		}
		urlByBusiness[b.ID] = u
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	var profiles map[string]*scraper.Profile
	var contacts map[string]scraper.ExtractedContact
	if len(urls) > 0 {
		if profiles, err = e.pro.ScrapeProfiles(ctx, urls); err != nil {
			return eris.Wrapf(err, "pipeline: profile scrape (%d urls)", len(urls))
		}
		if err := e.trackCost(ctx, c.ID, model.ServiceProfessional, len(urls), e.calc.Professional(len(urls))); err != nil {
			return err
		}
		if contacts, err = e.pro.ExtractEmails(ctx, urls); err != nil {
			return eris.Wrapf(err, "pipeline: contact extraction (%d urls)", len(urls))
		}
		if err := e.trackCost(ctx, c.ID, model.ServiceProfessional, len(urls), e.calc.Professional(len(urls))); err != nil {
			return err
		}
	}

	var profileCount, tier2, tier4, misses int
	var attempted []string
	var withEmail []*model.LinkedInEnrichment

	for i := range batch {
		b := batch[i]
		enr := &model.LinkedInEnrichment{
			BusinessID: b.ID,
			CampaignID: c.ID,
			EmailTier:  model.EmailTierNotFound,
			Outcome:    model.EnrichmentNoEmail,
		}

		u := urlByBusiness[b.ID]
		if u == "" {
			// No profile located; the row still records the attempt.
			if err := e.store.SaveProfessionalEnrichment(ctx, enr); err != nil {
				return eris.Wrap(err, "pipeline: save professional enrichment")
			}
			attempted = append(attempted, b.ID)
			misses++
			continue
		}

		enr.ProfileURL = u
		profile := profiles[u]
		first, last := b.ContactFirst, b.ContactLast
		if profile != nil {
			enr.ProfileType = profile.Type
			enr.ProfileName = profile.Name
			enr.Headline = profile.Headline
			enr.Raw = profile.Raw
			if profile.FirstName != "" {
				first, last = profile.FirstName, profile.LastName
			}
			profileCount++
		}

		if info, ok := contacts[u]; ok && len(info.Emails) > 0 {
			enr.EmailsFound = info.Emails
			enr.Phones = info.Phones
			enr.PrimaryEmail = info.Emails[0]
			enr.EmailTier = model.EmailTierVerified
			enr.Outcome = model.EnrichmentFound
			tier2++
		} else {
			site := b.Website
			if site == "" && profile != nil {
				site = profile.Website
			}
			patterns := contact.Patterns(first, last, contact.PatternDomain(site))
			if len(patterns) > 0 {
				enr.PatternEmails = patterns
				enr.PrimaryEmail = patterns[0]
				enr.EmailTier = model.EmailTierPattern
				enr.Outcome = model.EnrichmentFound
				tier4++
			} else {
				misses++
			}
		}

		if err := e.store.SaveProfessionalEnrichment(ctx, enr); err != nil {
			return eris.Wrap(err, "pipeline: save professional enrichment")
		}
		attempted = append(attempted, b.ID)
		if enr.PrimaryEmail != "" {
			withEmail = append(withEmail, enr)
		}
	}

	stats.merge(profileCount, tier2, tier4, misses)

	if err := e.markEnrichment(ctx, attempted, model.EnrichmentCompleted); err != nil {
		return err
	}
	return e.verifyProfessionalBatch(ctx, c, withEmail)
}

// verifyProfessionalBatch checks the batch's primary addresses and writes
// verdicts back. A pattern guess the verifier confirms is regraded to the
// verified tier before the row update.
func (e *Executor) verifyProfessionalBatch(ctx context.Context, c *model.Campaign, enrichments []*model.LinkedInEnrichment) error {
	if len(enrichments) == 0 {
		return nil
	}

	byEmail := make(map[string][]*model.LinkedInEnrichment, len(enrichments))
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
		return eris.Wrap(err, "pipeline: verify professional emails")
	}
	if err := e.trackCost(ctx, c.ID, model.ServiceVerification, len(results), e.calc.Verification(len(results))); err != nil {
		return err
	}

	rows := make([]model.EmailVerification, 0, len(enrichments))
	for i := range results {
		vr := toVerifyResult(&results[i], e.cfg.Verifier.SafeScore)
		for _, enr := range byEmail[vr.Email] {
			tier := enr.EmailTier
			if tier == model.EmailTierPattern && vr.Status == model.VerifyDeliverable {
				tier = model.EmailTierVerified
			}
			if err := e.store.UpdateProfessionalVerification(ctx, enr.ID, tier, &vr); err != nil {
				return eris.Wrap(err, "pipeline: update professional verification")
			}
			rows = append(rows, model.EmailVerification{
				CampaignID:   c.ID,
				BusinessID:   enr.BusinessID,
				EnrichmentID: enr.ID,
				Source:       model.EmailSourceLinkedIn,
				Result:       vr,
			})
		}
	}

	if err := e.store.SaveVerifications(ctx, rows); err != nil {
		return eris.Wrap(err, "pipeline: save verifications")
	}
	return nil
}
