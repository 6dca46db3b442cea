package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/contact"
	"github.com/sells-group/leadgen-cli/internal/govern"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// Actors names the actor ids used by the professional phase.
type Actors struct {
	Search  string
	Profile string
	Company string
	Email   string
}

// ProfessionalScraper finds LinkedIn profiles for businesses and pulls
// contact details from them. Discovery and scraping are separate batch
// calls; results are matched back by normalised URL.
type ProfessionalScraper struct {
	client apify.Client
	gov    *govern.Governor
	actors Actors
	poll   []apify.PollOption
}

// NewProfessionalScraper creates a ProfessionalScraper over the given
// actors.
func NewProfessionalScraper(client apify.Client, gov *govern.Governor, actors Actors, poll ...apify.PollOption) *ProfessionalScraper {
	return &ProfessionalScraper{client: client, gov: gov, actors: actors, poll: poll}
}

// SearchQuery builds the profile-discovery query for one business.
func SearchQuery(name, city string) string {
	return strings.TrimSpace(fmt.Sprintf("%q site:linkedin.com %s", name, city))
}

type searchInput struct {
	Queries        string `json:"queries"` // newline-joined
	ResultsPerPage int    `json:"resultsPerPage,omitempty"`
	MaxPages       int    `json:"maxPagesPerQuery,omitempty"`
}

// rawSearchPage is one result page from the search actor.
type rawSearchPage struct {
	SearchQuery struct {
		Term string `json:"term"`
	} `json:"searchQuery"`
	OrganicResults []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"organicResults"`
}

// FindProfileURLs issues one search run covering the whole batch and
// returns, per business id, the first organic result pointing at a
// personal or company profile. Businesses whose query produced nothing
// usable are absent from the map.
func (s *ProfessionalScraper) FindProfileURLs(ctx context.Context, batch []model.Business) (map[string]string, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	if err := s.gov.WaitForService(ctx, govern.ServiceApify); err != nil {
		return nil, err
	}

	queries := make([]string, 0, len(batch))
	byQuery := make(map[string]string, len(batch))
	for _, b := range batch {
		q := SearchQuery(b.Name, b.City)
		queries = append(queries, q)
		byQuery[q] = b.ID
	}

	input := searchInput{
		Queries:        strings.Join(queries, "\n"),
		ResultsPerPage: 10,
		MaxPages:       1,
	}

	var pages []rawSearchPage
	if err := apify.RunAndCollect(ctx, s.client, s.actors.Search, input, &pages, s.poll...); err != nil {
		return nil, eris.Wrapf(err, "scraper: profile search (%d queries)", len(queries))
	}

	found := make(map[string]string, len(pages))
	for _, page := range pages {
		businessID, ok := byQuery[page.SearchQuery.Term]
		if !ok {
			continue
		}
		for _, res := range page.OrganicResults {
			if LinkedInType(res.URL) == "" {
				continue
			}
			found[businessID] = NormalizeLinkedInURL(res.URL)
			break
		}
	}

	zap.L().Info("profile search finished",
		zap.Int("queries", len(queries)),
		zap.Int("found", len(found)),
	)

	return found, nil
}

// Profile is one scraped LinkedIn page, personal or company.
type Profile struct {
	URL       string // normalised
	Type      string // personal | company
	Name      string
	FirstName string
	LastName  string
	Headline  string
	Website   string
	Raw       map[string]any
}

// rawProfile is one item from either profile actor. Personal and company
// payloads share the shape with different fields populated.
type rawProfile struct {
	URL       string `json:"url"`
	FullName  string `json:"fullName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Headline  string `json:"headline"`
	Name      string `json:"name"`    // company
	Tagline   string `json:"tagline"` // company
	Website   string `json:"website"` // company
}

type profileInput struct {
	URLs []string `json:"urls"`
}

// ScrapeProfiles groups URLs by type and issues at most two runs, one per
// actor. Results are keyed by normalised URL; URLs the actors returned
// nothing for are absent.
func (s *ProfessionalScraper) ScrapeProfiles(ctx context.Context, urls []string) (map[string]*Profile, error) {
	var personal, company []string
	for _, u := range urls {
		switch LinkedInType(u) {
		case ProfilePersonal:
			personal = append(personal, NormalizeLinkedInURL(u))
		case ProfileCompany:
			company = append(company, NormalizeLinkedInURL(u))
		}
	}

	profiles := make(map[string]*Profile, len(urls))
	if err := s.scrapeGroup(ctx, s.actors.Profile, ProfilePersonal, personal, profiles); err != nil {
		return nil, err
	}
	if err := s.scrapeGroup(ctx, s.actors.Company, ProfileCompany, company, profiles); err != nil {
		return nil, err
	}

	zap.L().Info("profile scrape finished",
		zap.Int("personal", len(personal)),
		zap.Int("company", len(company)),
		zap.Int("returned", len(profiles)),
	)

	return profiles, nil
}

func (s *ProfessionalScraper) scrapeGroup(ctx context.Context, actorID, profileType string, urls []string, out map[string]*Profile) error {
	if len(urls) == 0 {
		return nil
	}
	if err := s.gov.WaitForService(ctx, govern.ServiceApify); err != nil {
		return err
	}

	var items []json.RawMessage
	if err := apify.RunAndCollect(ctx, s.client, actorID, profileInput{URLs: urls}, &items, s.poll...); err != nil {
		return eris.Wrapf(err, "scraper: %s profile run (%d urls)", profileType, len(urls))
	}

	for _, item := range items {
		var raw rawProfile
		if err := json.Unmarshal(item, &raw); err != nil {
			zap.L().Warn("profile item decode failed",
				zap.String("type", profileType),
				zap.Error(err),
			)
			continue
		}
		key := NormalizeLinkedInURL(raw.URL)
		if key == "" {
			continue
		}

		var bag map[string]any
		_ = json.Unmarshal(item, &bag)

		out[key] = buildProfile(key, profileType, &raw, bag)
	}

	return nil
}

func buildProfile(key, profileType string, raw *rawProfile, bag map[string]any) *Profile {
	p := &Profile{
		URL:      key,
		Type:     profileType,
		Headline: strings.TrimSpace(raw.Headline),
		Website:  strings.TrimSpace(raw.Website),
		Raw:      bag,
	}

	switch profileType {
	case ProfileCompany:
		p.Name = strings.TrimSpace(raw.Name)
		if p.Headline == "" {
			p.Headline = strings.TrimSpace(raw.Tagline)
		}
	default:
		p.Name = strings.TrimSpace(raw.FullName)
		p.FirstName = strings.TrimSpace(raw.FirstName)
		p.LastName = strings.TrimSpace(raw.LastName)
		if p.FirstName == "" && p.Name != "" {
			parts := strings.Fields(p.Name)
			p.FirstName = parts[0]
			if len(parts) > 1 {
				p.LastName = strings.Join(parts[1:], " ")
			}
		}
		if p.FirstName == "" {
			p.FirstName, p.LastName = contact.NameFromProfileURL(key)
			if p.Name == "" && p.FirstName != "" {
				p.Name = strings.TrimSpace(p.FirstName + " " + p.LastName)
			}
		}
	}

	return p
}

// ExtractedContact holds tier-2 contact details pulled from a public
// profile. Hit rates run low; most profiles come back empty.
type ExtractedContact struct {
	Emails []string
	Phones []string
}

// rawContactInfo is one item from the contact-info actor.
type rawContactInfo struct {
	URL    string   `json:"url"`
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
}

// ExtractEmails runs the contact-info actor over profile URLs and returns
// usable addresses keyed by normalised profile URL.
func (s *ProfessionalScraper) ExtractEmails(ctx context.Context, urls []string) (map[string]ExtractedContact, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	if err := s.gov.WaitForService(ctx, govern.ServiceApify); err != nil {
		return nil, err
	}

	input := socialInput{StartURLs: make([]startURL, 0, len(urls))}
	for _, u := range urls {
		input.StartURLs = append(input.StartURLs, startURL{URL: u})
	}

	var items []rawContactInfo
	if err := apify.RunAndCollect(ctx, s.client, s.actors.Email, input, &items, s.poll...); err != nil {
		return nil, eris.Wrapf(err, "scraper: contact-info run (%d urls)", len(urls))
	}

	out := make(map[string]ExtractedContact, len(items))
	for _, item := range items {
		key := NormalizeLinkedInURL(item.URL)
		if key == "" {
			continue
		}
		var emails []string
		for _, e := range item.Emails {
			e = strings.ToLower(strings.TrimSpace(e))
			if contact.Valid(e) && !contact.IsGeneric(e) {
				emails = append(emails, e)
			}
		}
		if len(emails) == 0 && len(item.Phones) == 0 {
			continue
		}
		out[key] = ExtractedContact{Emails: emails, Phones: item.Phones}
	}

	return out, nil
}
