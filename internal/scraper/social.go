package scraper

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/contact"
	"github.com/sells-group/leadgen-cli/internal/govern"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// SocialScraper pulls Facebook page contact details through the pages
// actor.
type SocialScraper struct {
	client  apify.Client
	gov     *govern.Governor
	actorID string
	poll    []apify.PollOption
}

// NewSocialScraper creates a SocialScraper for the given actor.
func NewSocialScraper(client apify.Client, gov *govern.Governor, actorID string, poll ...apify.PollOption) *SocialScraper {
	return &SocialScraper{client: client, gov: gov, actorID: actorID, poll: poll}
}

// FacebookPage is the processed result of one page scrape.
type FacebookPage struct {
	URL          string // normalised
	Name         string
	Likes        int
	Followers    int
	Emails       []string
	PrimaryEmail string
	Phone        string
	Address      string
	Raw          map[string]any
}

// rawFacebookPage is one item from the pages actor.
type rawFacebookPage struct {
	URL       string `json:"pageUrl"`
	Name      string `json:"pageName"`
	Likes     int    `json:"likes"`
	Followers int    `json:"followers"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	About     string `json:"about"`
	Intro     string `json:"intro"`
}

type socialInput struct {
	StartURLs []startURL `json:"startUrls"`
}

type startURL struct {
	URL string `json:"url"`
}

var textEmailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// extractEmails collects the page's root email plus any addresses buried
// in the about and intro text, filtered down to usable ones.
func extractEmails(page *rawFacebookPage) []string {
	candidates := []string{page.Email}
	candidates = append(candidates, textEmailRe.FindAllString(page.About, -1)...)
	candidates = append(candidates, textEmailRe.FindAllString(page.Intro, -1)...)

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		if !contact.Valid(c) || contact.IsGeneric(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ScrapePages runs the pages actor over the given URLs (already
// normalised and deduplicated by the caller) and returns results keyed by
// normalised page URL, so chains that share a page match every business
// holding it.
func (s *SocialScraper) ScrapePages(ctx context.Context, urls []string) (map[string]*FacebookPage, error) {
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

	var items []json.RawMessage
	if err := apify.RunAndCollect(ctx, s.client, s.actorID, input, &items, s.poll...); err != nil {
		return nil, eris.Wrapf(err, "scraper: facebook run (%d pages)", len(urls))
	}

	pages := make(map[string]*FacebookPage, len(items))
	for _, item := range items {
		var raw rawFacebookPage
		if err := json.Unmarshal(item, &raw); err != nil {
			zap.L().Warn("facebook item decode failed", zap.Error(err))
			continue
		}
		key := NormalizeFacebookURL(raw.URL)
		if key == "" {
			continue
		}

		var bag map[string]any
		_ = json.Unmarshal(item, &bag)

		emails := extractEmails(&raw)
		pages[key] = &FacebookPage{
			URL:          key,
			Name:         strings.TrimSpace(raw.Name),
			Likes:        raw.Likes,
			Followers:    raw.Followers,
			Emails:       emails,
			PrimaryEmail: contact.Primary(emails),
			Phone:        strings.TrimSpace(raw.Phone),
			Address:      strings.TrimSpace(raw.Address),
			Raw:          bag,
		}
	}

	zap.L().Info("facebook scrape finished",
		zap.Int("pages_requested", len(urls)),
		zap.Int("pages_returned", len(pages)),
	)

	return pages, nil
}
