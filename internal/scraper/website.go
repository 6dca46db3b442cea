package scraper

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/govern"
)

const siteBodyLimit = 512 * 1024

// SiteFetcher pulls homepage text used as writer context. Every fetch
// goes through the domain governor: minimum spacing per host, and hosts
// that keep failing land on the blocklist for the rest of the run.
type SiteFetcher struct {
	gov    *govern.Governor
	client *http.Client
}

// NewSiteFetcher creates a SiteFetcher. A non-positive timeout falls back
// to 30 seconds.
func NewSiteFetcher(gov *govern.Governor, timeout time.Duration) *SiteFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SiteFetcher{
		gov: gov,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// FetchText fetches the site's homepage and returns its plaintext, capped
// at maxRunes. Blocked domains fail immediately with govern.ErrDomainBlocked
// in the chain; transport and HTTP failures count against the domain.
func (f *SiteFetcher) FetchText(ctx context.Context, site string, maxRunes int) (string, error) {
	site = strings.TrimSpace(site)
	if site == "" {
		return "", eris.New("scraper: empty site URL")
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}

	host := govern.Host(site)
	if err := f.gov.WaitForDomain(ctx, host); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site, nil)
	if err != nil {
		return "", eris.Wrapf(err, "scraper: site request %s", site)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LeadgenBot/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		f.gov.MarkDomainFailed(host)
		return "", eris.Wrapf(err, "scraper: fetch %s", site)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, siteBodyLimit))
	if err != nil {
		f.gov.MarkDomainFailed(host)
		return "", eris.Wrapf(err, "scraper: read %s", site)
	}

	if resp.StatusCode >= 400 {
		f.gov.MarkDomainFailed(host)
		return "", eris.Errorf("scraper: site %s status %d", site, resp.StatusCode)
	}

	f.gov.MarkDomainSucceeded(host)

	text := stripHTML(string(body))
	if maxRunes > 0 {
		if runes := []rune(text); len(runes) > maxRunes {
			text = string(runes[:maxRunes])
		}
	}
	return text, nil
}

// stripHTML removes scripts/styles/nav/footer, strips tags, decodes entities,
// and collapses whitespace. The result is plaintext suitable for prompts.
func stripHTML(html string) string {
	// Remove script, style, nav, footer blocks entirely.
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	// Strip remaining HTML tags.
	tagRe := regexp.MustCompile(`<[^>]+>`)
	html = tagRe.ReplaceAllString(html, " ")

	// Decode common HTML entities.
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	// Collapse whitespace: multiple spaces → single, multiple newlines → double.
	spaceRe := regexp.MustCompile(`[ \t]+`)
	html = spaceRe.ReplaceAllString(html, " ")

	nlRe := regexp.MustCompile(`\n{3,}`)
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
