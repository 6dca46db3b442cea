package scraper

import (
	"net/url"
	"strings"
)

// The professional and social phases match actor results back to
// businesses by URL, so both sides of the join normalise the same way:
// https scheme, canonical www host, lowercase path, no query, fragment or
// trailing slash.

// NormalizeFacebookURL canonicalises a Facebook page URL. Mobile and
// short-domain variants collapse onto www.facebook.com.
func NormalizeFacebookURL(raw string) string {
	return normalizeHostURL(raw, "www.facebook.com")
}

// NormalizeLinkedInURL canonicalises a LinkedIn profile URL.
func NormalizeLinkedInURL(raw string) string {
	return normalizeHostURL(raw, "www.linkedin.com")
}

func normalizeHostURL(raw, host string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(strings.ToLower(u.EscapedPath()), "/")
	if path == "" {
		return ""
	}
	return "https://" + host + path
}

// Profile URL types distinguish the two LinkedIn scrape actors.
const (
	ProfilePersonal = "personal"
	ProfileCompany  = "company"
)

// LinkedInType classifies a profile URL as personal (/in/) or company
// (/company/). Search results land here unfiltered, so URLs on other
// hosts return "" no matter what their path looks like.
func LinkedInType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return ""
	}
	path := strings.TrimRight(strings.ToLower(u.EscapedPath()), "/")
	switch {
	case strings.HasPrefix(path, "/in/") && len(path) > len("/in/"):
		return ProfilePersonal
	case strings.HasPrefix(path, "/company/") && len(path) > len("/company/"):
		return ProfileCompany
	}
	return ""
}
