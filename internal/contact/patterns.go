// Package contact generates candidate business emails from contact names
// and filters out addresses that cannot belong to a real inbox.
package contact

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold strips diacritics so accented names produce clean local parts.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizePart lowercases a name part and keeps only ASCII letters, so
// "O'Brien" becomes "obrien" and "Muñoz" becomes "munoz".
func normalizePart(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Patterns generates candidate emails for a contact at a domain, most
// specific first: first@, first.last@, flast@, firstlast@, last@, f.last@,
// then the catch-alls contact@ and info@. Patterns needing a missing name
// part are skipped; an empty domain yields nothing.
func Patterns(firstName, lastName, domain string) []string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil
	}

	first := normalizePart(firstName)
	last := normalizePart(lastName)

	var locals []string
	if first != "" {
		locals = append(locals, first)
	}
	if first != "" && last != "" {
		locals = append(locals, first+"."+last, first[:1]+last, first+last)
	}
	if last != "" {
		locals = append(locals, last)
	}
	if first != "" && last != "" {
		locals = append(locals, first[:1]+"."+last)
	}
	locals = append(locals, "contact", "info")

	seen := make(map[string]bool, len(locals))
	out := make([]string, 0, len(locals))
	for _, local := range locals {
		email := local + "@" + domain
		if seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out
}

// blockedPatternDomains are hosts that are never a business's own mail
// domain: social platforms, map links, and link shorteners.
var blockedPatternDomains = []string{
	"facebook.com",
	"fb.com",
	"instagram.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
	"youtube.com",
	"tiktok.com",
	"yelp.com",
	"google.com",
	"goo.gl",
	"bit.ly",
}

// PatternDomain extracts the mail domain from a business website URL.
// Social-platform and map URLs yield "" because patterns built on them
// would target the platform, not the business.
func PatternDomain(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}

	u, err := url.Parse(website)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	if !strings.Contains(host, ".") {
		return ""
	}
	for _, blocked := range blockedPatternDomains {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return ""
		}
	}
	return host
}

// NameFromProfileURL parses a contact name from a personal profile URL
// like https://www.linkedin.com/in/jane-doe-1a2b3c4d. Slug tokens carrying
// digits are id noise and are dropped.
func NameFromProfileURL(profileURL string) (first, last string) {
	u, err := url.Parse(strings.TrimSpace(profileURL))
	if err != nil {
		return "", ""
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	var slug string
	for i, seg := range segs {
		if seg == "in" && i+1 < len(segs) {
			slug = segs[i+1]
			break
		}
	}
	if slug == "" {
		return "", ""
	}

	var parts []string
	for _, tok := range strings.Split(slug, "-") {
		if tok == "" || strings.ContainsAny(tok, "0123456789") {
			continue
		}
		parts = append(parts, tok)
	}
	if len(parts) == 0 {
		return "", ""
	}

	title := cases.Title(language.AmericanEnglish)
	first = title.String(parts[0])
	if len(parts) > 1 {
		last = title.String(strings.Join(parts[1:], " "))
	}
	return first, last
}
