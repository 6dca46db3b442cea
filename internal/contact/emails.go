package contact

import (
	"regexp"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Valid reports whether s has a plausible address shape.
func Valid(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// genericLocalParts never identify a reachable human inbox.
var genericLocalParts = map[string]bool{
	"noreply":       true,
	"no-reply":      true,
	"no_reply":      true,
	"donotreply":    true,
	"do-not-reply":  true,
	"mailer-daemon": true,
	"postmaster":    true,
	"abuse":         true,
	"example":       true,
	"test":          true,
	"spam":          true,
}

// platformDomains host platform-internal mailboxes, not business inboxes.
var platformDomains = []string{
	"facebook.com",
	"facebookmail.com",
	"fb.com",
	"instagram.com",
	"linkedin.com",
	"messenger.com",
	"example.com",
	"sentry.io",
	"wixpress.com",
	"squarespace.com",
}

// IsGeneric reports whether the address is platform-internal or a
// non-human mailbox that should never be stored as a contact.
func IsGeneric(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return true
	}
	local, domain := email[:at], email[at+1:]
	if genericLocalParts[local] {
		return true
	}
	for _, d := range platformDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// primaryPreference orders the role inboxes a local business most often
// staffs.
var primaryPreference = []string{"info", "contact", "hello", "support"}

// Primary picks the best address from a scraped set: preferred role
// inboxes first, else the first valid non-generic address in input order.
func Primary(emails []string) string {
	seen := make(map[string]bool, len(emails))
	var valid []string
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] || !Valid(e) || IsGeneric(e) {
			continue
		}
		seen[e] = true
		valid = append(valid, e)
	}
	if len(valid) == 0 {
		return ""
	}
	for _, pref := range primaryPreference {
		for _, e := range valid {
			if strings.HasPrefix(e, pref+"@") {
				return e
			}
		}
	}
	return valid[0]
}

// SourceRank orders email provenance for business-row promotion; a new
// email replaces the current one only on a strictly higher rank. The tier
// matters only for linkedin: verified beats every scraped source, while a
// pattern guess ties google_maps and can only fill an empty slot.
func SourceRank(source model.EmailSource, tier int) int {
	switch source {
	case model.EmailSourceMaps:
		return 1
	case model.EmailSourceFacebook:
		return 2
	case model.EmailSourceLinkedIn:
		switch tier {
		case model.EmailTierVerified:
			return 3
		case model.EmailTierPattern:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}
