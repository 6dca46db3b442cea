package model

import "time"

// EmailTier grades contact quality for professional enrichments.
const (
	EmailTierVerified = 2 // pulled from a public profile or verifier-confirmed
	EmailTierPattern  = 4 // constructed from name + domain heuristics
	EmailTierNotFound = 5
)

// EnrichmentOutcome is the per-attempt result recorded on enrichment rows.
type EnrichmentOutcome string

const (
	EnrichmentFound   EnrichmentOutcome = "found"
	EnrichmentNoEmail EnrichmentOutcome = "no_email"
	EnrichmentErrored EnrichmentOutcome = "error"
)

// FacebookEnrichment is one social-enrichment attempt for a business.
// Exactly one row is written per attempt, even when nothing was found.
type FacebookEnrichment struct {
	ID           string            `json:"id"`
	BusinessID   string            `json:"business_id"`
	CampaignID   string            `json:"campaign_id"`
	PageURL      string            `json:"page_url"` // normalised
	PageName     string            `json:"page_name,omitempty"`
	Likes        int               `json:"likes,omitempty"`
	Followers    int               `json:"followers,omitempty"`
	EmailsFound  []string          `json:"emails_found,omitempty"`
	PrimaryEmail string            `json:"primary_email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Address      string            `json:"address,omitempty"`
	Outcome      EnrichmentOutcome `json:"outcome"`
	Verification *VerifyResult     `json:"verification,omitempty"`
	Raw          map[string]any    `json:"raw,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// LinkedInEnrichment is one professional-enrichment attempt for a business.
type LinkedInEnrichment struct {
	ID            string            `json:"id"`
	BusinessID    string            `json:"business_id"`
	CampaignID    string            `json:"campaign_id"`
	ProfileURL    string            `json:"profile_url"` // normalised
	ProfileType   string            `json:"profile_type,omitempty"` // company | personal
	ProfileName   string            `json:"profile_name,omitempty"`
	Headline      string            `json:"headline,omitempty"`
	EmailsFound   []string          `json:"emails_found,omitempty"`
	PatternEmails []string          `json:"pattern_emails,omitempty"`
	PrimaryEmail  string            `json:"primary_email,omitempty"`
	EmailTier     int               `json:"email_tier"`
	Phones        []string          `json:"phones,omitempty"`
	Outcome       EnrichmentOutcome `json:"outcome"`
	Verification  *VerifyResult     `json:"verification,omitempty"`
	Raw           map[string]any    `json:"raw,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// VerifyStatus is the deliverability verdict for one address.
type VerifyStatus string

const (
	VerifyDeliverable   VerifyStatus = "deliverable"
	VerifyUndeliverable VerifyStatus = "undeliverable"
	VerifyRisky         VerifyStatus = "risky"
	VerifyUnknown       VerifyStatus = "unknown"
	VerifyError         VerifyStatus = "error"
)

// VerifyResult is the verifier's answer for a single address.
type VerifyResult struct {
	Email        string         `json:"email"`
	Status       VerifyStatus   `json:"status"`
	Score        int            `json:"score"`
	IsDisposable bool           `json:"is_disposable"`
	IsRoleBased  bool           `json:"is_role_based"`
	IsFree       bool           `json:"is_free"`
	IsGibberish  bool           `json:"is_gibberish"`
	Domain       string         `json:"domain,omitempty"`
	Provider     string         `json:"provider,omitempty"`
	MXFound      bool           `json:"mx_found"`
	SMTPCheck    bool           `json:"smtp_check"`
	IsSafe       bool           `json:"is_safe"` // deliverable && score >= threshold
	Raw          map[string]any `json:"raw,omitempty"`
}

// EmailVerification is the per-attempt verification log row, joined to the
// enrichment row that produced the address.
type EmailVerification struct {
	ID           string       `json:"id"`
	CampaignID   string       `json:"campaign_id"`
	BusinessID   string       `json:"business_id"`
	EnrichmentID string       `json:"enrichment_id,omitempty"`
	Source       EmailSource  `json:"source"`
	Result       VerifyResult `json:"result"`
	CreatedAt    time.Time    `json:"created_at"`
}
