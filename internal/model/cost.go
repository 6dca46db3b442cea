package model

import "time"

// Service names used for cost attribution.
const (
	ServiceMaps         = "google_maps"
	ServiceSocial       = "facebook"
	ServiceProfessional = "linkedin"
	ServiceVerification = "email_verification"
	ServiceLLM          = "llm"
)

// APICost is one billed unit of external work, aggregated into the
// campaign's per-service accumulators on insert.
type APICost struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	Service    string    `json:"service"`
	Items      int       `json:"items"`
	CostUSD    float64   `json:"cost_usd"`
	CreatedAt  time.Time `json:"created_at"`
}

// MasterLead is one row of the cross-campaign deduplicated leads view.
type MasterLead struct {
	PlaceID     string    `json:"place_id"`
	Name        string    `json:"name"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Zip         string    `json:"zip"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Email       string    `json:"email"`
	EmailSource string    `json:"email_source"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}
