package model

import "time"

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// Profile is a named coverage preset controlling ZIP selection.
type Profile string

const (
	ProfileBudget     Profile = "budget"
	ProfileBalanced   Profile = "balanced"
	ProfileAggressive Profile = "aggressive"
	ProfileCustom     Profile = "custom"
)

// ServiceCosts holds per-service cost accumulators in USD.
type ServiceCosts struct {
	Maps         float64 `json:"maps"`
	Social       float64 `json:"social"`
	Professional float64 `json:"professional"`
	Verification float64 `json:"verification"`
	LLM          float64 `json:"llm"`
}

// Total returns the sum of all service costs.
func (c ServiceCosts) Total() float64 {
	return c.Maps + c.Social + c.Professional + c.Verification + c.LLM
}

// Campaign is the unit of orchestration: one (location, keywords) target
// executed through discovery, enrichment, and copy generation.
type Campaign struct {
	ID               string         `json:"id"`
	OrgID            string         `json:"org_id"`
	Name             string         `json:"name"`
	Location         string         `json:"location"`
	Keywords         []string       `json:"keywords"`
	Profile          Profile        `json:"profile"`
	Template         string         `json:"template"` // writer template name or "auto"
	Status           CampaignStatus `json:"status"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	TotalBusinesses  int            `json:"total_businesses"`
	TotalEmails      int            `json:"total_emails"`
	TotalSocialPages int            `json:"total_social_pages"`
	Costs            ServiceCosts   `json:"costs"`
	EstimatedCostUSD float64        `json:"estimated_cost_usd"`
	MaxPerZip        int            `json:"max_per_zip"`
	CreatedAt        time.Time      `json:"created_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"` // heartbeat writes this while running
}

// CoverageCell is a (campaign, ZIP) pair scheduled for map discovery.
// Phase 1 mutates it exactly once when the ZIP is scraped.
type CoverageCell struct {
	ID                  string     `json:"id"`
	CampaignID          string     `json:"campaign_id"`
	Zip                 string     `json:"zip"`
	City                string     `json:"city,omitempty"`
	State               string     `json:"state,omitempty"`
	Keywords            []string   `json:"keywords"`
	MaxResults          int        `json:"max_results"`
	DensityScore        float64    `json:"density_score"`
	RelevanceScore      float64    `json:"relevance_score"`
	EstimatedBusinesses int        `json:"estimated_businesses"`
	Scraped             bool       `json:"scraped"`
	BusinessesFound     int        `json:"businesses_found"`
	EmailsFound         int        `json:"emails_found"`
	CostUSD             float64    `json:"cost_usd"`
	ScrapedAt           *time.Time `json:"scraped_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// PhaseStatus represents the outcome of a single pipeline phase.
type PhaseStatus string

const (
	PhaseComplete PhaseStatus = "complete"
	PhaseFailed   PhaseStatus = "failed"
	PhaseSkipped  PhaseStatus = "skipped"
	PhaseTimeout  PhaseStatus = "timeout"
)

// PhaseResult records the outcome of one pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Summary is the final outcome of a campaign execution.
type Summary struct {
	CampaignID       string         `json:"campaign_id"`
	Status           CampaignStatus `json:"status"`
	ZipsScraped      int            `json:"zips_scraped"`
	TotalBusinesses  int            `json:"total_businesses"`
	TotalEmails      int            `json:"total_emails"`
	TotalSocialPages int            `json:"total_social_pages"`
	IcebreakersDone  int            `json:"icebreakers_done"`
	CostUSD          float64        `json:"cost_usd"`
	Phases           []PhaseResult  `json:"phases"`
	Error            string         `json:"error,omitempty"`
}
