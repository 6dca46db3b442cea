package model

import "time"

// EmailSource identifies where a business email came from.
type EmailSource string

const (
	EmailSourceNone     EmailSource = "not_found"
	EmailSourceMaps     EmailSource = "google_maps"
	EmailSourceFacebook EmailSource = "facebook"
	EmailSourceLinkedIn EmailSource = "linkedin"
)

// EnrichmentState tracks whether a business still needs social enrichment.
type EnrichmentState string

const (
	EnrichmentPending   EnrichmentState = "pending"
	EnrichmentCompleted EnrichmentState = "completed"
	EnrichmentFailed    EnrichmentState = "failed"
)

// BusinessFlags are structured attributes extracted from the raw payload's
// "additional info" buckets. Missing keys default to false.
type BusinessFlags struct {
	WomenOwned           bool `json:"women_owned,omitempty"`
	VeteranOwned         bool `json:"veteran_owned,omitempty"`
	SmallBusiness        bool `json:"small_business,omitempty"`
	WheelchairAccessible bool `json:"wheelchair_accessible,omitempty"`
	AcceptsCreditCards   bool `json:"accepts_credit_cards,omitempty"`
	OnlineAppointments   bool `json:"online_appointments,omitempty"`
}

// Business is one commercial entity within a campaign, keyed externally by
// the map provider's place id. (campaign_id, place_id) is unique; inserts
// are upserts on that key.
type Business struct {
	ID          string   `json:"id"`
	CampaignID  string   `json:"campaign_id"`
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Street      string   `json:"street,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Zip         string   `json:"zip"` // 5-digit, extracted from the address
	Phone       string   `json:"phone,omitempty"`
	Website     string   `json:"website,omitempty"`
	Lat         float64  `json:"lat,omitempty"`
	Lon         float64  `json:"lon,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	ReviewCount int      `json:"review_count,omitempty"`

	Hours        map[string]string `json:"hours,omitempty"`
	FacebookURL  string            `json:"facebook_url,omitempty"`
	InstagramURL string            `json:"instagram_url,omitempty"`
	LinkedInURL  string            `json:"linkedin_url,omitempty"`

	Email         string      `json:"email,omitempty"`
	EmailSource   EmailSource `json:"email_source"`
	EmailSafe     bool        `json:"email_safe"`
	EmailVerified bool        `json:"email_verified"`

	Flags         BusinessFlags `json:"flags"`
	BookingURL    string        `json:"booking_url,omitempty"`
	ReviewPercent float64       `json:"review_percent,omitempty"` // share of 4-5 star reviews
	SentimentTags []string      `json:"sentiment_tags,omitempty"`
	Competitors   []string      `json:"competitors,omitempty"` // capped at 10
	ContactFirst  string        `json:"contact_first,omitempty"`
	ContactLast   string        `json:"contact_last,omitempty"`

	NeedsEnrichment  bool            `json:"needs_enrichment"`
	EnrichmentStatus EnrichmentState `json:"enrichment_status"`

	Icebreaker   string `json:"icebreaker,omitempty"`
	SubjectLine  string `json:"subject_line,omitempty"`
	TemplateUsed string `json:"template_used,omitempty"`
	FormulaUsed  string `json:"formula_used,omitempty"`
	Variant      int    `json:"variant"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmail reports whether the business carries a denormalised email.
func (b *Business) HasEmail() bool {
	return b.Email != "" && b.EmailSource != EmailSourceNone
}

// OpeningHours is one day's entry in the map actor's hours array.
type OpeningHours struct {
	Day   string `json:"day"`
	Hours string `json:"hours"`
}

// RawBusiness is one item returned by the map actor: a canonical subset of
// known fields plus the opaque attribute bag. Extraction helpers over the
// bag tolerate missing keys.
type RawBusiness struct {
	PlaceID          string         `json:"placeId"`
	Name             string         `json:"title"`
	Address          string         `json:"address"`
	Street           string         `json:"street"`
	City             string         `json:"city"`
	State            string         `json:"state"`
	PostalCode       string         `json:"postalCode"`
	Phone            string         `json:"phone"`
	Website          string         `json:"website"`
	Lat              float64        `json:"lat"`
	Lon              float64        `json:"lng"`
	CategoryName     string         `json:"categoryName"`
	Categories       []string       `json:"categories"`
	Rating           float64        `json:"totalScore"`
	ReviewCount      int            `json:"reviewsCount"`
	OpeningHours     []OpeningHours `json:"openingHours"`
	Facebooks        []string       `json:"facebooks"`
	Instagrams       []string       `json:"instagrams"`
	LinkedIns        []string       `json:"linkedIns"`
	Emails           []string       `json:"emails"`
	ReviewsDist      map[string]int `json:"reviewsDistribution"`
	ReviewsTags      []string       `json:"reviewsTags"`
	PeopleAlsoSearch []string       `json:"peopleAlsoSearch"`
	Attributes       map[string]any `json:"additionalInfo"`
}
