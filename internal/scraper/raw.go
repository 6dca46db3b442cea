package scraper

import (
	"regexp"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/contact"
	"github.com/sells-group/leadgen-cli/internal/model"
)

const maxCompetitors = 10

var addressZipRe = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)

// AddressZip extracts the 5-digit ZIP from a US address. The last match
// wins so street numbers never shadow the postal code.
func AddressZip(address string) string {
	matches := addressZipRe.FindAllStringSubmatch(address, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}

// zipFrom prefers the structured postal code over the address scan.
func zipFrom(raw *model.RawBusiness) string {
	if zip := AddressZip(raw.PostalCode); zip != "" {
		return zip
	}
	return AddressZip(raw.Address)
}

// hoursFrom flattens the actor's hours array into day → hours.
func hoursFrom(entries []model.OpeningHours) map[string]string {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		day := strings.TrimSpace(e.Day)
		if day == "" {
			continue
		}
		out[day] = strings.TrimSpace(e.Hours)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// hasAttribute reports whether any additional-info bucket carries a key
// containing label (case-insensitive) with a true value.
func hasAttribute(bag map[string]any, label string) bool {
	label = strings.ToLower(label)
	for _, bucket := range bag {
		items, ok := bucket.([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			attrs, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for key, val := range attrs {
				if !strings.Contains(strings.ToLower(key), label) {
					continue
				}
				if b, ok := val.(bool); ok && b {
					return true
				}
			}
		}
	}
	return false
}

// flagsFrom derives the structured flags from the attribute bag.
func flagsFrom(bag map[string]any) model.BusinessFlags {
	return model.BusinessFlags{
		WomenOwned:           hasAttribute(bag, "women-owned"),
		VeteranOwned:         hasAttribute(bag, "veteran-owned"),
		SmallBusiness:        hasAttribute(bag, "small business"),
		WheelchairAccessible: hasAttribute(bag, "wheelchair accessible"),
		AcceptsCreditCards:   hasAttribute(bag, "credit cards"),
		OnlineAppointments:   hasAttribute(bag, "online appointments"),
	}
}

// bookingURLFrom returns the first http(s) URL found in an appointment,
// reservation or booking bucket.
func bookingURLFrom(bag map[string]any) string {
	for name, bucket := range bag {
		lower := strings.ToLower(name)
		if !strings.Contains(lower, "appointment") &&
			!strings.Contains(lower, "reservation") &&
			!strings.Contains(lower, "booking") {
			continue
		}
		if u := firstHTTPString(bucket); u != "" {
			return u
		}
	}
	return ""
}

func firstHTTPString(v any) string {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
			return t
		}
	case []any:
		for _, item := range t {
			if u := firstHTTPString(item); u != "" {
				return u
			}
		}
	case map[string]any:
		for _, item := range t {
			if u := firstHTTPString(item); u != "" {
				return u
			}
		}
	}
	return ""
}

// reviewPercentFrom computes the share of 4-5 star reviews, 0-100.
func reviewPercentFrom(dist map[string]int) float64 {
	total := 0
	for _, n := range dist {
		total += n
	}
	if total <= 0 {
		return 0
	}
	positive := dist["fourStar"] + dist["fiveStar"]
	return float64(positive) / float64(total) * 100
}

// competitorsFrom trims and caps the people-also-search list.
func competitorsFrom(names []string) []string {
	var out []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name)
		if len(out) == maxCompetitors {
			break
		}
	}
	return out
}

// contactFrom pulls a first/last name pair from the first personal
// profile URL that yields one.
func contactFrom(urls []string) (first, last string) {
	for _, u := range urls {
		if first, last = contact.NameFromProfileURL(u); first != "" {
			return first, last
		}
	}
	return "", ""
}

func categoriesFrom(raw *model.RawBusiness) []string {
	if len(raw.Categories) > 0 {
		return raw.Categories
	}
	if raw.CategoryName != "" {
		return []string{raw.CategoryName}
	}
	return nil
}

func firstOf(urls []string) string {
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

// ToBusiness maps one actor item onto the campaign business record. The
// ZIP comes from the item's own address, never from the query that found
// it. Direct emails from the payload seed the google_maps source.
func ToBusiness(raw *model.RawBusiness, campaignID string) model.Business {
	b := model.Business{
		CampaignID:  campaignID,
		PlaceID:     raw.PlaceID,
		Name:        strings.TrimSpace(raw.Name),
		Address:     strings.TrimSpace(raw.Address),
		Street:      strings.TrimSpace(raw.Street),
		City:        strings.TrimSpace(raw.City),
		State:       strings.TrimSpace(raw.State),
		Zip:         zipFrom(raw),
		Phone:       strings.TrimSpace(raw.Phone),
		Website:     strings.TrimSpace(raw.Website),
		Lat:         raw.Lat,
		Lon:         raw.Lon,
		Categories:  categoriesFrom(raw),
		Rating:      raw.Rating,
		ReviewCount: raw.ReviewCount,

		Hours:        hoursFrom(raw.OpeningHours),
		FacebookURL:  firstOf(raw.Facebooks),
		InstagramURL: firstOf(raw.Instagrams),
		LinkedInURL:  firstOf(raw.LinkedIns),

		EmailSource: model.EmailSourceNone,

		Flags:         flagsFrom(raw.Attributes),
		BookingURL:    bookingURLFrom(raw.Attributes),
		ReviewPercent: reviewPercentFrom(raw.ReviewsDist),
		SentimentTags: raw.ReviewsTags,
		Competitors:   competitorsFrom(raw.PeopleAlsoSearch),

		NeedsEnrichment:  true,
		EnrichmentStatus: model.EnrichmentPending,
	}

	if email := contact.Primary(raw.Emails); email != "" {
		b.Email = email
		b.EmailSource = model.EmailSourceMaps
	}

	b.ContactFirst, b.ContactLast = contactFrom(raw.LinkedIns)

	return b
}
