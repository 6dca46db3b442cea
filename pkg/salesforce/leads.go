package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// Pusher inserts campaign leads as Salesforce Lead records.
type Pusher struct {
	client Client
}

// NewPusher creates a lead pusher on top of the given client.
func NewPusher(client Client) *Pusher {
	return &Pusher{client: client}
}

// PushLeads inserts the given businesses as Lead records in batches of 200.
// Emails Salesforce already holds are skipped, so a resumed campaign can
// push repeatedly without duplicating leads. Per-record rejections are
// logged and excluded from the returned count.
func (p *Pusher) PushLeads(ctx context.Context, c *model.Campaign, leads []model.Business) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	existing, err := p.existingLeadEmails(ctx, leads)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(leads))
	records := make([]map[string]any, 0, len(leads))
	for i := range leads {
		b := &leads[i]
		key := strings.ToLower(strings.TrimSpace(b.Email))
		if key == "" {
			continue
		}
		if _, dup := existing[key]; dup {
			continue
		}
		// Chain locations can share one address; the first wins.
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		records = append(records, leadRecord(c, b))
	}
	if len(records) == 0 {
		return 0, nil
	}

	pushed := 0
	for start := 0; start < len(records); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(records) {
			end = len(records)
		}

		results, err := p.client.InsertCollection(ctx, "Lead", records[start:end])
		if err != nil {
			return pushed, eris.Wrap(err, fmt.Sprintf("sf: push leads batch %d-%d", start, end))
		}
		for _, r := range results {
			if !r.Success {
				zap.L().Warn("lead insert rejected",
					zap.String("campaign_id", c.ID),
					zap.Strings("errors", r.Errors),
				)
				continue
			}
			pushed++
		}
	}
	return pushed, nil
}

// leadEmailRow is the SOQL projection used for the dedupe lookup.
type leadEmailRow struct {
	Email string `json:"Email" salesforce:"Email"`
}

// existingLeadEmails returns the lowercased candidate emails that
// Salesforce already holds as Lead records.
func (p *Pusher) existingLeadEmails(ctx context.Context, leads []model.Business) (map[string]struct{}, error) {
	dedup := make(map[string]struct{}, len(leads))
	var quoted []string
	for i := range leads {
		e := strings.ToLower(strings.TrimSpace(leads[i].Email))
		if e == "" {
			continue
		}
		if _, ok := dedup[e]; ok {
			continue
		}
		dedup[e] = struct{}{}
		quoted = append(quoted, "'"+escapeSoql(e)+"'")
	}

	existing := make(map[string]struct{})
	for start := 0; start < len(quoted); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(quoted) {
			end = len(quoted)
		}

		soql := fmt.Sprintf(
			"SELECT Email FROM Lead WHERE Email IN (%s)",
			strings.Join(quoted[start:end], ", "),
		)
		var rows []leadEmailRow
		if err := p.client.Query(ctx, soql, &rows); err != nil {
			return nil, eris.Wrap(err, "sf: existing lead lookup")
		}
		for _, r := range rows {
			existing[strings.ToLower(r.Email)] = struct{}{}
		}
	}
	return existing, nil
}

// leadRecord maps a business onto Salesforce Lead fields. LastName is
// required on the Lead object; when no contact name was enriched the
// business name stands in.
func leadRecord(c *model.Campaign, b *model.Business) map[string]any {
	last := b.ContactLast
	if last == "" {
		last = b.Name
	}
	rec := map[string]any{
		"Company":     b.Name,
		"LastName":    last,
		"Email":       b.Email,
		"LeadSource":  "LeadGen CLI",
		"Description": fmt.Sprintf("Campaign %q (%s)", c.Name, c.ID),
	}
	if b.ContactFirst != "" {
		rec["FirstName"] = b.ContactFirst
	}
	if b.Phone != "" {
		rec["Phone"] = b.Phone
	}
	if b.Website != "" {
		rec["Website"] = b.Website
	}
	if b.Street != "" {
		rec["Street"] = b.Street
	}
	if b.City != "" {
		rec["City"] = b.City
	}
	if b.State != "" {
		rec["State"] = b.State
	}
	if b.Zip != "" {
		rec["PostalCode"] = b.Zip
	}
	return rec
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
