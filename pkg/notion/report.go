package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Reporter writes one page per campaign into a Notion report database.
// Publishing is an upsert keyed on the Campaign ID property, so a resumed
// or re-run campaign refreshes its page instead of duplicating it.
type Reporter struct {
	client Client
	dbID   string
}

// NewReporter creates a reporter that publishes into the given database.
func NewReporter(client Client, dbID string) *Reporter {
	return &Reporter{client: client, dbID: dbID}
}

// PublishReport creates or refreshes the campaign's report page.
func (r *Reporter) PublishReport(ctx context.Context, c *model.Campaign, summary *model.Summary) error {
	props := reportProperties(c, summary)

	pageID, err := r.findReportPage(ctx, c.ID)
	if err != nil {
		return err
	}

	if pageID != "" {
		req := &notionapi.PageUpdateRequest{Properties: props}
		if _, err := r.client.UpdatePage(ctx, pageID, req); err != nil {
			return eris.Wrap(err, fmt.Sprintf("notion: refresh report for campaign %s", c.ID))
		}
		return nil
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(r.dbID),
		},
		Properties: props,
	}
	if _, err := r.client.CreatePage(ctx, req); err != nil {
		return eris.Wrap(err, fmt.Sprintf("notion: create report for campaign %s", c.ID))
	}
	return nil
}

// findReportPage returns the page ID of the campaign's existing report,
// or "" when none exists yet.
func (r *Reporter) findReportPage(ctx context.Context, campaignID string) (string, error) {
	req := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Campaign ID",
			RichText: &notionapi.TextFilterCondition{Equals: campaignID},
		},
		PageSize: 1,
	}
	resp, err := r.client.QueryDatabase(ctx, r.dbID, req)
	if err != nil {
		return "", eris.Wrap(err, "notion: find report page")
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

// reportProperties flattens the campaign outcome into database columns.
func reportProperties(c *model.Campaign, s *model.Summary) notionapi.Properties {
	props := notionapi.Properties{
		"Name":        titleProp(c.Name),
		"Campaign ID": richTextProp(c.ID),
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(s.Status)},
		},
		"Location":     richTextProp(c.Location),
		"Keywords":     richTextProp(strings.Join(c.Keywords, ", ")),
		"ZIPs":         numberProp(float64(s.ZipsScraped)),
		"Businesses":   numberProp(float64(s.TotalBusinesses)),
		"Emails":       numberProp(float64(s.TotalEmails)),
		"Social Pages": numberProp(float64(s.TotalSocialPages)),
		"Icebreakers":  numberProp(float64(s.IcebreakersDone)),
		"Cost (USD)":   numberProp(s.CostUSD),
	}
	if s.Error != "" {
		props["Error"] = richTextProp(s.Error)
	}
	return props
}

func titleProp(v string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v}},
		},
	}
}

func richTextProp(v string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v}},
		},
	}
}

func numberProp(v float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{
		Type:   notionapi.PropertyTypeNumber,
		Number: v,
	}
}
