package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func TestFormatCampaignsList(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	campaigns := []model.Campaign{
		{
			ID:              "11111111-2222-3333-4444-555555555555",
			Name:            "Atlanta Plumbers Q3",
			Location:        "Atlanta, GA",
			Status:          model.CampaignRunning,
			TotalBusinesses: 240,
			TotalEmails:     96,
			Costs:           model.ServiceCosts{Maps: 0.96, LLM: 1.04},
			CreatedAt:       created,
		},
		{
			ID:        "99999999-8888-7777-6666-555555555555",
			Name:      "An Extremely Long Campaign Name That Overflows",
			Location:  "Savannah, GA",
			Status:    model.CampaignDraft,
			CreatedAt: created,
		},
	}

	var buf bytes.Buffer
	formatCampaignsList(&buf, campaigns)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "11111111")
	assert.Contains(t, out, "Atlanta Plumbers Q3")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "$2.00")
	assert.Contains(t, out, "2026-08-01 09:30")

	// Long names are truncated for the table.
	assert.Contains(t, out, "An Extremely Long Campaign ...")
	assert.NotContains(t, out, "Overflows")
}

func TestFormatCampaignsList_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatCampaignsList(&buf, nil)

	// Header only.
	assert.Contains(t, buf.String(), "ID")
	assert.NotContains(t, buf.String(), "$")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "11111111", truncateID("11111111-2222-3333-4444-555555555555"))
	assert.Equal(t, "short", truncateID("short"))
}
