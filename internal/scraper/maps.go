// Package scraper adapts the hosted actor platform into the pipeline's
// phase contracts: map discovery, Facebook page enrichment, LinkedIn
// profile enrichment and homepage fetches for writer context.
package scraper

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/govern"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// MapScraper discovers businesses through the places actor.
type MapScraper struct {
	client  apify.Client
	gov     *govern.Governor
	actorID string
	poll    []apify.PollOption
}

// NewMapScraper creates a MapScraper for the given actor.
func NewMapScraper(client apify.Client, gov *govern.Governor, actorID string, poll ...apify.PollOption) *MapScraper {
	return &MapScraper{client: client, gov: gov, actorID: actorID, poll: poll}
}

// mapsInput is the places actor's run payload.
type mapsInput struct {
	SearchStrings      []string `json:"searchStringsArray"`
	MaxPlacesPerSearch int      `json:"maxCrawledPlacesPerSearch,omitempty"`
	Language           string   `json:"language,omitempty"`
}

// BuildQueries returns one "{keyword} {zip}" search string per pair.
func BuildQueries(keywords, zips []string) []string {
	queries := make([]string, 0, len(keywords)*len(zips))
	for _, kw := range keywords {
		for _, zip := range zips {
			queries = append(queries, fmt.Sprintf("%s %s", kw, zip))
		}
	}
	return queries
}

// Scrape issues one actor run covering the given keyword × ZIP queries and
// returns the mapped businesses, deduplicated by place id. Several ZIPs
// ride in one run; each business is tagged with the ZIP from its own
// address, so callers must partition by Business.Zip rather than by the
// input ZIPs.
func (s *MapScraper) Scrape(ctx context.Context, campaignID string, keywords, zips []string, maxPerZip int) ([]model.Business, error) {
	if len(keywords) == 0 || len(zips) == 0 {
		return nil, nil
	}
	if err := s.gov.WaitForService(ctx, govern.ServiceApify); err != nil {
		return nil, err
	}

	queries := BuildQueries(keywords, zips)
	input := mapsInput{
		SearchStrings:      queries,
		MaxPlacesPerSearch: maxPerZip,
		Language:           "en",
	}

	var items []model.RawBusiness
	if err := apify.RunAndCollect(ctx, s.client, s.actorID, input, &items, s.poll...); err != nil {
		return nil, eris.Wrapf(err, "scraper: maps run (%d queries)", len(queries))
	}

	seen := make(map[string]bool, len(items))
	businesses := make([]model.Business, 0, len(items))
	for i := range items {
		raw := &items[i]
		if raw.PlaceID == "" || seen[raw.PlaceID] {
			continue
		}
		seen[raw.PlaceID] = true
		businesses = append(businesses, ToBusiness(raw, campaignID))
	}

	zap.L().Info("map scrape finished",
		zap.Int("queries", len(queries)),
		zap.Int("items", len(items)),
		zap.Int("businesses", len(businesses)),
	)

	return businesses, nil
}
