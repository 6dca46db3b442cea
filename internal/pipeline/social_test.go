package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scraper"
	"github.com/sells-group/leadgen-cli/pkg/verifier"
)

func TestRunSocial_NoCandidates(t *testing.T) {
	h := newHarness()

	h.st.On("BusinessesForSocialEnrichment", mock.Anything, "c-1", 500).
		Return([]model.Business{}, nil)

	stats, err := h.executorNoSinks(testConfig()).runSocial(context.Background(), draftCampaign())

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Candidates)
	h.social.AssertNotCalled(t, "ScrapePages", mock.Anything, mock.Anything)
}

func TestRunSocial_SharedPageFansOut(t *testing.T) {
	h := newHarness()
	norm := "https://www.facebook.com/sharedpage"

	// Two locations of one chain point at the same page through different
	// raw URLs; the page is scraped once and lands on both rows.
	h.st.On("BusinessesForSocialEnrichment", mock.Anything, "c-1", 500).Return([]model.Business{
		{ID: "b-1", FacebookURL: "https://www.facebook.com/SharedPage/"},
		{ID: "b-2", FacebookURL: "facebook.com/sharedpage?ref=page"},
	}, nil)
	h.social.On("ScrapePages", mock.Anything, []string{norm}).
		Return(map[string]*scraper.FacebookPage{
			norm: {URL: norm, Name: "Shared Page", PrimaryEmail: "team@shared.com",
				Emails: []string{"team@shared.com"}},
		}, nil)
	h.st.On("TrackApiCost", mock.Anything, "c-1", model.ServiceSocial, 1, mock.AnythingOfType("float64")).Return(nil)

	saved := 0
	h.st.On("SaveSocialEnrichment", mock.Anything, mock.AnythingOfType("*model.FacebookEnrichment")).
		Run(func(args mock.Arguments) {
			saved++
			args.Get(1).(*model.FacebookEnrichment).ID = fmt.Sprintf("fb-%d", saved)
		}).Return(nil)
	h.st.On("SetEnrichmentStatus", mock.Anything, []string{"b-1", "b-2"}, model.EnrichmentCompleted).Return(nil)

	h.verifier.On("VerifyBatch", mock.Anything, []string{"team@shared.com"}).
		Return([]verifier.Result{{Email: "team@shared.com", Verdict: verifier.ResultDeliverable, Score: 80}}, nil)
	h.st.On("TrackApiCost", mock.Anything, "c-1", model.ServiceVerification, 1, mock.AnythingOfType("float64")).Return(nil)
	h.st.On("UpdateSocialVerification", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*model.VerifyResult")).Return(nil)
	h.st.On("SaveVerifications", mock.Anything, mock.MatchedBy(func(rows []model.EmailVerification) bool {
		return len(rows) == 2
	})).Return(nil)

	stats, err := h.executorNoSinks(testConfig()).runSocial(context.Background(), draftCampaign())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Candidates)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 2, stats.Emails)
	assert.Equal(t, 2, saved)
	h.st.AssertExpectations(t)
	h.social.AssertNumberOfCalls(t, "ScrapePages", 1)
}

func TestRunSocial_MissingPageWritesErroredRow(t *testing.T) {
	h := newHarness()
	norm := "https://www.facebook.com/gonepage"

	h.st.On("BusinessesForSocialEnrichment", mock.Anything, "c-1", 500).Return([]model.Business{
		{ID: "b-1", FacebookURL: norm},
	}, nil)
	h.social.On("ScrapePages", mock.Anything, []string{norm}).
		Return(map[string]*scraper.FacebookPage{}, nil)
	h.st.On("TrackApiCost", mock.Anything, "c-1", model.ServiceSocial, 1, mock.AnythingOfType("float64")).Return(nil)
	h.st.On("SaveSocialEnrichment", mock.Anything, mock.MatchedBy(func(e *model.FacebookEnrichment) bool {
		return e.BusinessID == "b-1" && e.PageURL == norm && e.Outcome == model.EnrichmentErrored
	})).Return(nil)
	h.st.On("SetEnrichmentStatus", mock.Anything, []string{"b-1"}, model.EnrichmentFailed).Return(nil)

	stats, err := h.executorNoSinks(testConfig()).runSocial(context.Background(), draftCampaign())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Missing)
	assert.Equal(t, 0, stats.Pages)
	h.verifier.AssertNotCalled(t, "VerifyBatch", mock.Anything, mock.Anything)
	h.st.AssertExpectations(t)
}

func TestRunSocial_PageWithoutEmailCompletes(t *testing.T) {
	h := newHarness()
	norm := "https://www.facebook.com/quietpage"

	h.st.On("BusinessesForSocialEnrichment", mock.Anything, "c-1", 500).Return([]model.Business{
		{ID: "b-1", FacebookURL: norm},
	}, nil)
	h.social.On("ScrapePages", mock.Anything, []string{norm}).
		Return(map[string]*scraper.FacebookPage{
			norm: {URL: norm, Name: "Quiet Page", Likes: 10},
		}, nil)
	h.st.On("TrackApiCost", mock.Anything, "c-1", model.ServiceSocial, 1, mock.AnythingOfType("float64")).Return(nil)
	h.st.On("SaveSocialEnrichment", mock.Anything, mock.MatchedBy(func(e *model.FacebookEnrichment) bool {
		return e.Outcome == model.EnrichmentNoEmail && e.PrimaryEmail == ""
	})).Return(nil)
	h.st.On("SetEnrichmentStatus", mock.Anything, []string{"b-1"}, model.EnrichmentCompleted).Return(nil)

	stats, err := h.executorNoSinks(testConfig()).runSocial(context.Background(), draftCampaign())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 0, stats.Emails)
	h.verifier.AssertNotCalled(t, "VerifyBatch", mock.Anything, mock.Anything)
}

func TestRunSocial_UnusableURLSkipped(t *testing.T) {
	h := newHarness()

	// A bare host normalises to nothing; there is no page to scrape.
	h.st.On("BusinessesForSocialEnrichment", mock.Anything, "c-1", 500).Return([]model.Business{
		{ID: "b-1", FacebookURL: "https://facebook.com"},
	}, nil)

	stats, err := h.executorNoSinks(testConfig()).runSocial(context.Background(), draftCampaign())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Candidates)
	assert.Equal(t, 0, stats.Pages)
	h.social.AssertNotCalled(t, "ScrapePages", mock.Anything, mock.Anything)
}

func TestRunSocial_ScrapeErrorFailsPhase(t *testing.T) {
	h := newHarness()
	norm := "https://www.facebook.com/somepage"

	h.st.On("BusinessesForSocialEnrichment", mock.Anything, "c-1", 500).Return([]model.Business{
		{ID: "b-1", FacebookURL: norm},
	}, nil)
	h.social.On("ScrapePages", mock.Anything, []string{norm}).Return(nil, assert.AnError)

	_, err := h.executorNoSinks(testConfig()).runSocial(context.Background(), draftCampaign())

	assert.Error(t, err)
	h.st.AssertNotCalled(t, "SaveSocialEnrichment", mock.Anything, mock.Anything)
}

func TestRunSocial_BatchesURLs(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	cfg.Pipeline.SocialBatchSize = 1

	u1 := "https://www.facebook.com/pageone"
	u2 := "https://www.facebook.com/pagetwo"
	h.st.On("BusinessesForSocialEnrichment", mock.Anything, "c-1", 500).Return([]model.Business{
		{ID: "b-1", FacebookURL: u1},
		{ID: "b-2", FacebookURL: u2},
	}, nil)
	h.social.On("ScrapePages", mock.Anything, []string{u1}).
		Return(map[string]*scraper.FacebookPage{u1: {URL: u1, Name: "One"}}, nil)
	h.social.On("ScrapePages", mock.Anything, []string{u2}).
		Return(map[string]*scraper.FacebookPage{u2: {URL: u2, Name: "Two"}}, nil)
	h.st.On("TrackApiCost", mock.Anything, "c-1", model.ServiceSocial, 1, mock.AnythingOfType("float64")).Return(nil)
	h.st.On("SaveSocialEnrichment", mock.Anything, mock.AnythingOfType("*model.FacebookEnrichment")).Return(nil)
	h.st.On("SetEnrichmentStatus", mock.Anything, mock.AnythingOfType("[]string"), model.EnrichmentCompleted).Return(nil)

	stats, err := h.executorNoSinks(cfg).runSocial(context.Background(), draftCampaign())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pages)
	h.social.AssertNumberOfCalls(t, "ScrapePages", 2)
}
