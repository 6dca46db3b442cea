package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/coverage"
	"github.com/sells-group/leadgen-cli/internal/govern"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/scraper"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/internal/writer"
	"github.com/sells-group/leadgen-cli/internal/zipcatalog"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/apify"
	"github.com/sells-group/leadgen-cli/pkg/notion"
	sfpkg "github.com/sells-group/leadgen-cli/pkg/salesforce"
	"github.com/sells-group/leadgen-cli/pkg/verifier"
)

// executorEnv holds the store, the offline ZIP catalog, and the campaign
// executor shared by the create/run/schedule/serve commands.
type executorEnv struct {
	Store    store.Store
	Catalog  *zipcatalog.Catalog // may be nil
	Executor *pipeline.Executor
}

// Close releases resources held by the executor environment.
func (ee *executorEnv) Close() {
	if ee.Catalog != nil {
		_ = ee.Catalog.Close()
	}
	if ee.Store != nil {
		_ = ee.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("database URL is required (LEADGEN_STORE_DATABASE_URL)")
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
}

func initSalesforce() (*sfpkg.Pusher, error) {
	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewPusher(sfpkg.NewClient(sf)), nil
}

// apifyPollOptions translates the configured poll timings. Zero values fall
// through to the client defaults.
func apifyPollOptions() []apify.PollOption {
	var poll []apify.PollOption
	if cfg.Apify.PollIntervalSecs > 0 {
		poll = append(poll, apify.WithPollInterval(time.Duration(cfg.Apify.PollIntervalSecs)*time.Second))
	}
	if cfg.Apify.RunTimeoutSecs > 0 {
		poll = append(poll, apify.WithPollTimeout(time.Duration(cfg.Apify.RunTimeoutSecs)*time.Second))
	}
	if cfg.Apify.StuckRunningSecs > 0 {
		poll = append(poll, apify.WithStuckAfter(time.Duration(cfg.Apify.StuckRunningSecs)*time.Second))
	}
	return poll
}

// initExecutor sets up the store, the governor, all API clients, and the
// campaign executor. Callers should defer env.Close().
func initExecutor(ctx context.Context) (*executorEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	gov := govern.New(govern.Options{
		DomainDelay:      time.Duration(cfg.Governor.DomainDelaySecs) * time.Second,
		FailureThreshold: cfg.Governor.FailureThreshold,
	})

	var apifyOpts []apify.Option
	if cfg.Apify.BaseURL != "" {
		apifyOpts = append(apifyOpts, apify.WithBaseURL(cfg.Apify.BaseURL))
	}
	apifyClient := apify.NewClient(cfg.Apify.APIKey, apifyOpts...)
	poll := apifyPollOptions()

	maps := scraper.NewMapScraper(apifyClient, gov, cfg.Apify.MapsActor, poll...)
	social := scraper.NewSocialScraper(apifyClient, gov, cfg.Apify.FacebookActor, poll...)
	pro := scraper.NewProfessionalScraper(apifyClient, gov, scraper.Actors{
		Search:  cfg.Apify.SearchActor,
		Profile: cfg.Apify.ProfileActor,
		Company: cfg.Apify.CompanyActor,
		Email:   cfg.Apify.EmailActor,
	}, poll...)
	site := scraper.NewSiteFetcher(gov, time.Duration(cfg.Governor.WebsiteTimeoutSecs)*time.Second)

	var verifierOpts []verifier.Option
	if cfg.Verifier.BaseURL != "" {
		verifierOpts = append(verifierOpts, verifier.WithBaseURL(cfg.Verifier.BaseURL))
	}
	if cfg.Verifier.SpacingMS > 0 {
		verifierOpts = append(verifierOpts, verifier.WithSpacing(time.Duration(cfg.Verifier.SpacingMS)*time.Millisecond))
	}
	verifierClient := verifier.NewClient(cfg.Verifier.APIKey, verifierOpts...)

	llm := anthropicpkg.NewClient(cfg.LLM.APIKey)

	// Gazetteer catalog (optional; spatial ZIP selection degrades without it).
	var catalog *zipcatalog.Catalog
	if cfg.ZipCatalog.Path != "" {
		catalog, err = zipcatalog.Open(cfg.ZipCatalog.Path)
		if err != nil {
			zap.L().Warn("zip catalog open failed, coverage runs without gazetteer", zap.Error(err))
			catalog = nil
		}
	}

	calc := cost.NewCalculator(cost.DefaultRates())
	planner := coverage.New(llm, catalog, gov, calc, coverage.Config{
		LightModel:   cfg.LLM.LightModel,
		CityWorkers:  cfg.Coverage.CityWorkers,
		StateTimeout: time.Duration(cfg.Coverage.StateTimeoutMins) * time.Minute,
	})

	formulas, err := writer.LoadFormulas(cfg.Writer.FormulaConfig)
	if err != nil {
		if catalog != nil {
			_ = catalog.Close()
		}
		_ = st.Close()
		return nil, eris.Wrap(err, "load writer formulas")
	}
	cw := writer.New(llm, gov, formulas, writer.Org{
		Name:             cfg.Org.Name,
		Product:          cfg.Org.Product,
		ValueProp:        cfg.Org.ValueProp,
		TargetCategories: cfg.Org.TargetCategories,
	}, writer.Config{
		Model:    cfg.LLM.HeavyModel,
		Variants: cfg.Writer.Variants,
	})

	// Report sink (optional).
	var reports pipeline.ReportSink
	if cfg.Notion.Token != "" && cfg.Notion.ReportDB != "" {
		reports = notion.NewReporter(notion.NewClient(cfg.Notion.Token), cfg.Notion.ReportDB)
		zap.L().Info("notion report sink enabled")
	}

	// Lead sink (optional). A configured but broken Salesforce setup is a
	// hard error rather than a silently dropped export.
	var leads pipeline.LeadSink
	if cfg.Salesforce.ClientID != "" {
		pusher, err := initSalesforce()
		if err != nil {
			if catalog != nil {
				_ = catalog.Close()
			}
			_ = st.Close()
			return nil, err
		}
		leads = pusher
		zap.L().Info("salesforce lead sink enabled")
	}

	exec := pipeline.New(cfg, st, planner, maps, social, pro, site, cw, verifierClient, reports, leads)

	return &executorEnv{
		Store:    st,
		Catalog:  catalog,
		Executor: exec,
	}, nil
}
