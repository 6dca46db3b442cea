package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Apify      ApifyConfig      `yaml:"apify" mapstructure:"apify"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Verifier   VerifierConfig   `yaml:"verifier" mapstructure:"verifier"`
	Governor   GovernorConfig   `yaml:"governor" mapstructure:"governor"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Coverage   CoverageConfig   `yaml:"coverage" mapstructure:"coverage"`
	Writer     WriterConfig     `yaml:"writer" mapstructure:"writer"`
	ZipCatalog ZipCatalogConfig `yaml:"zipcatalog" mapstructure:"zipcatalog"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Serve      ServeConfig      `yaml:"serve" mapstructure:"serve"`
	Watchdog   WatchdogConfig   `yaml:"watchdog" mapstructure:"watchdog"`
	Org        OrgConfig        `yaml:"org" mapstructure:"org"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the campaign database.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ApifyConfig holds actor platform credentials and actor IDs.
type ApifyConfig struct {
	APIKey           string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	MapsActor        string `yaml:"maps_actor" mapstructure:"maps_actor"`
	FacebookActor    string `yaml:"facebook_actor" mapstructure:"facebook_actor"`
	SearchActor      string `yaml:"search_actor" mapstructure:"search_actor"`
	ProfileActor     string `yaml:"profile_actor" mapstructure:"profile_actor"`
	CompanyActor     string `yaml:"company_actor" mapstructure:"company_actor"`
	EmailActor       string `yaml:"email_actor" mapstructure:"email_actor"`
	PollIntervalSecs int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	RunTimeoutSecs   int    `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
	StuckRunningSecs int    `yaml:"stuck_running_secs" mapstructure:"stuck_running_secs"`
}

// LLMConfig holds model access for the coverage analyzer and writer.
type LLMConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	HeavyModel string `yaml:"heavy_model" mapstructure:"heavy_model"`
	LightModel string `yaml:"light_model" mapstructure:"light_model"`
}

// VerifierConfig holds email deliverability API settings.
type VerifierConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	SpacingMS int    `yaml:"spacing_ms" mapstructure:"spacing_ms"`
	SafeScore int    `yaml:"safe_score" mapstructure:"safe_score"`
}

// GovernorConfig configures outbound rate limiting.
type GovernorConfig struct {
	DomainDelaySecs    int `yaml:"domain_delay_secs" mapstructure:"domain_delay_secs"`
	FailureThreshold   int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	WebsiteTimeoutSecs int `yaml:"website_timeout_secs" mapstructure:"website_timeout_secs"`
}

// PipelineConfig configures phase execution.
type PipelineConfig struct {
	IcebreakerWorkers     int `yaml:"icebreaker_workers" mapstructure:"icebreaker_workers"`
	ProfessionalBatches   int `yaml:"professional_batches" mapstructure:"professional_batches"`
	ProfessionalBatchSize int `yaml:"professional_batch_size" mapstructure:"professional_batch_size"`
	SocialBatchSize       int `yaml:"social_batch_size" mapstructure:"social_batch_size"`
	SocialLimit           int `yaml:"social_limit" mapstructure:"social_limit"`
	ZipBatchSize          int `yaml:"zip_batch_size" mapstructure:"zip_batch_size"`
	MaxPerZip             int `yaml:"max_per_zip" mapstructure:"max_per_zip"`
	HeartbeatSecs         int `yaml:"heartbeat_secs" mapstructure:"heartbeat_secs"`
	MapTimeoutMins        int `yaml:"map_timeout_mins" mapstructure:"map_timeout_mins"`
	SocialTimeoutMins     int `yaml:"social_timeout_mins" mapstructure:"social_timeout_mins"`
	ProTimeoutMins        int `yaml:"pro_timeout_mins" mapstructure:"pro_timeout_mins"`
}

// CoverageConfig configures ZIP selection.
type CoverageConfig struct {
	CityWorkers      int `yaml:"city_workers" mapstructure:"city_workers"`
	StateTimeoutMins int `yaml:"state_timeout_mins" mapstructure:"state_timeout_mins"`
}

// WriterConfig configures icebreaker generation.
type WriterConfig struct {
	FormulaConfig string `yaml:"formula_config" mapstructure:"formula_config"`
	Variants      int    `yaml:"variants" mapstructure:"variants"`
}

// ZipCatalogConfig configures the offline gazetteer.
type ZipCatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// NotionConfig holds the optional campaign report sink.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReportDB string `yaml:"report_db" mapstructure:"report_db"`
}

// SalesforceConfig holds the optional CRM lead push.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// ServeConfig configures the worker HTTP endpoint.
type ServeConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// WatchdogConfig configures stale-campaign detection.
type WatchdogConfig struct {
	CheckIntervalSecs int `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	StaleAfterMins    int `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
}

// OrgConfig describes the sending organisation used in writer prompts.
type OrgConfig struct {
	Name             string   `yaml:"name" mapstructure:"name"`
	Product          string   `yaml:"product" mapstructure:"product"`
	ValueProp        string   `yaml:"value_prop" mapstructure:"value_prop"`
	TargetCategories []string `yaml:"target_categories" mapstructure:"target_categories"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.leadgen")
	v.AddConfigPath("/etc/leadgen")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.maps_actor", "compass~crawler-google-places")
	v.SetDefault("apify.facebook_actor", "apify~facebook-pages-scraper")
	v.SetDefault("apify.search_actor", "apify~google-search-scraper")
	v.SetDefault("apify.profile_actor", "dev_fusion~linkedin-profile-scraper")
	v.SetDefault("apify.company_actor", "dev_fusion~linkedin-company-scraper")
	v.SetDefault("apify.email_actor", "apify~contact-info-scraper")
	v.SetDefault("apify.poll_interval_secs", 5)
	v.SetDefault("apify.run_timeout_secs", 600)
	v.SetDefault("apify.stuck_running_secs", 120)
	v.SetDefault("llm.heavy_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.light_model", "claude-haiku-4-5-20251001")
	v.SetDefault("verifier.base_url", "https://api.millionverifier.com/api/v3")
	v.SetDefault("verifier.spacing_ms", 100)
	v.SetDefault("verifier.safe_score", 70)
	v.SetDefault("governor.domain_delay_secs", 2)
	v.SetDefault("governor.failure_threshold", 3)
	v.SetDefault("governor.website_timeout_secs", 30)
	v.SetDefault("pipeline.icebreaker_workers", 5)
	v.SetDefault("pipeline.professional_batches", 3)
	v.SetDefault("pipeline.professional_batch_size", 15)
	v.SetDefault("pipeline.social_batch_size", 50)
	v.SetDefault("pipeline.social_limit", 500)
	v.SetDefault("pipeline.zip_batch_size", 10)
	v.SetDefault("pipeline.max_per_zip", 50)
	v.SetDefault("pipeline.heartbeat_secs", 60)
	v.SetDefault("pipeline.map_timeout_mins", 30)
	v.SetDefault("pipeline.social_timeout_mins", 60)
	v.SetDefault("pipeline.pro_timeout_mins", 90)
	v.SetDefault("coverage.city_workers", 10)
	v.SetDefault("coverage.state_timeout_mins", 15)
	v.SetDefault("writer.variants", 3)
	v.SetDefault("zipcatalog.path", "zipcatalog.db")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("watchdog.check_interval_secs", 120)
	v.SetDefault("watchdog.stale_after_mins", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
