// Package config loads and validates scraper and API configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. NEWSCRAWLER_DB_DSN.
const EnvPrefix = "NEWSCRAWLER"

// Fetch modes.
const (
	FetchHeadless = "headless"
	FetchStatic   = "static"
	FetchAuto     = "auto"
)

// Eligibility modes.
const (
	ModeStrict  = "strict"
	ModeShowAll = "show_all"
)

// Archive backends.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Headless HeadlessConfig `mapstructure:"headless"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	DB       DBConfig       `mapstructure:"db"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ScraperConfig drives the pagination run.
type ScraperConfig struct {
	ListingURL       string `mapstructure:"listing_url"`
	PaginationSuffix string `mapstructure:"pagination_suffix"`
	ImageBaseURL     string `mapstructure:"image_base_url"`
	Mode             string `mapstructure:"mode"`
	StartPage        int    `mapstructure:"start_page"`
	MaxPages         int    `mapstructure:"max_pages"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ExecPath      string `mapstructure:"exec_path"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	WaitSelector  string `mapstructure:"wait_selector"`
}

// HTTPConfig configures the static fetcher.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// FetchConfig selects how listing pages are retrieved.
type FetchConfig struct {
	Mode               string `mapstructure:"mode"`
	PromotionThreshold int    `mapstructure:"promotion_threshold"`
}

// DBConfig controls access to the article table. An empty DSN selects the
// in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// ArchiveConfig selects where listing snapshots are written.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for ingestion notifications. Both fields empty
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// legacyEnv maps config keys onto the environment names used by earlier
// deployments. The prefixed name still wins.
var legacyEnv = map[string]string{
	"scraper.listing_url":       "BASE_URL_NEWS",
	"scraper.pagination_suffix": "PAGINATION_SUFFIX",
	"scraper.image_base_url":    "BASE_URL",
	"headless.exec_path":        "CHROMEDRIVER_PATH",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.listing_url", "")
	v.SetDefault("scraper.pagination_suffix", "")
	v.SetDefault("scraper.image_base_url", "")
	v.SetDefault("scraper.mode", ModeStrict)
	v.SetDefault("scraper.start_page", 1)
	v.SetDefault("scraper.max_pages", 0)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.wait_selector", "body")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "news-ingest-crawler/0.1")
	v.SetDefault("fetch.mode", FetchHeadless)
	v.SetDefault("fetch.promotion_threshold", 2048)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "articles")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "listings")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

func (c *Config) normalize() {
	c.Fetch.Mode = strings.ToLower(strings.TrimSpace(c.Fetch.Mode))
	c.Scraper.Mode = strings.ToLower(strings.TrimSpace(c.Scraper.Mode))
	c.Archive.Backend = strings.ToLower(strings.TrimSpace(c.Archive.Backend))
	c.Scraper.ListingURL = strings.TrimSpace(c.Scraper.ListingURL)
	if c.Scraper.ListingURL != "" && !strings.HasSuffix(c.Scraper.ListingURL, "/") {
		c.Scraper.ListingURL += "/"
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Scraper.StartPage < 1 {
		return fmt.Errorf("scraper.start_page must be >= 1")
	}
	if c.Scraper.MaxPages < 0 {
		return fmt.Errorf("scraper.max_pages must be >= 0")
	}
	switch c.Scraper.Mode {
	case ModeStrict, ModeShowAll:
	default:
		return fmt.Errorf("scraper.mode must be one of strict, show_all; got %q", c.Scraper.Mode)
	}
	switch c.Fetch.Mode {
	case FetchHeadless, FetchStatic, FetchAuto:
	default:
		return fmt.Errorf("fetch.mode must be one of headless, static, auto; got %q", c.Fetch.Mode)
	}
	if c.Fetch.Mode == FetchHeadless && !c.Headless.Enabled {
		return fmt.Errorf("fetch.mode headless requires headless.enabled")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.DB.MaxConns < 0 {
		return fmt.Errorf("db.max_conns must be >= 0")
	}
	switch c.Archive.Backend {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local backend")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, memory, local, gcs; got %q", c.Archive.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// ValidateScrape adds the checks only a scrape run needs.
func (c Config) ValidateScrape() error {
	if c.Scraper.ListingURL == "" {
		return fmt.Errorf("scraper.listing_url is required (or BASE_URL_NEWS)")
	}
	return nil
}

// NavTimeout returns the headless navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// HTTPTimeout returns the static fetch budget.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
