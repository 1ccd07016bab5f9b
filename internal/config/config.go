// Package config loads and validates showcase crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetcher modes.
const (
	FetcherHeadless = "headless"
	FetcherStatic   = "static"
)

// Provider names shared by the storage, db, and pubsub sections.
const (
	ProviderNoop     = "noop"
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
	ProviderPostgres = "postgres"
	ProviderPubSub   = "pubsub"
)

// DefaultUserAgent is a desktop Chrome user agent; the showcase serves the
// full listing markup to it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// CrawlConfig governs the pagination loop.
type CrawlConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Origin          string        `mapstructure:"origin"`
	StartPage       int           `mapstructure:"start_page"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay"`
}

// FetcherConfig selects and tunes the page fetcher.
type FetcherConfig struct {
	Mode      string        `mapstructure:"mode"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// DatasetConfig locates the CSV files.
type DatasetConfig struct {
	Path       string `mapstructure:"path"`
	UniquePath string `mapstructure:"unique_path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig points at an optional node-exporter textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// StorageConfig sets where finished datasets are uploaded.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the run ledger database.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// PubSubConfig holds metadata for run notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHOWCASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key, including empty ones, so AutomaticEnv can
// resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.base_url", "https://ethglobal.com/showcase?page=")
	v.SetDefault("crawl.origin", "https://ethglobal.com")
	v.SetDefault("crawl.start_page", 1)
	v.SetDefault("crawl.politeness_delay", 2*time.Second)
	v.SetDefault("fetcher.mode", FetcherHeadless)
	v.SetDefault("fetcher.timeout", 60*time.Second)
	v.SetDefault("fetcher.user_agent", DefaultUserAgent)
	v.SetDefault("dataset.path", "data/ethglobal_projects.csv")
	v.SetDefault("dataset.unique_path", "data/ethglobal_projects_unique.csv")
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("storage.provider", ProviderNoop)
	v.SetDefault("storage.local_dir", "artifacts")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "datasets")
	v.SetDefault("db.provider", ProviderNoop)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "crawl_runs")
	v.SetDefault("pubsub.provider", ProviderNoop)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.BaseURL == "" {
		return fmt.Errorf("crawl.base_url must be set")
	}
	if c.Crawl.Origin == "" {
		return fmt.Errorf("crawl.origin must be set")
	}
	if c.Crawl.StartPage < 1 {
		return fmt.Errorf("crawl.start_page must be >= 1")
	}
	if c.Crawl.PolitenessDelay < 0 {
		return fmt.Errorf("crawl.politeness_delay must be >= 0")
	}
	switch c.Fetcher.Mode {
	case FetcherHeadless, FetcherStatic:
	default:
		return fmt.Errorf("fetcher.mode must be %q or %q, got %q", FetcherHeadless, FetcherStatic, c.Fetcher.Mode)
	}
	if c.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if c.Dataset.Path == "" || c.Dataset.UniquePath == "" {
		return fmt.Errorf("dataset.path and dataset.unique_path must be set")
	}
	if c.Dataset.Path == c.Dataset.UniquePath {
		return fmt.Errorf("dataset.unique_path must differ from dataset.path")
	}
	switch c.Storage.Provider {
	case ProviderNoop, "":
	case ProviderLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local provider")
		}
	case ProviderGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.DB.Provider {
	case ProviderNoop, "":
	case ProviderPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres provider")
		}
		if c.DB.Table == "" {
			return fmt.Errorf("db.table must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("unknown db.provider %q", c.DB.Provider)
	}
	switch c.PubSub.Provider {
	case ProviderNoop, "":
	case ProviderPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set for the pubsub provider")
		}
	default:
		return fmt.Errorf("unknown pubsub.provider %q", c.PubSub.Provider)
	}
	return nil
}
